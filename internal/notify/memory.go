package notify

import (
	"context"
	"sync"
)

// Sent is one captured notification.
type Sent struct {
	Channel         string // "email" or "text"
	TemplateID      string
	Destination     string
	Personalisation map[string]string
}

// Memory captures notifications for test assertions.
type Memory struct {
	mu   sync.Mutex
	sent []Sent
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SendEmail(_ context.Context, templateID, address string, personalisation map[string]string) error {
	m.record(Sent{Channel: "email", TemplateID: templateID, Destination: address, Personalisation: personalisation})
	return nil
}

func (m *Memory) SendText(_ context.Context, templateID, phoneNumber string, personalisation map[string]string) error {
	m.record(Sent{Channel: "text", TemplateID: templateID, Destination: phoneNumber, Personalisation: personalisation})
	return nil
}

func (m *Memory) record(s Sent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, s)
}

// All returns a copy of everything sent so far.
func (m *Memory) All() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

// Last returns the most recent notification, or a zero value when none were
// sent.
func (m *Memory) Last() Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Sent{}
	}
	return m.sent[len(m.sent)-1]
}
