package identity

import (
	"strings"

	"signon/internal/directory"
	dErrors "signon/pkg/domain-errors"
)

// PromptOption is one row of a disambiguation prompt.
type PromptOption struct {
	Source   directory.Source `json:"source"`
	Username string           `json:"username"`
}

// Prompt is what a federated login sees when its email matches several
// accounts. NoAccounts is a legitimate state, not an error: the person signed
// in upstream but holds no account here, so they get an empty-permissions
// landing rather than a failure page.
type Prompt struct {
	Options    []PromptOption `json:"options"`
	NoAccounts bool           `json:"no_accounts"`
}

// Implicit reports whether selection can be skipped because exactly one
// account matched.
func (p Prompt) Implicit() bool { return len(p.Options) == 1 }

// Present builds the disambiguation prompt for a candidate set.
func Present(candidates Candidates) Prompt {
	if len(candidates.Identities) == 0 {
		return Prompt{NoAccounts: true}
	}
	options := make([]PromptOption, 0, len(candidates.Identities))
	for _, candidate := range candidates.Identities {
		options = append(options, PromptOption{
			Source:   candidate.Source,
			Username: candidate.Username,
		})
	}
	return Prompt{Options: options}
}

// Choose validates a selection against the candidates it was offered from.
// The selection is untrusted form input, so anything outside the original
// set is rejected rather than looked up.
func Choose(candidates Candidates, source directory.Source, username string) (Identity, error) {
	for _, candidate := range candidates.Identities {
		if candidate.Source == source && strings.EqualFold(candidate.Username, username) {
			return candidate, nil
		}
	}
	return Identity{}, dErrors.New(dErrors.CodeInvalidSelection, "selected account was not offered")
}
