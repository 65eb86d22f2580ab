package httptransport

import (
	"context"
	"net/http"

	"signon/internal/identity"
	"signon/internal/transport/http/shared"
	dErrors "signon/pkg/domain-errors"
)

type loginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	RememberToken string `json:"remember_token,omitempty"`
}

type loginResponse struct {
	Status       string `json:"status"`
	Username     string `json:"username,omitempty"`
	SessionToken string `json:"session_token,omitempty"`

	Challenge *challengeBody `json:"challenge,omitempty"`
}

type challengeBody struct {
	Token       string `json:"token"`
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "username and password are required"))
		return
	}

	id, err := h.verifier.Verify(ctx, req.Username, req.Password)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	h.completeLogin(ctx, w, id, req.RememberToken, h.trustedNetwork(r))
}

// completeLogin finishes a verified login: either the caller gets a session
// straight away, or a challenge they must validate first. Shared with the
// federated account-selection flow.
func (h *Handler) completeLogin(ctx context.Context, w http.ResponseWriter, id identity.Identity, rememberToken string, trustedNetwork bool) {
	if !h.mfa.NeedsMfa(id, rememberToken, trustedNetwork) {
		sessionToken, err := h.sessions.Issue(id.Username)
		if err != nil {
			h.logger.ErrorContext(ctx, "session issue failed", "error", err)
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, loginResponse{
			Status:       "success",
			Username:     id.Username,
			SessionToken: sessionToken,
		})
		return
	}

	challenge, err := h.mfa.Start(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, loginResponse{
		Status:   "mfa_required",
		Username: id.Username,
		Challenge: &challengeBody{
			Token:       challenge.Token,
			Channel:     string(challenge.Channel),
			Destination: challenge.DestinationMask,
		},
	})
}
