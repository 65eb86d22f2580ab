package httptransport

import (
	"net/http"

	"signon/internal/directory"
	"signon/internal/identity"
	"signon/internal/transport/http/shared"
	dErrors "signon/pkg/domain-errors"
)

type candidatesRequest struct {
	Login string `json:"login"`
}

type candidatesResponse struct {
	identity.Prompt
	// Unavailable names directories that could not be searched, so the
	// caller can explain why an expected account might be missing.
	Unavailable []directory.Source `json:"unavailable,omitempty"`
}

// handleCandidates serves the disambiguation step for federated logins whose
// verified email may match several accounts.
func (h *Handler) handleCandidates(w http.ResponseWriter, r *http.Request) {
	var req candidatesRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Login == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "login is required"))
		return
	}

	candidates, err := h.resolver.ResolveCandidates(r.Context(), req.Login)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, candidatesResponse{
		Prompt:      identity.Present(candidates),
		Unavailable: candidates.Unavailable,
	})
}

type selectRequest struct {
	Login         string `json:"login"`
	Source        string `json:"source"`
	Username      string `json:"username"`
	RememberToken string `json:"remember_token,omitempty"`
}

// handleSelect records a federated login's account choice. The candidates
// are resolved again server side so a tampered selection cannot smuggle in
// an account that was never offered.
func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req selectRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Login == "" || req.Username == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "login and username are required"))
		return
	}

	candidates, err := h.resolver.ResolveCandidates(ctx, req.Login)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	chosen, err := identity.Choose(candidates, directory.Source(req.Source), req.Username)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	// The chosen candidate may be a thin record; the master carries the
	// merged contact details the challenge needs.
	id, err := h.resolver.ResolveMaster(ctx, chosen.Username)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if id.Locked {
		shared.WriteError(w, dErrors.New(dErrors.CodeAccountLocked, "the account is locked"))
		return
	}

	h.completeLogin(ctx, w, id, req.RememberToken, h.trustedNetwork(r))
}
