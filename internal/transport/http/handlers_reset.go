package httptransport

import (
	"context"
	"net/http"
	"time"

	"signon/internal/directory/auth"
	"signon/internal/token"
	"signon/internal/transport/http/shared"
	dErrors "signon/pkg/domain-errors"
)

// Local passwords expire and must be rotated; matches the directory policy
// for staff accounts.
const passwordLifetime = 90 * 24 * time.Hour

type resetRequest struct {
	Login string `json:"login"`
}

// handleResetRequest issues a reset token and emails it. The response is the
// same whether or not an account exists, so the endpoint cannot be used to
// probe for usernames.
func (h *Handler) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resetRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Login == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "login is required"))
		return
	}

	if err := h.sendResetLink(ctx, req.Login); err != nil {
		h.logger.InfoContext(ctx, "reset link not sent", "error", err)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) sendResetLink(ctx context.Context, login string) error {
	id, err := h.resolver.ResolveMaster(ctx, login)
	if err != nil {
		return err
	}
	if !id.EmailVerified || id.Email == "" {
		return dErrors.New(dErrors.CodeNoVerifiedContact, "no verified email for reset")
	}

	issued, err := h.tokens.Issue(ctx, id.Username, token.TypeReset)
	if err != nil {
		return err
	}
	return h.sender.SendEmail(ctx, h.notify.ResetTemplate, id.Email, map[string]string{
		"token": issued.Value,
	})
}

type resetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// handleResetConfirm consumes the reset token, stores the new password, and
// clears any lockout. Only locally mastered accounts hold a password here;
// prison and probation passwords change in their own systems.
func (h *Handler) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resetConfirmRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Token == "" || len(req.Password) < 9 {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "password must be at least 9 characters"))
		return
	}

	owner, err := h.tokens.Consume(ctx, token.TypeReset, req.Token)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.passwords.FindByUsername(ctx, owner)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if !user.Master {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "password is managed by the owning system"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "hash password"))
		return
	}
	user.PasswordHash = hash
	user.PasswordExpiry = time.Now().Add(passwordLifetime)
	if err := h.passwords.Save(ctx, user); err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "save password"))
		return
	}
	if err := h.unlocker.Unlock(ctx, owner); err != nil {
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "password reset completed", "username", owner)
	w.WriteHeader(http.StatusNoContent)
}
