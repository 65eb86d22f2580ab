package httptransport

import (
	"net/http"

	"signon/internal/directory"
	"signon/internal/platform/middleware"
	"signon/internal/transport/http/shared"
	dErrors "signon/pkg/domain-errors"
)

type mfaValidateRequest struct {
	Token          string `json:"token"`
	Code           string `json:"code"`
	Channel        string `json:"channel"`
	RememberDevice bool   `json:"remember_device,omitempty"`
}

type mfaValidateResponse struct {
	Status        string `json:"status"`
	Username      string `json:"username"`
	SessionToken  string `json:"session_token"`
	RememberToken string `json:"remember_token,omitempty"`
}

func (h *Handler) handleMfaValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req mfaValidateRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Token == "" || req.Code == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "token and code are required"))
		return
	}

	username, err := h.mfa.Validate(ctx, req.Token, req.Code, directory.MfaPreference(req.Channel))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	sessionToken, err := h.sessions.Issue(username)
	if err != nil {
		h.logger.ErrorContext(ctx, "session issue failed", "error", err)
		shared.WriteError(w, err)
		return
	}

	resp := mfaValidateResponse{
		Status:       "success",
		Username:     username,
		SessionToken: sessionToken,
	}
	if req.RememberDevice {
		rememberToken, err := h.mfa.RememberDevice(username)
		if err != nil {
			// The login itself succeeded; the convenience token is optional.
			h.logger.WarnContext(ctx, "remember-device token mint failed", "error", err)
		} else {
			resp.RememberToken = rememberToken
		}
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

type mfaResendRequest struct {
	Token   string `json:"token"`
	Channel string `json:"channel,omitempty"`
}

func (h *Handler) handleMfaResend(w http.ResponseWriter, r *http.Request) {
	var req mfaResendRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Token == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "token is required"))
		return
	}

	challenge, err := h.mfa.Resend(r.Context(), req.Token, directory.MfaPreference(req.Channel))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, challengeBody{
		Token:       challenge.Token,
		Channel:     string(challenge.Channel),
		Destination: challenge.DestinationMask,
	})
}

type preferenceRequest struct {
	Preference string `json:"preference"`
}

func (h *Handler) handleUpdatePreference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req preferenceRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	preference := directory.MfaPreference(req.Preference)
	switch preference {
	case directory.MfaPreferenceNone, directory.MfaPreferenceEmail,
		directory.MfaPreferenceSecondaryEmail, directory.MfaPreferenceText:
	default:
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown preference"))
		return
	}

	id, err := h.resolver.ResolveMaster(ctx, middleware.GetUsername(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.mfa.UpdatePreference(ctx, id, preference); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
