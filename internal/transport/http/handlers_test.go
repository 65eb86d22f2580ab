package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signon/internal/directory"
	"signon/internal/directory/auth"
	"signon/internal/identity"
	"signon/internal/mfa"
	"signon/internal/notify"
	"signon/internal/platform/config"
	"signon/internal/retries"
	"signon/internal/session"
	"signon/internal/token"
	"signon/internal/verify"
)

// emptyDir stands in for an upstream directory with no accounts.
type emptyDir struct{ source directory.Source }

func (d emptyDir) Source() directory.Source { return d.source }
func (d emptyDir) Authenticate(context.Context, string, string) (bool, error) {
	return false, nil
}
func (d emptyDir) FindByUsername(context.Context, string) (*directory.Record, error) {
	return nil, nil
}
func (d emptyDir) FindByEmail(context.Context, string) ([]directory.Record, error) {
	return nil, nil
}

type server struct {
	router http.Handler
	users  *auth.InMemoryUserStore
	sent   *notify.Memory
}

func newServer(t *testing.T) *server {
	t.Helper()

	users := auth.NewInMemoryUserStore()
	authDir := auth.NewDirectory(users)
	nomis := emptyDir{source: directory.SourceNomis}
	delius := emptyDir{source: directory.SourceDelius}
	resolver := identity.NewResolver(authDir, nomis, delius)

	tokens, err := token.New(token.NewInMemoryStore(), config.TokenConfig{
		ResetTTL:      24 * time.Hour,
		VerifiedTTL:   24 * time.Hour,
		AccountTTL:    7 * 24 * time.Hour,
		MfaTTL:        20 * time.Minute,
		RememberMeTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	retrySvc, err := retries.New(retries.NewInMemoryStore(), identity.NewLocker(users, resolver), 3)
	require.NoError(t, err)

	verifier, err := verify.New(resolver, retrySvc, []directory.Directory{authDir, nomis, delius})
	require.NoError(t, err)

	sent := notify.NewMemory()
	notifyCfg := config.NotifyConfig{
		MfaEmailTemplate: "mfa-email",
		MfaTextTemplate:  "mfa-text",
		ResetTemplate:    "reset-password",
	}
	remember := mfa.NewRememberMe(config.RememberMeConfig{SigningKey: "test-signing-key", TTL: 7 * 24 * time.Hour})
	engine, err := mfa.New(tokens, retrySvc, resolver, sent, remember, notifyCfg,
		mfa.WithPreferenceStore(users))
	require.NoError(t, err)

	signer := session.NewSigner(config.SessionConfig{SigningKey: "test-signing-key", TTL: time.Hour})

	handler := NewHandler(HandlerConfig{
		Verifier:      verifier,
		Mfa:           engine,
		Resolver:      resolver,
		Tokens:        tokens,
		Passwords:     users,
		Unlocker:      retrySvc,
		Sessions:      signer,
		ResetSender:   sent,
		SessionVerify: signer,
		Notify:        notifyCfg,
	})
	return &server{router: NewRouter(handler), users: users, sent: sent}
}

func (s *server) addUser(t *testing.T, username, password string, mutate func(*directory.AuthUser)) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	user := directory.AuthUser{
		Username:      strings.ToUpper(username),
		PasswordHash:  hash,
		Email:         username + "@digital.justice.gov.uk",
		EmailVerified: true,
		MfaPreference: directory.MfaPreferenceEmail,
		Master:        true,
		Enabled:       true,
	}
	if mutate != nil {
		mutate(&user)
	}
	require.NoError(t, s.users.Save(context.Background(), user))
}

func (s *server) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestLoginFlow(t *testing.T) {
	t.Run("correct password leads to a challenge", func(t *testing.T) {
		s := newServer(t)
		s.addUser(t, "jsmith", "password123", nil)

		rec := s.do(t, http.MethodPost, "/login", loginRequest{Username: "jsmith", Password: "password123"}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[loginResponse](t, rec)
		assert.Equal(t, "mfa_required", resp.Status)
		require.NotNil(t, resp.Challenge)
		assert.Equal(t, "EMAIL", resp.Challenge.Channel)
		assert.NotContains(t, resp.Challenge.Destination, "jsmith@")
		assert.Empty(t, resp.SessionToken)
	})

	t.Run("wrong password is a 401", func(t *testing.T) {
		s := newServer(t)
		s.addUser(t, "jsmith", "password123", nil)

		rec := s.do(t, http.MethodPost, "/login", loginRequest{Username: "jsmith", Password: "nope"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", decode[map[string]string](t, rec)["error"])
	})

	t.Run("third wrong password locks the account", func(t *testing.T) {
		s := newServer(t)
		s.addUser(t, "jsmith", "password123", nil)

		for i := 0; i < 2; i++ {
			s.do(t, http.MethodPost, "/login", loginRequest{Username: "jsmith", Password: "nope"}, nil)
		}
		rec := s.do(t, http.MethodPost, "/login", loginRequest{Username: "jsmith", Password: "nope"}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "account_locked", decode[map[string]string](t, rec)["error"])
	})

	t.Run("missing fields are rejected", func(t *testing.T) {
		s := newServer(t)
		rec := s.do(t, http.MethodPost, "/login", loginRequest{Username: "jsmith"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMfaFlow(t *testing.T) {
	startChallenge := func(t *testing.T, s *server) *challengeBody {
		t.Helper()
		s.addUser(t, "jsmith", "password123", nil)
		rec := s.do(t, http.MethodPost, "/login", loginRequest{Username: "jsmith", Password: "password123"}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[loginResponse](t, rec)
		require.NotNil(t, resp.Challenge)
		return resp.Challenge
	}

	t.Run("valid code completes the login", func(t *testing.T) {
		s := newServer(t)
		challenge := startChallenge(t, s)
		code := s.sent.Last().Personalisation["code"]

		rec := s.do(t, http.MethodPost, "/mfa/validate", mfaValidateRequest{
			Token: challenge.Token, Code: code, Channel: challenge.Channel, RememberDevice: true,
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[mfaValidateResponse](t, rec)
		assert.Equal(t, "JSMITH", resp.Username)
		assert.NotEmpty(t, resp.SessionToken)
		assert.NotEmpty(t, resp.RememberToken)

		// A remembered device skips the next challenge.
		rec = s.do(t, http.MethodPost, "/login", loginRequest{
			Username: "jsmith", Password: "password123", RememberToken: resp.RememberToken,
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		login := decode[loginResponse](t, rec)
		assert.Equal(t, "success", login.Status)
		assert.NotEmpty(t, login.SessionToken)
	})

	t.Run("wrong code is a 401 and the third locks", func(t *testing.T) {
		s := newServer(t)
		challenge := startChallenge(t, s)

		for i := 0; i < 2; i++ {
			rec := s.do(t, http.MethodPost, "/mfa/validate", mfaValidateRequest{
				Token: challenge.Token, Code: "000000", Channel: challenge.Channel,
			}, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		}
		rec := s.do(t, http.MethodPost, "/mfa/validate", mfaValidateRequest{
			Token: challenge.Token, Code: "000000", Channel: challenge.Channel,
		}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "mfa_locked", decode[map[string]string](t, rec)["error"])
	})

	t.Run("resend returns a fresh challenge", func(t *testing.T) {
		s := newServer(t)
		challenge := startChallenge(t, s)

		rec := s.do(t, http.MethodPost, "/mfa/resend", mfaResendRequest{Token: challenge.Token}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		fresh := decode[challengeBody](t, rec)
		assert.NotEqual(t, challenge.Token, fresh.Token)

		code := s.sent.Last().Personalisation["code"]
		rec = s.do(t, http.MethodPost, "/mfa/validate", mfaValidateRequest{
			Token: fresh.Token, Code: code, Channel: fresh.Channel,
		}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("stale challenge token is a 404", func(t *testing.T) {
		s := newServer(t)
		rec := s.do(t, http.MethodPost, "/mfa/validate", mfaValidateRequest{
			Token: "bogus", Code: "123456", Channel: "EMAIL",
		}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestResetFlow(t *testing.T) {
	t.Run("request then confirm sets a new password and unlocks", func(t *testing.T) {
		s := newServer(t)
		s.addUser(t, "jsmith", "password123", nil)

		// Lock the account first.
		for i := 0; i < 3; i++ {
			s.do(t, http.MethodPost, "/login", loginRequest{Username: "jsmith", Password: "nope"}, nil)
		}

		rec := s.do(t, http.MethodPost, "/token/reset", resetRequest{Login: "jsmith"}, nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
		resetToken := s.sent.Last().Personalisation["token"]
		require.NotEmpty(t, resetToken)

		rec = s.do(t, http.MethodPost, "/token/reset/confirm", resetConfirmRequest{
			Token: resetToken, Password: "brand-new-password",
		}, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		// The account is usable again with the new password.
		rec = s.do(t, http.MethodPost, "/login", loginRequest{Username: "jsmith", Password: "brand-new-password"}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "mfa_required", decode[loginResponse](t, rec).Status)
	})

	t.Run("unknown account still answers 202", func(t *testing.T) {
		s := newServer(t)
		rec := s.do(t, http.MethodPost, "/token/reset", resetRequest{Login: "ghost"}, nil)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Empty(t, s.sent.All())
	})

	t.Run("a reset token is single use", func(t *testing.T) {
		s := newServer(t)
		s.addUser(t, "jsmith", "password123", nil)

		s.do(t, http.MethodPost, "/token/reset", resetRequest{Login: "jsmith"}, nil)
		resetToken := s.sent.Last().Personalisation["token"]

		rec := s.do(t, http.MethodPost, "/token/reset/confirm", resetConfirmRequest{
			Token: resetToken, Password: "brand-new-password",
		}, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = s.do(t, http.MethodPost, "/token/reset/confirm", resetConfirmRequest{
			Token: resetToken, Password: "another-password1",
		}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAccountSelection(t *testing.T) {
	const email = "shared@justice.gov.uk"

	twoAccounts := func(t *testing.T, s *server) {
		t.Helper()
		s.addUser(t, "jsmith", "password123", func(u *directory.AuthUser) {
			u.Email = email
		})
		s.addUser(t, "jsmith2", "password456", func(u *directory.AuthUser) {
			u.Email = email
		})
	}

	t.Run("candidates lists every match", func(t *testing.T) {
		s := newServer(t)
		twoAccounts(t, s)

		rec := s.do(t, http.MethodPost, "/account/candidates", candidatesRequest{Login: email}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[candidatesResponse](t, rec)
		assert.Len(t, resp.Options, 2)
		assert.False(t, resp.NoAccounts)
	})

	t.Run("no matches is a no-accounts outcome", func(t *testing.T) {
		s := newServer(t)
		rec := s.do(t, http.MethodPost, "/account/candidates", candidatesRequest{Login: "nobody@justice.gov.uk"}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[candidatesResponse](t, rec).NoAccounts)
	})

	t.Run("selecting an offered account continues the login", func(t *testing.T) {
		s := newServer(t)
		twoAccounts(t, s)

		rec := s.do(t, http.MethodPost, "/account/select", selectRequest{
			Login: email, Source: "auth", Username: "JSMITH2",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[loginResponse](t, rec)
		assert.Equal(t, "mfa_required", resp.Status)
		assert.Equal(t, "JSMITH2", resp.Username)
	})

	t.Run("a tampered selection is rejected", func(t *testing.T) {
		s := newServer(t)
		twoAccounts(t, s)
		s.addUser(t, "victim", "password789", nil)

		rec := s.do(t, http.MethodPost, "/account/select", selectRequest{
			Login: email, Source: "auth", Username: "VICTIM",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_selection", decode[map[string]string](t, rec)["error"])
	})
}

func TestUpdatePreferenceEndpoint(t *testing.T) {
	login := func(t *testing.T, s *server) string {
		t.Helper()
		rec := s.do(t, http.MethodPost, "/login", loginRequest{Username: "jsmith", Password: "password123"}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		challenge := decode[loginResponse](t, rec).Challenge
		code := s.sent.Last().Personalisation["code"]
		rec = s.do(t, http.MethodPost, "/mfa/validate", mfaValidateRequest{
			Token: challenge.Token, Code: code, Channel: challenge.Channel,
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		return decode[mfaValidateResponse](t, rec).SessionToken
	}

	t.Run("requires a session", func(t *testing.T) {
		s := newServer(t)
		rec := s.do(t, http.MethodPut, "/account/mfa-preference", preferenceRequest{Preference: "TEXT"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("updates the stored preference", func(t *testing.T) {
		s := newServer(t)
		s.addUser(t, "jsmith", "password123", func(u *directory.AuthUser) {
			u.Mobile = "07700900321"
			u.MobileVerified = true
		})
		sessionToken := login(t, s)

		rec := s.do(t, http.MethodPut, "/account/mfa-preference", preferenceRequest{Preference: "TEXT"},
			map[string]string{"Authorization": "Bearer " + sessionToken})
		require.Equal(t, http.StatusNoContent, rec.Code)

		saved, err := s.users.FindByUsername(context.Background(), "JSMITH")
		require.NoError(t, err)
		assert.Equal(t, directory.MfaPreferenceText, saved.MfaPreference)
	})

	t.Run("rejects an unverified channel", func(t *testing.T) {
		s := newServer(t)
		s.addUser(t, "jsmith", "password123", nil)
		sessionToken := login(t, s)

		rec := s.do(t, http.MethodPut, "/account/mfa-preference", preferenceRequest{Preference: "TEXT"},
			map[string]string{"Authorization": "Bearer " + sessionToken})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[healthResponse](t, rec).Status)
}
