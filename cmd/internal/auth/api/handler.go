package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"taskbridge/cmd/internal/auth/bearer"
	"taskbridge/cmd/internal/auth/session"
)

// Resolver is the session lookup the handlers depend on.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (session.Identity, bool, error)
	Cookies() session.CookieNames
}

// Minter signs bearer tokens for resolved identities.
type Minter interface {
	Mint(id session.Identity) (bearer.Token, error)
}

// Handler serves the session query and token issuance endpoints.
type Handler struct {
	log      *slog.Logger
	resolver Resolver
	minter   Minter
	metrics  *Metrics
}

// NewHandler constructs a Handler. metrics may be nil.
func NewHandler(log *slog.Logger, resolver Resolver, minter Minter, metrics *Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, resolver: resolver, minter: minter, metrics: metrics}
}

// Register wires the endpoints onto r.
func (h *Handler) Register(r chi.Router) {
	if h == nil || r == nil {
		return
	}
	r.Get("/api/session", h.handleSession)
	r.Get("/api/auth/token", h.handleToken)
}

// handleSession answers 200 with {data:null} on Absence and 503 on
// infrastructure failure.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok, err := h.resolver.Resolve(r.Context(), r)
	switch {
	case errors.Is(err, session.ErrDuplicateSession):
		h.metrics.lookup(resultDuplicate)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	case err != nil:
		h.metrics.lookup(resultError)
		h.log.Error("auth.session.lookup.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "Session lookup unavailable")
		return
	case !ok:
		h.metrics.lookup(resultAbsent)
		writeJSON(w, http.StatusOK, sessionEnvelope{})
		return
	}

	h.metrics.lookup(resultFound)
	writeJSON(w, http.StatusOK, sessionEnvelope{Data: &sessionData{
		User:    toUserResponse(id.User),
		Session: toSessionResponse(id.Session),
	}})
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if !h.resolver.Cookies().Present(r) {
		h.metrics.token(outcomeNoCookie)
		writeError(w, http.StatusUnauthorized, "No session found")
		return
	}

	id, ok, err := h.resolver.Resolve(r.Context(), r)
	if err != nil {
		h.metrics.token(outcomeFailed)
		h.log.Error("auth.token.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	if !ok {
		h.metrics.token(outcomeNoSession)
		writeError(w, http.StatusUnauthorized, "Session expired or invalid")
		return
	}

	tok, err := h.minter.Mint(id)
	switch {
	case errors.Is(err, bearer.ErrSecretMissing):
		h.metrics.token(outcomeMisconfig)
		h.log.Error("auth.token.secret_missing")
		writeError(w, http.StatusInternalServerError, "Server configuration error")
		return
	case errors.Is(err, bearer.ErrSessionExpired):
		// Expired between lookup and signing.
		h.metrics.token(outcomeNoSession)
		writeError(w, http.StatusUnauthorized, "Session expired or invalid")
		return
	case err != nil:
		h.metrics.token(outcomeFailed)
		h.log.Error("auth.token.mint.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.metrics.token(outcomeIssued)
	h.log.Debug("auth.token.issued", "user_id", tok.UserID, "expires_at", tok.ExpiresAt)
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     tok.Value,
		UserID:    tok.UserID,
		ExpiresAt: formatTime(tok.ExpiresAt),
	})
}
