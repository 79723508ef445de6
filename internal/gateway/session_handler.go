package gateway

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/etendo/erp-gateway/internal/auth"
	"github.com/etendo/erp-gateway/internal/utils"
)

// maxSessionBodySize bounds the registration payload.
const maxSessionBodySize = 64 * 1024

// sessionStatus is the GET /api/erp-session response. The artifacts
// themselves are never returned.
type sessionStatus struct {
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// handleMissingToken rejects calls without a bearer token.
func (g *Gateway) handleMissingToken(w http.ResponseWriter, r *http.Request) {
	g.metrics.RecordError(string(ErrAuthenticationMissing))
	writeProxyError(w, authenticationMissing())
}

// handleSession lets the login flow hand legacy artifacts to the gateway
// (POST), drop them at logout (DELETE) and check them (GET). It runs behind
// auth.RequireBearer.
func (g *Gateway) handleSession(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromContext(r.Context())

	switch r.Method {
	case http.MethodPost:
		g.registerSession(w, r, token)
	case http.MethodDelete:
		if err := g.sessions.Clear(r.Context(), token); err != nil {
			log.Error().Err(err).Str("token", utils.MaskKey(token)).Msg("session clear failed")
			writeError(w, http.StatusInternalServerError, "failed to clear session")
			return
		}
		log.Info().Str("token", utils.MaskKey(token)).Msg("legacy session cleared")
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		entry, found, err := g.sessions.Get(r.Context(), token)
		if err != nil {
			log.Error().Err(err).Str("token", utils.MaskKey(token)).Msg("session lookup failed")
			writeError(w, http.StatusInternalServerError, "failed to read session")
			return
		}
		status := sessionStatus{Active: found}
		if found {
			status.CreatedAt = entry.CreatedAt.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, status)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
}

func (g *Gateway) registerSession(w http.ResponseWriter, r *http.Request, token string) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSessionBodySize))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, msgRequestBodyTooBig)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
		return
	}
	if !gjson.ValidBytes(body) {
		writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
		return
	}

	cookie := strings.TrimSpace(gjson.GetBytes(body, "cookie").String())
	csrf := strings.TrimSpace(gjson.GetBytes(body, "csrfToken").String())
	if cookie == "" {
		writeError(w, http.StatusBadRequest, "cookie is required")
		return
	}

	if err := g.sessions.Set(r.Context(), token, cookie, csrf); err != nil {
		log.Error().Err(err).Str("token", utils.MaskKey(token)).Msg("session store failed")
		writeError(w, http.StatusInternalServerError, "failed to store session")
		return
	}
	log.Info().
		Str("token", utils.MaskKey(token)).
		Bool("csrf", csrf != "").
		Msg("legacy session registered")
	w.WriteHeader(http.StatusNoContent)
}
