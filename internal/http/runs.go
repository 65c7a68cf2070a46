package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"hordeforge/engine/internal/auth"
	"hordeforge/engine/internal/logging"
	"hordeforge/engine/internal/player"
	"hordeforge/engine/internal/progression"
	"hordeforge/engine/internal/session"
	"hordeforge/engine/internal/upgrades"
)

const (
	// RunTokenHeader carries a run token when the Authorization header is unavailable.
	RunTokenHeader = "X-Run-Token"
	maxBodyBytes   = 64 << 10
)

type runHandler func(w http.ResponseWriter, r *http.Request, s *session.Session, logger *logging.Logger)

// StartRunResponse is returned by POST /runs.
type StartRunResponse struct {
	Run       progression.Snapshot `json:"run"`
	Token     string               `json:"token,omitempty"`
	ExpiresAt *time.Time           `json:"expiresAt,omitempty"`
}

type chooseRequest struct {
	UpgradeID string `json:"upgradeId"`
}

// CatalogHandler lists the upgrade pool and any entries rejected as malformed.
func (h *HandlerSet) CatalogHandler() http.HandlerFunc {
	type response struct {
		Upgrades  []*upgrades.Definition `json:"upgrades"`
		Malformed map[string]string      `json:"malformed,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		catalog := h.runs.Catalog()
		resp := response{Upgrades: catalog.All()}
		if malformed := catalog.Malformed(); len(malformed) > 0 {
			resp.Malformed = make(map[string]string, len(malformed))
			for key, err := range malformed {
				resp.Malformed[key] = err.Error()
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// LoadoutsHandler lists character loadouts and the shop scaling table.
func (h *HandlerSet) LoadoutsHandler() http.HandlerFunc {
	type response struct {
		Loadouts []player.Loadout  `json:"loadouts"`
		Shop     player.ShopTuning `json:"shop"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{Loadouts: player.Loadouts(), Shop: player.Shop()})
	}
}

// StartRunHandler creates a run and, when tokens are enabled, returns its token.
func (h *HandlerSet) StartRunHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.LoggerFromContext(r.Context()).With(logging.String("handler", "start_run"))
		if !h.rateLimiter.Allow(clientKey(r)) {
			logger.Warn("run start denied: rate limit exceeded", logging.String("client", clientKey(r)))
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		var req session.StartRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s, err := h.runs.Start(req)
		if err != nil {
			logger.Warn("run start failed", logging.Error(err))
			writeError(w, statusFor(err), err.Error())
			return
		}
		snapshot, err := s.Snapshot()
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		resp := StartRunResponse{Run: snapshot}
		if h.tokens != nil {
			token, expires, err := h.tokens.Issue(s.ID(), s.Loadout())
			if err != nil {
				logger.Error("run token issue failed", logging.Error(err))
				_ = h.runs.Finish(s.ID())
				writeError(w, http.StatusInternalServerError, "failed to issue run token")
				return
			}
			resp.Token = token
			resp.ExpiresAt = &expires
		}
		logger.Info("run started", logging.String(logging.RunIDField, s.ID()), logging.String("loadout", s.Loadout()))
		writeJSON(w, http.StatusCreated, resp)
	}
}

// withRun resolves {id}, checks the run token and scopes the logger to the run.
func (h *HandlerSet) withRun(next runHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		logger := logging.LoggerFromContext(r.Context()).ForRun(id)
		s, err := h.runs.Get(id)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		if h.tokens != nil {
			token := requestToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing run token")
				return
			}
			if _, err := h.tokens.VerifyRun(token, id); err != nil {
				logger.Warn("run token rejected", logging.Error(err))
				writeError(w, statusFor(err), "invalid run token")
				return
			}
		}
		next(w, r, s, logger)
	}
}

func (h *HandlerSet) snapshotRun(w http.ResponseWriter, r *http.Request, s *session.Session, _ *logging.Logger) {
	snapshot, err := s.Snapshot()
	respond(w, snapshot, err)
}

func (h *HandlerSet) finishRun(w http.ResponseWriter, r *http.Request, s *session.Session, logger *logging.Logger) {
	if err := h.runs.Finish(s.ID()); err != nil {
		if errors.Is(err, session.ErrUnknownRun) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		logger.Error("journal close failed", logging.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HandlerSet) levelUp(w http.ResponseWriter, r *http.Request, s *session.Session, _ *logging.Logger) {
	snapshot, err := s.LevelUp()
	respond(w, snapshot, err)
}

func (h *HandlerSet) choose(w http.ResponseWriter, r *http.Request, s *session.Session, logger *logging.Logger) {
	var req chooseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UpgradeID) == "" {
		writeError(w, http.StatusBadRequest, "upgradeId is required")
		return
	}
	snapshot, err := s.Choose(req.UpgradeID)
	if errors.Is(err, progression.ErrInvariantViolated) {
		//1.- The choice was applied and the offer closed; report the run as it now stands.
		logger.Error("choice broke a progression invariant", logging.Error(err))
		err = nil
	}
	respond(w, snapshot, err)
}

func (h *HandlerSet) decline(w http.ResponseWriter, r *http.Request, s *session.Session, _ *logging.Logger) {
	snapshot, err := s.Decline()
	respond(w, snapshot, err)
}

func (h *HandlerSet) kill(w http.ResponseWriter, r *http.Request, s *session.Session, _ *logging.Logger) {
	snapshot, err := s.RecordKill()
	respond(w, snapshot, err)
}

func respond(w http.ResponseWriter, snapshot progression.Snapshot, err error) {
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var unknown *progression.UnknownCommandError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, session.ErrUnknownRun):
		return http.StatusNotFound
	case errors.Is(err, session.ErrRegistryFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, progression.ErrNoPendingOffer):
		return http.StatusConflict
	case errors.Is(err, progression.ErrNotOffered),
		errors.Is(err, player.ErrUnknownLoadout),
		errors.As(err, &unknown):
		return http.StatusBadRequest
	case errors.Is(err, player.ErrLoadoutLocked):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrWrongRun):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func requestToken(r *http.Request) string {
	if token := auth.BearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if token := strings.TrimSpace(r.Header.Get(RunTokenHeader)); token != "" {
		return token
	}
	// Browsers cannot set headers on websocket upgrades.
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
