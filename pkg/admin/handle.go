// Package admin exposes operator endpoints for the in-memory security state:
// throttle counters, the IP allow and deny sets, and login lockouts.
// Routes must be mounted behind client.RequireRole("ADMIN").
package admin

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-auth/pkg/client"
	autherrors "github.com/tendant/simple-auth/pkg/errors"
	"github.com/tendant/simple-auth/pkg/loginattempt"
	"github.com/tendant/simple-auth/pkg/ratelimit"
)

type SecurityHandle struct {
	throttle *ratelimit.Throttle
	tracker  *loginattempt.Tracker
}

func NewSecurityHandle(throttle *ratelimit.Throttle, tracker *loginattempt.Tracker) *SecurityHandle {
	return &SecurityHandle{throttle: throttle, tracker: tracker}
}

// RegisterRoutes mounts the endpoints, normally under /api/admin/security
func (h *SecurityHandle) RegisterRoutes(r chi.Router) {
	r.Get("/throttle", h.GetThrottle)
	r.Post("/throttle/{ip}/reset", h.PostResetIP)

	r.Post("/allowlist", h.PostAllowlist)
	r.Delete("/allowlist/{ip}", h.DeleteAllowlist)
	r.Post("/denylist", h.PostDenylist)
	r.Delete("/denylist/{ip}", h.DeleteDenylist)

	r.Get("/login-attempts/{key}", h.GetLoginAttempts)
	r.Post("/login-attempts/{key}/reset", h.PostResetLoginAttempts)
}

type ipRequest struct {
	IP string `json:"ip"`
}

type throttleResponse struct {
	ratelimit.Stats
	ratelimit.Lists
}

type loginAttemptsResponse struct {
	Key               string `json:"key"`
	Blocked           bool   `json:"blocked"`
	RemainingAttempts int    `json:"remaining_attempts"`
	LockoutMinutes    int64  `json:"lockout_minutes"`
}

func writeError(w http.ResponseWriter, r *http.Request, err *autherrors.Error) {
	status, body := autherrors.ToResponse(err)
	render.Status(r, status)
	render.JSON(w, r, body)
}

func parseIP(raw string) (string, *autherrors.Error) {
	ip := net.ParseIP(raw)
	if ip == nil {
		return "", autherrors.InvalidInput("ip", "not an IP address")
	}
	return ip.String(), nil
}

func decodeIP(r *http.Request) (string, *autherrors.Error) {
	var data ipRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		return "", autherrors.InvalidInput("body", "unable to parse request body")
	}
	return parseIP(data.IP)
}

func actor(r *http.Request) string {
	if id, ok := client.IdentityFromContext(r.Context()); ok {
		return id.Username
	}
	return ""
}

// GetThrottle returns throttle statistics and the allow and deny sets
// (GET /throttle)
func (h *SecurityHandle) GetThrottle(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, throttleResponse{Stats: h.throttle.GetStats(), Lists: h.throttle.Lists()})
}

// PostResetIP clears the request counter of an IP
// (POST /throttle/{ip}/reset)
func (h *SecurityHandle) PostResetIP(w http.ResponseWriter, r *http.Request) {
	ip, err := parseIP(chi.URLParam(r, "ip"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.throttle.Reset(ip)
	slog.Info("Admin reset throttle counter", "ip", ip, "admin", actor(r))
	w.WriteHeader(http.StatusNoContent)
}

// (POST /allowlist)
func (h *SecurityHandle) PostAllowlist(w http.ResponseWriter, r *http.Request) {
	ip, err := decodeIP(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.throttle.AddToAllowlist(ip)
	slog.Info("Admin allowlisted IP", "ip", ip, "admin", actor(r))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.throttle.Lists())
}

// (DELETE /allowlist/{ip})
func (h *SecurityHandle) DeleteAllowlist(w http.ResponseWriter, r *http.Request) {
	ip, err := parseIP(chi.URLParam(r, "ip"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.throttle.RemoveFromAllowlist(ip)
	w.WriteHeader(http.StatusNoContent)
}

// (POST /denylist)
func (h *SecurityHandle) PostDenylist(w http.ResponseWriter, r *http.Request) {
	ip, err := decodeIP(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.throttle.AddToDenylist(ip)
	slog.Info("Admin denylisted IP", "ip", ip, "admin", actor(r))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.throttle.Lists())
}

// (DELETE /denylist/{ip})
func (h *SecurityHandle) DeleteDenylist(w http.ResponseWriter, r *http.Request) {
	ip, err := parseIP(chi.URLParam(r, "ip"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.throttle.RemoveFromDenylist(ip)
	w.WriteHeader(http.StatusNoContent)
}

// GetLoginAttempts describes the lockout state of a login key
// (GET /login-attempts/{key})
func (h *SecurityHandle) GetLoginAttempts(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	render.JSON(w, r, loginAttemptsResponse{
		Key:               key,
		Blocked:           h.tracker.IsBlocked(key),
		RemainingAttempts: h.tracker.RemainingAttempts(key),
		LockoutMinutes:    h.tracker.LockoutRemainingMinutes(key),
	})
}

// PostResetLoginAttempts unlocks a login key
// (POST /login-attempts/{key}/reset)
func (h *SecurityHandle) PostResetLoginAttempts(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	h.tracker.Reset(key)
	slog.Info("Admin reset login attempts", "key", key, "admin", actor(r))
	w.WriteHeader(http.StatusNoContent)
}
