package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-auth/pkg/client"
	autherrors "github.com/tendant/simple-auth/pkg/errors"
	"github.com/tendant/simple-auth/pkg/ratelimit"
	"github.com/tendant/simple-auth/pkg/user"
)

// Registrar creates and activates self-registered accounts
type Registrar interface {
	Register(ctx context.Context, p user.RegisterParams) (user.User, error)
	Activate(ctx context.Context, token string) (user.User, error)
}

type Handle struct {
	service   *Service
	registrar Registrar
	captcha   CaptchaVerifier
}

type HandleOption func(*Handle)

// WithRegistration enables POST /register and GET /activate
func WithRegistration(registrar Registrar, captcha CaptchaVerifier) HandleOption {
	return func(h *Handle) {
		h.registrar = registrar
		h.captcha = captcha
	}
}

func NewHandle(service *Service, opts ...HandleOption) *Handle {
	h := &Handle{service: service}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the unauthenticated auth endpoints, normally under /api/auth
func (h *Handle) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.PostLogin)
	r.Post("/refresh", h.PostRefresh)
	if h.registrar != nil {
		r.Post("/register", h.PostRegister)
		r.Get("/activate", h.GetActivate)
	}
}

// RegisterUserRoutes mounts endpoints that need an authenticated identity
func (h *Handle) RegisterUserRoutes(r chi.Router) {
	r.With(client.RequireAuth).Get("/me", h.GetMe)
}

type loginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	CaptchaID   string `json:"captchaId"`
	CaptchaCode string `json:"captchaCode"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	CaptchaID   string `json:"captchaId"`
	CaptchaCode string `json:"captchaCode"`
	Locale      string `json:"locale"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// PostLogin authenticates a username and password
// (POST /login)
func (h *Handle) PostLogin(w http.ResponseWriter, r *http.Request) {
	var data loginRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		writeError(w, r, autherrors.InvalidInput("body", "unable to parse request body"))
		return
	}

	result, err := h.service.Login(r.Context(), LoginParams{
		Username:    data.Username,
		Password:    data.Password,
		CaptchaID:   data.CaptchaID,
		CaptchaCode: data.CaptchaCode,
		IP:          ratelimit.ClientIP(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, result)
}

// PostRefresh exchanges a refresh token for a new token pair
// (POST /refresh)
func (h *Handle) PostRefresh(w http.ResponseWriter, r *http.Request) {
	var data refreshRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		writeError(w, r, autherrors.InvalidInput("body", "unable to parse request body"))
		return
	}

	result, err := h.service.Refresh(r.Context(), data.RefreshToken)
	if err != nil {
		slog.Info("Token refresh rejected", "error", err)
		writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, result)
}

// PostRegister creates a pending account
// (POST /register)
func (h *Handle) PostRegister(w http.ResponseWriter, r *http.Request) {
	var data registerRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		writeError(w, r, autherrors.InvalidInput("body", "unable to parse request body"))
		return
	}

	if !h.captcha.Verify(r.Context(), data.CaptchaID, data.CaptchaCode) {
		writeError(w, r, autherrors.New(autherrors.ErrCodeCaptchaInvalid, "invalid captcha"))
		return
	}

	_, err := h.registrar.Register(r.Context(), user.RegisterParams{
		Username: data.Username,
		Password: data.Password,
		Email:    data.Email,
		Locale:   data.Locale,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, messageResponse{Message: "Registration successful, check your email to activate your account"})
}

// GetActivate activates the account holding the token
// (GET /activate?token=)
func (h *Handle) GetActivate(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, r, autherrors.New(autherrors.ErrCodeActivationTokenInvalid, "activation token is required"))
		return
	}

	if _, err := h.registrar.Activate(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, messageResponse{Message: "Account activated"})
}

// GetMe returns the caller's identity
// (GET /me)
func (h *Handle) GetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := client.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, autherrors.New(autherrors.ErrCodeUnauthorized, "authentication required"))
		return
	}
	render.JSON(w, r, id)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := autherrors.ToResponse(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	if body.Code == autherrors.ErrCodeUserLocked {
		minutes, _ := body.Details["lockout_minutes"].(int64)
		w.Header().Set("Retry-After", strconv.FormatInt(max(minutes, 1)*60, 10))
	}

	render.Status(r, status)
	render.JSON(w, r, body)
}
