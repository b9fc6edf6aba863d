package captcha

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	autherrors "github.com/tendant/simple-auth/pkg/errors"
)

// Handle serves captcha challenges
type Handle struct {
	service *Service
}

func NewHandle(service *Service) *Handle {
	return &Handle{service: service}
}

// RegisterRoutes mounts GET / on r. Request throttling is applied by the caller.
func (h *Handle) RegisterRoutes(r chi.Router) {
	r.Get("/", h.GetCaptcha)
}

// GetCaptcha issues a new challenge
// (GET /api/captcha)
func (h *Handle) GetCaptcha(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.service.Generate(r.Context())
	if err != nil {
		slog.Error("Failed to generate captcha", "error", err)
		status, body := autherrors.ToResponse(autherrors.InternalWrap(err, "failed to generate captcha"))
		render.Status(r, status)
		render.JSON(w, r, body)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, challenge)
}
