package captcha

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_GetCaptcha(t *testing.T) {
	store := NewMemoryStore()
	r := chi.NewRouter()
	r.Route("/api/captcha", NewHandle(NewService(store, time.Minute)).RegisterRoutes)

	req := httptest.NewRequest(http.MethodGet, "/api/captcha", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.NotEmpty(t, body["captchaId"])
	assert.True(t, strings.HasPrefix(body["image"], "data:image/png;base64,"))
	assert.Equal(t, 1, store.Len())
}
