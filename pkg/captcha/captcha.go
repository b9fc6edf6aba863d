// Package captcha issues image challenges and verifies the answers.
//
// A challenge is a 4 character code drawn from an alphabet without look-alike
// characters, rendered into a 120x40 PNG and returned as a data URI. The code is kept
// in a Store for a few minutes. Verification is case-insensitive and consumes the
// challenge only when it succeeds.
package captcha

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Alphabet omits I, O, 0 and 1
	Alphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength = 4
	DefaultTTL = 5 * time.Minute
)

// Challenge is what the client receives
type Challenge struct {
	ID    string `json:"captchaId"`
	Image string `json:"image"`
}

// Service issues and checks captchas
type Service struct {
	store Store
	ttl   time.Duration
}

func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, ttl: ttl}
}

func newCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// len(Alphabet) divides 256, so the modulo is unbiased
	for i, b := range buf {
		buf[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(buf), nil
}

// Generate creates and stores a new challenge
func (s *Service) Generate(ctx context.Context) (Challenge, error) {
	code, err := newCode()
	if err != nil {
		return Challenge{}, fmt.Errorf("failed to generate captcha code: %w", err)
	}

	img, err := renderPNG(code)
	if err != nil {
		return Challenge{}, fmt.Errorf("failed to render captcha: %w", err)
	}

	id := uuid.NewString()
	if err := s.store.Set(ctx, id, code, s.ttl); err != nil {
		return Challenge{}, err
	}

	return Challenge{
		ID:    id,
		Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
	}, nil
}

// Verify reports whether code answers challenge id. A correct answer consumes the challenge.
func (s *Service) Verify(ctx context.Context, id, code string) bool {
	if id == "" || code == "" {
		return false
	}

	ok, err := s.store.Consume(ctx, id, strings.TrimSpace(code))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("Failed to verify captcha", "captcha_id", id, "error", err)
		}
		return false
	}
	return ok
}
