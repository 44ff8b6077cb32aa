// Package service implements creating and consuming one-time secrets on
// top of a store.Store.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"burn.note/internal/codec"
	"burn.note/internal/ident"
	"burn.note/internal/models"
	"burn.note/internal/store"
)

const (
	DefaultTTL         = time.Hour
	DefaultMaxFileSize = 1024 * 1024

	// ids are not checked up front; Put refuses live ones and we draw again.
	maxIDAttempts = 3
)

type Options struct {
	DefaultTTL time.Duration
	// MaxTTL clamps requested expiries; zero means no limit.
	MaxTTL time.Duration
	// MaxFileSize bounds the encoded data URI length in Unicode code
	// points, not the decoded bytes, so real files get roughly a quarter
	// less than this. Browsers count UTF-16 units instead; the two only
	// differ outside the BMP, which base64 never produces.
	MaxFileSize int
}

type Secrets struct {
	store store.Store
	opts  Options
	log   *zap.Logger
	newID func() (string, error)
}

func NewSecrets(st store.Store, opts Options, log *zap.Logger) *Secrets {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return &Secrets{
		store: st,
		opts:  opts,
		log:   log,
		newID: ident.Generate,
	}
}

// Create validates and stores a secret, returning its id. ttlSeconds of
// zero selects the default expiry.
func (s *Secrets) Create(ctx context.Context, content string, kind models.Kind, ttlSeconds int64) (string, error) {
	if content == "" {
		return "", ErrContentRequired
	}
	if kind == "" {
		kind = models.KindText
	}
	if kind == models.KindFile && utf8.RuneCountInString(content) > s.opts.MaxFileSize {
		return "", ErrPayloadTooLarge
	}
	if !kind.Valid() {
		return "", ErrInvalidKind
	}

	ttl, err := s.ttl(ttlSeconds)
	if err != nil {
		return "", err
	}

	value, err := codec.Encode(content, kind)
	if err != nil {
		return "", err
	}

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", err
		}

		err = s.store.Put(ctx, id, value, ttl)
		if err == nil {
			s.log.Debug("secret created",
				zap.String("kind", string(kind)),
				zap.Duration("ttl", ttl),
				zap.Int("size", len(content)),
			)
			return id, nil
		}
		if !errors.Is(err, store.ErrExists) {
			return "", fmt.Errorf("store secret: %w", err)
		}
		s.log.Warn("secret id collision", zap.Int("attempt", attempt))
	}

	return "", fmt.Errorf("store secret: %w after %d attempts", store.ErrExists, maxIDAttempts)
}

// Retrieve consumes the secret: it is deleted by the same store call that
// returns it. A decode failure still leaves it deleted.
func (s *Secrets) Retrieve(ctx context.Context, id string) (*models.Secret, error) {
	if !ident.Valid(id) {
		return nil, ErrNotFound
	}

	value, err := s.store.Take(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("take secret: %w", err)
	}

	content, kind, err := codec.Decode(value)
	if err != nil {
		return nil, err
	}

	return &models.Secret{ID: id, Content: content, Kind: kind}, nil
}

func (s *Secrets) ttl(seconds int64) (time.Duration, error) {
	if seconds < 0 {
		return 0, ErrInvalidTTL
	}
	if seconds == 0 {
		return s.opts.DefaultTTL, nil
	}
	if seconds > int64(maxDuration/time.Second) {
		seconds = int64(maxDuration / time.Second)
	}

	ttl := time.Duration(seconds) * time.Second
	if s.opts.MaxTTL > 0 && ttl > s.opts.MaxTTL {
		return s.opts.MaxTTL, nil
	}
	return ttl, nil
}

const maxDuration = time.Duration(1<<63 - 1)
