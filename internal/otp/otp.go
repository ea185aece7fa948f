// Package otp issues and verifies the one-time codes of the login second factor.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/richxcame/pizzaguard/pkg/cache"
	"github.com/richxcame/pizzaguard/pkg/common"
	"github.com/richxcame/pizzaguard/pkg/config"
	"github.com/richxcame/pizzaguard/pkg/logger"
	redisclient "github.com/richxcame/pizzaguard/pkg/redis"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Sender delivers a code to the user.
type Sender interface {
	SendOTP(ctx context.Context, to, code string) error
}

// Challenge describes an issued code without revealing it.
type Challenge struct {
	Destination string    `json:"destination"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type record struct {
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps pending codes and counts verification attempts atomically.
type Store interface {
	cache.Store
	IncrWithExpiration(ctx context.Context, key string, expiration time.Duration) (int64, error)
}

// Settings configures code length, lifetime and verification attempts.
type Settings struct {
	Length      int
	TTL         time.Duration
	MaxAttempts int
}

// SettingsFromConfig extracts OTP settings.
func SettingsFromConfig(cfg config.OTPConfig) Settings {
	return Settings{Length: cfg.Length, TTL: cfg.TTL, MaxAttempts: cfg.MaxAttempts}
}

// Service stores bcrypt hashes of issued codes in Redis.
type Service struct {
	store    Store
	cache    *cache.Manager
	sender   Sender
	settings Settings
	cost     int
}

// NewService creates a new OTP service
func NewService(store Store, sender Sender, settings Settings) *Service {
	if settings.Length <= 0 {
		settings.Length = 6
	}
	if settings.TTL <= 0 {
		settings.TTL = 10 * time.Minute
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = 5
	}
	return &Service{
		store:    store,
		cache:    cache.NewManager(store),
		sender:   sender,
		settings: settings,
		cost:     bcrypt.DefaultCost,
	}
}

// Issue generates a code for userID, replaces any pending one and sends it to phone.
func (s *Service) Issue(ctx context.Context, userID, phone string, now time.Time) (*Challenge, error) {
	code, err := generateCode(s.settings.Length)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}

	rec := record{Hash: string(hash), ExpiresAt: now.Add(s.settings.TTL)}
	if err := s.cache.Delete(ctx, cache.Keys.OTPAttempts(userID)); err != nil {
		return nil, fmt.Errorf("reset otp attempts: %w", err)
	}
	if err := s.cache.Set(ctx, cache.Keys.OTP(userID), rec, s.settings.TTL); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	if err := s.sender.SendOTP(ctx, phone, code); err != nil {
		_ = s.cache.Delete(ctx, cache.Keys.OTP(userID))
		return nil, fmt.Errorf("send otp: %w", err)
	}

	logger.SecurityInfo(ctx, "otp issued",
		zap.String("user_id", userID),
		zap.String("destination", maskPhone(phone)),
	)

	return &Challenge{Destination: maskPhone(phone), ExpiresAt: rec.ExpiresAt}, nil
}

// Verify checks code against the pending challenge of userID. Every call
// takes one attempt from an atomic counter before the code is compared, so
// parallel guesses cannot exceed MaxAttempts. A correct code consumes the
// challenge; the last allowed wrong code drops it.
func (s *Service) Verify(ctx context.Context, userID, code string, now time.Time) error {
	key := cache.Keys.OTP(userID)
	attemptsKey := cache.Keys.OTPAttempts(userID)

	var rec record
	if err := s.cache.Get(ctx, key, &rec); err != nil {
		if errors.Is(err, redisclient.Nil) {
			return common.NewBadRequestError("no active OTP found or OTP expired", nil).WithCode(common.CodeOTPRequired)
		}
		return fmt.Errorf("load otp: %w", err)
	}

	remaining := rec.ExpiresAt.Sub(now)
	if remaining <= 0 {
		_ = s.cache.Delete(ctx, key, attemptsKey)
		return common.NewBadRequestError("no active OTP found or OTP expired", nil).WithCode(common.CodeOTPRequired)
	}

	attempts, err := s.store.IncrWithExpiration(ctx, attemptsKey, remaining)
	if err != nil {
		return fmt.Errorf("count otp attempts: %w", err)
	}
	if attempts > int64(s.settings.MaxAttempts) {
		_ = s.cache.Delete(ctx, key, attemptsKey)
		return common.NewTooManyRequestsError("maximum OTP attempts exceeded")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.Hash), []byte(code)); err != nil {
		logger.Security(ctx, "invalid otp",
			zap.String("user_id", userID),
			zap.Int64("attempts", attempts),
		)
		if attempts >= int64(s.settings.MaxAttempts) {
			_ = s.cache.Delete(ctx, key, attemptsKey)
			return common.NewTooManyRequestsError("maximum OTP attempts exceeded")
		}
		return common.NewBadRequestError("invalid OTP", nil).WithCode(common.CodeOTPRequired)
	}

	if err := s.cache.Delete(ctx, key, attemptsKey); err != nil {
		logger.WarnContext(ctx, "failed to delete consumed otp", zap.Error(err))
	}
	return nil
}

func generateCode(length int) (string, error) {
	const digits = "0123456789"
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}

func maskPhone(phone string) string {
	if len(phone) < 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
