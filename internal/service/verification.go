package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultCodeTTL         = 10 * time.Minute
	DefaultCodeMaxAttempts = 5
	codeIssuer             = "ModFusion"
)

// CodeOptions configures a CodeIssuer. Zero values fall back to the defaults.
type CodeOptions struct {
	TTL         time.Duration
	MaxAttempts int
	Now         func() time.Time
}

// CodeIssuer generates one-time login codes, keeps them in a CodeStore and
// hands them to a CodeSender.
type CodeIssuer struct {
	store       domain.CodeStore
	sender      domain.CodeSender
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewCodeIssuer(store domain.CodeStore, sender domain.CodeSender, opts CodeOptions) *CodeIssuer {
	c := &CodeIssuer{
		store:       store,
		sender:      sender,
		ttl:         opts.TTL,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
	}
	if c.ttl < time.Second {
		c.ttl = DefaultCodeTTL
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultCodeMaxAttempts
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// TTL reports how long an issued code stays valid.
func (c *CodeIssuer) TTL() time.Duration {
	return c.ttl
}

func (c *CodeIssuer) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(c.ttl / time.Second),
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Issue creates a fresh code for email, replacing any pending one, and sends
// it. It returns the expiry time.
func (c *CodeIssuer) Issue(ctx context.Context, email string) (time.Time, error) {
	email = domain.NormalizeEmail(email)

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      codeIssuer,
		AccountName: email,
		Period:      uint(c.ttl / time.Second),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("generate secret: %w", err)
	}

	now := c.now()
	code, err := totp.GenerateCodeCustom(key.Secret(), now, c.validateOpts())
	if err != nil {
		return time.Time{}, fmt.Errorf("generate code: %w", err)
	}

	record := &domain.CodeRecord{
		Email:     email,
		Secret:    key.Secret(),
		IssuedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
	if err := c.store.Save(ctx, record); err != nil {
		return time.Time{}, fmt.Errorf("save code: %w", err)
	}

	if err := c.sender.SendCode(ctx, email, code, record.ExpiresAt); err != nil {
		if delErr := c.store.Delete(ctx, email); delErr != nil {
			slog.Error("discard unsent code", "error", delErr)
		}
		return time.Time{}, fmt.Errorf("send code: %w", err)
	}

	return record.ExpiresAt, nil
}

// Verify checks code against the pending record for email. Every failure
// reports ErrInvalidCode; the record is removed on success, on expiry and
// once the attempt limit is reached.
func (c *CodeIssuer) Verify(ctx context.Context, email, code string) error {
	email = domain.NormalizeEmail(email)

	record, err := c.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: no code pending", domain.ErrInvalidCode)
		}
		return fmt.Errorf("get code: %w", err)
	}

	now := c.now()
	if !now.Before(record.ExpiresAt) {
		c.discard(ctx, email)
		return fmt.Errorf("%w: code expired", domain.ErrInvalidCode)
	}
	if record.Attempts >= c.maxAttempts {
		c.discard(ctx, email)
		return fmt.Errorf("%w: too many attempts", domain.ErrInvalidCode)
	}

	ok, err := totp.ValidateCustom(strings.TrimSpace(code), record.Secret, now, c.validateOpts())
	if err != nil && !errors.Is(err, otp.ErrValidateInputInvalidLength) {
		return fmt.Errorf("validate code: %w", err)
	}
	if !ok {
		attempts, err := c.store.IncrementAttempts(ctx, email)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("count attempt: %w", err)
		}
		if attempts >= c.maxAttempts {
			c.discard(ctx, email)
		}
		return domain.ErrInvalidCode
	}

	c.discard(ctx, email)
	return nil
}

// Discard drops any pending code for email.
func (c *CodeIssuer) Discard(ctx context.Context, email string) {
	c.discard(ctx, domain.NormalizeEmail(email))
}

func (c *CodeIssuer) discard(ctx context.Context, email string) {
	if err := c.store.Delete(ctx, email); err != nil {
		slog.Error("delete code", "error", err)
	}
}
