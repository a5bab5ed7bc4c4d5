package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/msomdec/modfusion-console/internal/repository/memory"
	"github.com/msomdec/modfusion-console/internal/repository/redisstore"
	"github.com/msomdec/modfusion-console/internal/service"
)

// captureSender records the last code sent per email.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
	err   error
}

func newCaptureSender() *captureSender {
	return &captureSender{codes: make(map[string]string)}
}

func (s *captureSender) SendCode(_ context.Context, email, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.codes[email] = code
	s.sent++
	return nil
}

func (s *captureSender) code(t *testing.T, email string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[email]
	if !ok {
		t.Fatalf("no code sent to %s", email)
	}
	return code
}

// wrongCode returns a code guaranteed to differ from code.
func wrongCode(code string) string {
	b := []byte(code)
	last := b[len(b)-1]
	b[len(b)-1] = '0' + (last-'0'+1)%10
	return string(b)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCodeIssuer_IssueAndVerify(t *testing.T) {
	sender := newCaptureSender()
	issuer := service.NewCodeIssuer(memory.NewCodeStore(), sender, service.CodeOptions{})
	ctx := context.Background()

	expiresAt, err := issuer.Issue(ctx, "A@X.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if d := time.Until(expiresAt); d <= 0 || d > service.DefaultCodeTTL {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	code := sender.code(t, "a@x.com")
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	if err := issuer.Verify(ctx, "a@x.com", code); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := issuer.Verify(ctx, "a@x.com", code); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("code must be single use, got %v", err)
	}
}

func TestCodeIssuer_NoPendingCode(t *testing.T) {
	issuer := service.NewCodeIssuer(memory.NewCodeStore(), newCaptureSender(), service.CodeOptions{})

	err := issuer.Verify(context.Background(), "a@x.com", "123456")
	if !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestCodeIssuer_WrongCodeThenRight(t *testing.T) {
	sender := newCaptureSender()
	issuer := service.NewCodeIssuer(memory.NewCodeStore(), sender, service.CodeOptions{})
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "a@x.com"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	code := sender.code(t, "a@x.com")

	if err := issuer.Verify(ctx, "a@x.com", wrongCode(code)); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if err := issuer.Verify(ctx, "a@x.com", "abc"); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for malformed code, got %v", err)
	}
	if err := issuer.Verify(ctx, "a@x.com", code); err != nil {
		t.Fatalf("Verify after wrong attempts: %v", err)
	}
}

func TestCodeIssuer_AttemptsExhausted(t *testing.T) {
	sender := newCaptureSender()
	store := memory.NewCodeStore()
	issuer := service.NewCodeIssuer(store, sender, service.CodeOptions{MaxAttempts: 3})
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "a@x.com"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	code := sender.code(t, "a@x.com")

	for i := 0; i < 3; i++ {
		if err := issuer.Verify(ctx, "a@x.com", wrongCode(code)); !errors.Is(err, domain.ErrInvalidCode) {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i+1, err)
		}
	}

	if _, err := store.Get(ctx, "a@x.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected record to be deleted, got %v", err)
	}
	if err := issuer.Verify(ctx, "a@x.com", code); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("correct code after exhaustion should fail, got %v", err)
	}
}

func TestCodeIssuer_Expired(t *testing.T) {
	sender := newCaptureSender()
	clock := &fakeClock{now: time.Now()}
	issuer := service.NewCodeIssuer(memory.NewCodeStore(), sender, service.CodeOptions{
		TTL: time.Minute,
		Now: clock.Now,
	})
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "a@x.com"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	code := sender.code(t, "a@x.com")

	clock.Advance(time.Minute + time.Second)
	if err := issuer.Verify(ctx, "a@x.com", code); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for expired code, got %v", err)
	}
}

func TestCodeIssuer_ValidNearEndOfWindow(t *testing.T) {
	sender := newCaptureSender()
	clock := &fakeClock{now: time.Now()}
	issuer := service.NewCodeIssuer(memory.NewCodeStore(), sender, service.CodeOptions{
		TTL: time.Minute,
		Now: clock.Now,
	})
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "a@x.com"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clock.Advance(59 * time.Second)
	if err := issuer.Verify(ctx, "a@x.com", sender.code(t, "a@x.com")); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestCodeIssuer_SendFailureDiscardsRecord(t *testing.T) {
	sender := newCaptureSender()
	sender.err = errors.New("mail relay down")
	store := memory.NewCodeStore()
	issuer := service.NewCodeIssuer(store, sender, service.CodeOptions{})
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "a@x.com"); err == nil {
		t.Fatal("expected send error")
	}
	if _, err := store.Get(ctx, "a@x.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no record after failed send, got %v", err)
	}
}

func TestCodeIssuer_Discard(t *testing.T) {
	sender := newCaptureSender()
	issuer := service.NewCodeIssuer(memory.NewCodeStore(), sender, service.CodeOptions{})
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, "a@x.com"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	issuer.Discard(ctx, "A@x.com")

	if err := issuer.Verify(ctx, "a@x.com", sender.code(t, "a@x.com")); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode after discard, got %v", err)
	}
}

func TestCodeIssuer_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := redisstore.Connect(ctx, redisstore.Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	sender := newCaptureSender()
	issuer := service.NewCodeIssuer(redisstore.NewCodeStore(client, ""), sender, service.CodeOptions{MaxAttempts: 2})

	if _, err := issuer.Issue(ctx, "a@x.com"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	code := sender.code(t, "a@x.com")

	if err := issuer.Verify(ctx, "a@x.com", wrongCode(code)); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if err := issuer.Verify(ctx, "a@x.com", code); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
