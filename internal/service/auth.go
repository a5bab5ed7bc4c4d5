package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/msomdec/modfusion-console/internal/metrics"
)

const minPasswordLength = 8

// AuthState is where the controller is in the sign-in flow.
type AuthState int

const (
	StateAnonymous AuthState = iota
	StateAwaitingVerification
	StateAuthenticated
)

func (s AuthState) String() string {
	switch s {
	case StateAwaitingVerification:
		return "awaiting_verification"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Email           string
	FirstName       string
	LastName        string
	Password        string
	ConfirmPassword string
	AdminCode       string
}

// LoginChallenge describes a code sent after a successful password check.
type LoginChallenge struct {
	Email     string
	ExpiresAt time.Time
}

// Registration is the outcome of Register. When PendingVerification is set
// the account exists but nobody is signed in until the code sent to it is
// verified.
type Registration struct {
	User                *domain.User
	PendingVerification bool
	ExpiresAt           time.Time
}

// ControllerOptions configures an AuthController.
type ControllerOptions struct {
	// VerifyOnRegister sends new accounts through the code step too.
	VerifyOnRegister bool
	Metrics          *metrics.Auth
}

// AuthController drives the two-step sign-in flow on top of an IdentityStore.
// Its view of the current user follows the store's session events.
type AuthController struct {
	store *IdentityStore
	codes *CodeIssuer
	opts  ControllerOptions

	// flow serializes Login, VerifyCode, Register and the session-bound
	// operations. It is never held by the session observer.
	flow sync.Mutex

	mu      sync.RWMutex
	pending string
	current *domain.User

	unsubscribe func()
}

// NewAuthController loads the persisted session and subscribes to changes.
func NewAuthController(ctx context.Context, store *IdentityStore, codes *CodeIssuer, opts ControllerOptions) (*AuthController, error) {
	c := &AuthController{store: store, codes: codes, opts: opts}

	c.unsubscribe = store.Subscribe(c.onSessionEvent)
	current, err := store.CurrentSession(ctx)
	if err != nil {
		c.unsubscribe()
		return nil, err
	}
	c.mu.Lock()
	c.current = current
	c.mu.Unlock()

	return c, nil
}

// Close detaches the controller from the store.
func (c *AuthController) Close() {
	c.unsubscribe()
}

func (c *AuthController) onSessionEvent(ev domain.SessionEvent) {
	c.mu.Lock()
	c.current = ev.User
	c.mu.Unlock()
	c.opts.Metrics.ObserveSession(ev)
}

// State reports the flow state. A pending verification takes precedence over
// an existing session.
func (c *AuthController) State() AuthState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.pending != "":
		return StateAwaitingVerification
	case c.current != nil:
		return StateAuthenticated
	default:
		return StateAnonymous
	}
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (c *AuthController) CurrentUser() *domain.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

// PendingEmail returns the email awaiting verification, or "".
func (c *AuthController) PendingEmail() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending
}

// IsAdmin reports whether the signed-in user holds the admin role.
func (c *AuthController) IsAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.IsAdmin()
}

func (c *AuthController) setPending(email string) {
	c.mu.Lock()
	c.pending = email
	c.mu.Unlock()
}

func (c *AuthController) setCurrent(user *domain.User) {
	c.mu.Lock()
	c.current = user
	c.mu.Unlock()
}

// clearPending drops any pending verification and its code.
func (c *AuthController) clearPending(ctx context.Context) {
	email := c.PendingEmail()
	if email == "" {
		return
	}
	c.codes.Discard(ctx, email)
	c.setPending("")
}

// Login checks the password and, on success, sends a verification code and
// waits for it. A new login replaces any pending one.
func (c *AuthController) Login(ctx context.Context, email, password string) (challenge *LoginChallenge, err error) {
	c.flow.Lock()
	defer c.flow.Unlock()
	defer func() { c.opts.Metrics.ObserveLogin(err) }()

	c.clearPending(ctx)

	user, err := c.store.CheckCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	expiresAt, err := c.codes.Issue(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue verification code: %w", err)
	}
	c.setPending(user.Email)

	return &LoginChallenge{Email: user.Email, ExpiresAt: expiresAt}, nil
}

// VerifyCode completes a pending login. A wrong code leaves the login
// pending.
func (c *AuthController) VerifyCode(ctx context.Context, code string) (user *domain.User, err error) {
	c.flow.Lock()
	defer c.flow.Unlock()
	defer func() { c.opts.Metrics.ObserveVerification(err) }()

	email := c.PendingEmail()
	if email == "" {
		return nil, domain.ErrNoPendingLogin
	}

	if err := c.codes.Verify(ctx, email, code); err != nil {
		return nil, err
	}

	user, err = c.store.FindByEmail(ctx, email)
	if err != nil {
		c.setPending("")
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := c.store.SetCurrentSession(ctx, user); err != nil {
		return nil, err
	}
	c.setPending("")
	c.setCurrent(user)
	c.store.RecordLogin(ctx, user)

	return user, nil
}

// Register creates an account and signs it in, or sends it through the code
// step when VerifyOnRegister is set.
func (c *AuthController) Register(ctx context.Context, in RegisterInput) (reg *Registration, err error) {
	c.flow.Lock()
	defer c.flow.Unlock()
	defer func() { c.opts.Metrics.ObserveRegistration(err) }()

	if in.Password != in.ConfirmPassword {
		return nil, domain.ErrPasswordMismatch
	}
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.FirstName) == "" ||
		strings.TrimSpace(in.LastName) == "" || strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%w: email, first name, last name, and password are required", domain.ErrInvalidInput)
	}
	if len(strings.TrimSpace(in.Password)) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	user, err := c.store.CreateUser(ctx, domain.NewUser{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  in.Password,
	}, in.AdminCode)
	if err != nil {
		return nil, err
	}

	c.clearPending(ctx)

	if c.opts.VerifyOnRegister {
		expiresAt, err := c.codes.Issue(ctx, user.Email)
		if err != nil {
			return nil, fmt.Errorf("issue verification code: %w", err)
		}
		c.setPending(user.Email)
		return &Registration{User: user, PendingVerification: true, ExpiresAt: expiresAt}, nil
	}

	if err := c.store.SetCurrentSession(ctx, user); err != nil {
		return nil, err
	}
	c.setCurrent(user)
	c.store.RecordLogin(ctx, user)
	return &Registration{User: user}, nil
}

// Logout ends the session and any pending login. It never fails on an empty
// slot.
func (c *AuthController) Logout(ctx context.Context) error {
	c.flow.Lock()
	defer c.flow.Unlock()

	c.clearPending(ctx)
	if err := c.store.Logout(ctx); err != nil {
		return err
	}
	c.setCurrent(nil)
	return nil
}

// UpdateProfile applies upd to the signed-in user.
func (c *AuthController) UpdateProfile(ctx context.Context, upd domain.UserUpdate) (*domain.User, error) {
	c.flow.Lock()
	defer c.flow.Unlock()

	current := c.CurrentUser()
	if current == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if upd.Password != nil && len(strings.TrimSpace(*upd.Password)) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	user, err := c.store.UpdateUser(ctx, current.ID, upd)
	if err != nil {
		return nil, err
	}
	c.setCurrent(user)
	return user, nil
}

// PromoteToAdmin grants the signed-in user the admin role when adminCode is
// correct.
func (c *AuthController) PromoteToAdmin(ctx context.Context, adminCode string) (*domain.User, error) {
	c.flow.Lock()
	defer c.flow.Unlock()

	current := c.CurrentUser()
	if current == nil {
		return nil, domain.ErrNotAuthenticated
	}

	user, err := c.store.Promote(ctx, current.ID, adminCode)
	if err != nil {
		return nil, err
	}
	c.setCurrent(user)
	return user, nil
}

// DeleteAccount removes the signed-in user and ends the session. It returns
// the deleted record.
func (c *AuthController) DeleteAccount(ctx context.Context) (*domain.User, error) {
	c.flow.Lock()
	defer c.flow.Unlock()

	current := c.CurrentUser()
	if current == nil {
		return nil, domain.ErrNotAuthenticated
	}

	deleted, err := c.store.DeleteUser(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	c.clearPending(ctx)
	c.setCurrent(nil)
	c.opts.Metrics.ObserveDeletion()
	return deleted, nil
}
