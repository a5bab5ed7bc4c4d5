package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/modfusion-console/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// SessionObserver receives session-slot changes. Observers run synchronously
// while the store is locked and must not call back into the store.
type SessionObserver func(domain.SessionEvent)

// IdentityStore owns the user table and the current-session slot.
// Mutating operations are serialized; storage is last-writer-wins.
type IdentityStore struct {
	users      domain.UserRepository
	sessions   domain.SessionRepository
	activity   domain.ActivityRepository
	adminCode  string
	bcryptCost int
	now        func() time.Time

	mu sync.Mutex

	obsMu     sync.Mutex
	observers map[uint64]SessionObserver
	nextObs   uint64
}

// NewIdentityStore creates an IdentityStore. An empty adminCode disables
// code-based promotion.
func NewIdentityStore(users domain.UserRepository, sessions domain.SessionRepository, activity domain.ActivityRepository, adminCode string, bcryptCost int) *IdentityStore {
	return &IdentityStore{
		users:      users,
		sessions:   sessions,
		activity:   activity,
		adminCode:  adminCode,
		bcryptCost: bcryptCost,
		now:        time.Now,
		observers:  make(map[uint64]SessionObserver),
	}
}

// Subscribe registers fn for session events and returns a func that removes
// it. The returned func is safe to call more than once.
func (s *IdentityStore) Subscribe(fn SessionObserver) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *IdentityStore) notify(user *domain.User) {
	event := domain.SessionEvent{User: user, At: s.now()}

	s.obsMu.Lock()
	fns := make([]SessionObserver, 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		if event.User != nil {
			cp := *event.User
			fn(domain.SessionEvent{User: &cp, At: event.At})
			continue
		}
		fn(event)
	}
}

// IsValidAdminCode reports whether code matches the configured admin secret.
func (s *IdentityStore) IsValidAdminCode(code string) bool {
	if s.adminCode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(s.adminCode)) == 1
}

// ListUsers returns every user in insertion order.
func (s *IdentityStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser looks a user up by ID.
func (s *IdentityStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// FindByEmail looks a user up by normalized email.
func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
}

// CreateUser registers a new account. The role is admin only when adminCode
// matches the configured secret; the code itself is never stored.
func (s *IdentityStore) CreateUser(ctx context.Context, in domain.NewUser, adminCode string) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	password := strings.TrimSpace(in.Password)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, domain.ErrDuplicateEmail
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	role := domain.RoleUser
	if adminCode != "" && s.IsValidAdminCode(adminCode) {
		role = domain.RoleAdmin
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	slog.Info("user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// CheckCredentials verifies email and password and stamps the last-login
// time. It neither touches the session slot nor writes the login log; a
// password check alone is not a sign-in.
func (s *IdentityStore) CheckCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	now := s.now().UTC()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("stamp last login: %w", err)
	}
	if err := s.refreshSessionLocked(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials and makes the user the current session.
func (s *IdentityStore) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.CheckCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.SetCurrentSession(ctx, user); err != nil {
		return nil, err
	}
	s.RecordLogin(ctx, user)
	return user, nil
}

// RecordLogin appends a login entry for a completed sign-in.
func (s *IdentityStore) RecordLogin(ctx context.Context, user *domain.User) {
	s.recordActivity(ctx, domain.ActivityLogin, user)
}

// SetCurrentSession writes a snapshot of user into the session slot.
func (s *IdentityStore) SetCurrentSession(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setSessionLocked(ctx, user)
}

func (s *IdentityStore) setSessionLocked(ctx context.Context, user *domain.User) error {
	if err := s.sessions.Set(ctx, user); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	s.notify(user)
	return nil
}

// CurrentSession returns the session snapshot, or nil when nobody is
// signed in.
func (s *IdentityStore) CurrentSession(ctx context.Context) (*domain.User, error) {
	user, err := s.sessions.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return user, nil
}

// Logout clears the session slot. Clearing an empty slot does nothing.
func (s *IdentityStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutLocked(ctx)
}

func (s *IdentityStore) logoutLocked(ctx context.Context) error {
	cleared, err := s.sessions.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if cleared {
		s.notify(nil)
	}
	return nil
}

// UpdateUser merges the non-nil fields of upd into the user. Email
// uniqueness is not re-checked.
func (s *IdentityStore) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateLocked(ctx, id, func(u *domain.User) error {
		if upd.Email != nil {
			email := domain.NormalizeEmail(*upd.Email)
			if email == "" {
				return fmt.Errorf("%w: email cannot be empty", domain.ErrInvalidInput)
			}
			u.Email = email
		}
		if upd.FirstName != nil {
			u.FirstName = strings.TrimSpace(*upd.FirstName)
		}
		if upd.LastName != nil {
			u.LastName = strings.TrimSpace(*upd.LastName)
		}
		if upd.Avatar != nil {
			u.Avatar = *upd.Avatar
		}
		if upd.Password != nil {
			password := strings.TrimSpace(*upd.Password)
			if password == "" {
				return fmt.Errorf("%w: password cannot be empty", domain.ErrInvalidInput)
			}
			hash, err := s.hashPassword(password)
			if err != nil {
				return err
			}
			u.PasswordHash = hash
		}
		return nil
	})
}

// DeleteUser removes the user and logs out if it held the session.
func (s *IdentityStore) DeleteUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return nil, err
	}
	s.recordActivity(ctx, domain.ActivityDeletion, user)

	current, err := s.sessions.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if current != nil && current.ID == id {
		if err := s.logoutLocked(ctx); err != nil {
			return nil, err
		}
	}

	slog.Info("user deleted", "user_id", id)
	return user, nil
}

// Promote grants the admin role when adminCode matches the configured secret.
func (s *IdentityStore) Promote(ctx context.Context, id, adminCode string) (*domain.User, error) {
	if !s.IsValidAdminCode(adminCode) {
		return nil, domain.ErrInvalidAdminCode
	}
	return s.setRole(ctx, id, domain.RoleAdmin)
}

// PromoteByID grants the admin role without a code. The caller must already
// have checked that the acting user is an admin.
func (s *IdentityStore) PromoteByID(ctx context.Context, id string) (*domain.User, error) {
	return s.setRole(ctx, id, domain.RoleAdmin)
}

// Demote returns the user to the standard role. Same authorization caveat as
// PromoteByID.
func (s *IdentityStore) Demote(ctx context.Context, id string) (*domain.User, error) {
	return s.setRole(ctx, id, domain.RoleUser)
}

func (s *IdentityStore) setRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.mutateLocked(ctx, id, func(u *domain.User) error {
		u.Role = role
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("user role changed", "user_id", id, "role", role)
	return user, nil
}

// Reset deletes every user and clears the session slot. The activity log is
// kept.
func (s *IdentityStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.users.DeleteAll(ctx); err != nil {
		return err
	}
	return s.logoutLocked(ctx)
}

// LoginLog returns the most recent login entries, newest first.
func (s *IdentityStore) LoginLog(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	return s.activity.ListByKind(ctx, domain.ActivityLogin, limit)
}

// DeletionLog returns the most recent account deletions, newest first.
func (s *IdentityStore) DeletionLog(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	return s.activity.ListByKind(ctx, domain.ActivityDeletion, limit)
}

func (s *IdentityStore) mutateLocked(ctx context.Context, id string, apply func(*domain.User) error) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(user); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := s.refreshSessionLocked(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// refreshSessionLocked rewrites the slot when it holds user.
func (s *IdentityStore) refreshSessionLocked(ctx context.Context, user *domain.User) error {
	current, err := s.sessions.Get(ctx)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if current == nil || current.ID != user.ID {
		return nil
	}
	return s.setSessionLocked(ctx, user)
}

func (s *IdentityStore) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password must be at most 72 bytes", domain.ErrInvalidInput)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *IdentityStore) recordActivity(ctx context.Context, kind domain.ActivityKind, user *domain.User) {
	entry := &domain.ActivityEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		At:        s.now().UTC(),
	}
	if err := s.activity.Append(ctx, entry); err != nil {
		slog.Error("record activity", "kind", kind, "user_id", user.ID, "error", err)
	}
}
