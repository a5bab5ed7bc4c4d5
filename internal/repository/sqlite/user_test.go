package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/msomdec/modfusion-console/internal/repository/sqlite"
)

func newUser(id, email string) *domain.User {
	return &domain.User{
		ID:           id,
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
		Role:         domain.RoleUser,
	}
}

func TestUserRepository_CreateAndGetByID(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	user := newUser("u-1", "byid@example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	found, err := repo.GetByID(ctx, "u-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if found.Email != user.Email {
		t.Fatalf("expected email %q, got %q", user.Email, found.Email)
	}
	if found.Role != domain.RoleUser {
		t.Fatalf("expected role user, got %q", found.Role)
	}
	if found.LastLoginAt != nil {
		t.Fatal("expected nil LastLoginAt for a fresh user")
	}
	if !found.CreatedAt.Equal(user.CreatedAt) {
		t.Fatalf("expected CreatedAt %v, got %v", user.CreatedAt, found.CreatedAt)
	}
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_GetByEmail_EarliestWins(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newUser("first", "same@example.com")); err != nil {
		t.Fatalf("Create first: %v", err)
	}
	if err := repo.Create(ctx, newUser("second", "same@example.com")); err != nil {
		t.Fatalf("Create second: %v", err)
	}

	found, err := repo.GetByEmail(ctx, "same@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if found.ID != "first" {
		t.Fatalf("expected earliest user 'first', got %q", found.ID)
	}
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_List_InsertionOrder(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", users)
	}

	for _, id := range []string{"c", "a", "b"} {
		if err := repo.Create(ctx, newUser(id, id+"@example.com")); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	users, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, u := range users {
		got = append(got, u.ID)
	}
	if len(got) != 3 || got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Fatalf("expected insertion order [c a b], got %v", got)
	}
}

func TestUserRepository_Update(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	user := newUser("u-1", "old@example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	login := time.Now().UTC()
	user.Email = "new@example.com"
	user.Role = domain.RoleAdmin
	user.LastLoginAt = &login
	user.Avatar = "avatars/xyz"
	if err := repo.Update(ctx, user); err != nil {
		t.Fatalf("Update: %v", err)
	}

	found, err := repo.GetByID(ctx, "u-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if found.Email != "new@example.com" || found.Role != domain.RoleAdmin || found.Avatar != "avatars/xyz" {
		t.Fatalf("update not persisted: %+v", found)
	}
	if found.LastLoginAt == nil || !found.LastLoginAt.Equal(login) {
		t.Fatalf("expected LastLoginAt %v, got %v", login, found.LastLoginAt)
	}
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)

	err := repo.Update(context.Background(), newUser("ghost", "ghost@example.com"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_Delete(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newUser("u-1", "del@example.com")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, "u-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, "u-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUserRepository_DeleteAll(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := repo.Create(ctx, newUser(id, id+"@example.com")); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected no users, got %d", len(users))
	}
}
