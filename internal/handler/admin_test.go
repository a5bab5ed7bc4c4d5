package handler_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/msomdec/modfusion-console/internal/domain"
)

// clientWith returns a client whose jar already holds cookie for base.
func clientWith(t *testing.T, base string, cookie *http.Cookie) *http.Client {
	t.Helper()
	client := newClient(t)
	u, _ := url.Parse(base)
	client.Jar.SetCookies(u, []*http.Cookie{cookie})
	return client
}

func (e *testEnv) createUser(t *testing.T, email string) *domain.User {
	t.Helper()
	user, err := e.store.CreateUser(context.Background(), domain.NewUser{
		Email:     email,
		FirstName: "Other",
		LastName:  "Person",
		Password:  "password123",
	}, "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func TestAdmin_ListUsers(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)
	_, cookie := env.signIn(t, "admin@example.com", true)
	env.createUser(t, "b@example.com")
	env.createUser(t, "c@example.com")

	status, body := doJSON(t, clientWith(t, srv.URL, cookie), http.MethodGet, srv.URL+"/api/users", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	users, _ := body["users"].([]any)
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	first, _ := users[0].(map[string]any)
	if first["email"] != "admin@example.com" {
		t.Fatalf("expected registration order, first was %v", first["email"])
	}
	if _, ok := first["passwordHash"]; ok {
		t.Fatal("password hash must not be exposed")
	}
}

func TestAdmin_NonAdminForbidden(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)
	_, cookie := env.signIn(t, "user@example.com", false)

	status, _ := doJSON(t, clientWith(t, srv.URL, cookie), http.MethodGet, srv.URL+"/api/users", nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
}

func TestAdmin_PromoteDemote(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)
	_, cookie := env.signIn(t, "admin@example.com", true)
	other := env.createUser(t, "other@example.com")
	client := clientWith(t, srv.URL, cookie)

	status, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/users/"+other.ID+"/promote", nil)
	if status != http.StatusOK {
		t.Fatalf("promote: expected 200, got %d", status)
	}
	if user, _ := body["user"].(map[string]any); user["role"] != "admin" {
		t.Fatalf("promote: expected admin role, got %v", user["role"])
	}

	status, body = doJSON(t, client, http.MethodPost, srv.URL+"/api/users/"+other.ID+"/demote", nil)
	if status != http.StatusOK {
		t.Fatalf("demote: expected 200, got %d", status)
	}
	if user, _ := body["user"].(map[string]any); user["role"] != "user" {
		t.Fatalf("demote: expected user role, got %v", user["role"])
	}

	status, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/users/does-not-exist/promote", nil)
	if status != http.StatusNotFound {
		t.Fatalf("promote unknown: expected 404, got %d", status)
	}
}

func TestAdmin_DeleteUserAndDeletionLog(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)
	_, cookie := env.signIn(t, "admin@example.com", true)
	other := env.createUser(t, "gone@example.com")
	client := clientWith(t, srv.URL, cookie)

	status, _ := doJSON(t, client, http.MethodDelete, srv.URL+"/api/users/"+other.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", status)
	}
	if _, err := env.store.GetUser(context.Background(), other.ID); err == nil {
		t.Fatal("expected user to be gone")
	}

	status, body := doJSON(t, client, http.MethodGet, srv.URL+"/api/logs/deletion", nil)
	if status != http.StatusOK {
		t.Fatalf("deletion log: expected 200, got %d", status)
	}
	entries, _ := body["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 deletion entry, got %d", len(entries))
	}
	if entry, _ := entries[0].(map[string]any); entry["email"] != "gone@example.com" {
		t.Fatalf("unexpected deletion entry %v", entry)
	}

	// The admin is still signed in after deleting someone else.
	status, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/auth/me", nil)
	if status != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", status)
	}
}

func TestAdmin_LoginLog(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)
	env.createUser(t, "logged@example.com")
	if _, err := env.store.Authenticate(context.Background(), "logged@example.com", "password123"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	_, cookie := env.signIn(t, "admin@example.com", true)

	status, body := doJSON(t, clientWith(t, srv.URL, cookie), http.MethodGet, srv.URL+"/api/logs/login?limit=10", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	entries, _ := body["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 login entry, got %d", len(entries))
	}
	if entry, _ := entries[0].(map[string]any); entry["email"] != "logged@example.com" {
		t.Fatalf("unexpected login entry %v", entry)
	}
}

func TestAdmin_Reset(t *testing.T) {
	env := newTestEnv(t)
	srv := env.server(t)
	_, cookie := env.signIn(t, "admin@example.com", true)
	env.createUser(t, "x@example.com")
	client := clientWith(t, srv.URL, cookie)

	status, _ := doJSON(t, client, http.MethodDelete, srv.URL+"/api/users", nil)
	if status != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", status)
	}

	users, err := env.store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected no users after reset, got %d", len(users))
	}
	if env.auth.CurrentUser() != nil {
		t.Fatal("expected session to end on reset")
	}

	status, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/users", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after reset, got %d", status)
	}
}
