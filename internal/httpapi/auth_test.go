package httpapi

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"retailtrack/internal/apperr"
	"retailtrack/internal/domain"
	"retailtrack/internal/store/memory"
)

func newTestAuth(t *testing.T, ttl time.Duration) (*AuthManager, *memory.Store) {
	t.Helper()
	repo := memory.New()
	auth := NewAuthManager("0123456789abcdef0123456789abcdef", ttl, repo, zerolog.Nop())
	return auth, repo
}

func TestLoginIssuesParsableToken(t *testing.T) {
	auth, _ := newTestAuth(t, time.Hour)
	ctx := context.Background()
	if err := auth.EnsureDefaultAdmin(ctx, "Admin", "bootstrap-secret"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	resp, err := auth.Login(ctx, domain.LoginRequest{Username: "admin", Password: "bootstrap-secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", resp.Role)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}
	if actor.ID == "" {
		t.Fatal("expected user id claim")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth, _ := newTestAuth(t, time.Hour)
	ctx := context.Background()
	if err := auth.EnsureDefaultAdmin(ctx, "admin", "bootstrap-secret"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "admin", Password: "wrong"}); !apperr.IsCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for wrong password, got %v", err)
	}
	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "ghost", Password: "whatever"}); !apperr.IsCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for unknown user, got %v", err)
	}
}

func TestParseTokenRejectsGarbageAndExpiry(t *testing.T) {
	auth, _ := newTestAuth(t, time.Millisecond)
	ctx := context.Background()
	if err := auth.EnsureDefaultAdmin(ctx, "admin", "bootstrap-secret"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if _, err := auth.ParseToken("not-a-token"); !apperr.IsCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for garbage token, got %v", err)
	}

	resp, err := auth.Login(ctx, domain.LoginRequest{Username: "admin", Password: "bootstrap-secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := auth.ParseToken(resp.AccessToken); !apperr.IsCode(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for expired token, got %v", err)
	}
}

func TestEnsureDefaultAdminIsIdempotentAndOptional(t *testing.T) {
	auth, repo := newTestAuth(t, time.Hour)
	ctx := context.Background()

	// no password configured: nothing is created
	if err := auth.EnsureDefaultAdmin(ctx, "admin", ""); err != nil {
		t.Fatalf("bootstrap without password: %v", err)
	}
	if count, _ := repo.CountUsers(ctx); count != 0 {
		t.Fatalf("expected no users, got %d", count)
	}

	if err := auth.EnsureDefaultAdmin(ctx, "admin", "bootstrap-secret"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := auth.EnsureDefaultAdmin(ctx, "admin", "another-secret"); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if count, _ := repo.CountUsers(ctx); count != 1 {
		t.Fatalf("expected exactly one user, got %d", count)
	}
}
