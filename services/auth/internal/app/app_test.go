package app

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"kreatorboard/pkg/domain"
	"kreatorboard/pkg/store"
)

type fakeSessionStore struct {
	mu     sync.Mutex
	next   int
	tokens map[string]string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{tokens: make(map[string]string)}
}

func (f *fakeSessionStore) NewSession(userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	token := fmt.Sprintf("session-%d", f.next)
	f.tokens[token] = userID
	return token, nil
}

// GetUserIDByToken mirrors the real store's contract: tokens it never
// issued fail with ErrSessionTokenInvalid rather than a bare not-found.
func (f *fakeSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid, ok := f.tokens[token]
	if !ok {
		return "", false, store.ErrSessionTokenInvalid
	}
	return uid, true, nil
}

func (f *fakeSessionStore) DeleteSession(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	return nil
}

func (f *fakeSessionStore) RevokeUserSessions(userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, uid := range f.tokens {
		if uid == userID {
			delete(f.tokens, token)
		}
	}
	return nil
}

func newTestApp(t *testing.T) (*App, *store.MemoryStore) {
	t.Helper()
	dataStore := store.NewMemoryStore()
	a, err := New(Config{
		Store:         dataStore,
		Sessions:      newFakeSessionStore(),
		RefreshTokens: store.NewMemoryRefreshTokenStore(),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, dataStore
}

const validPassword = "Sup3r$ecretPass"

func TestSignUpFirstUserIsAdmin(t *testing.T) {
	a, _ := newTestApp(t)

	first, token, refresh, err := a.SignUp("founder@acme.io", validPassword, "Founder", domain.RoleStartup)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if !first.IsAdmin {
		t.Fatal("expected bootstrap account to be admin")
	}
	if token == "" || refresh == "" {
		t.Fatal("expected token pair")
	}

	second, _, _, err := a.SignUp("riya@creators.io", validPassword, "Riya", domain.RoleInfluencer)
	if err != nil {
		t.Fatalf("second signup: %v", err)
	}
	if second.IsAdmin {
		t.Fatal("expected later accounts to not be admin")
	}
	if second.Role != domain.RoleInfluencer {
		t.Fatalf("unexpected role: %s", second.Role)
	}
}

func TestSignUpRejectsInvalidInput(t *testing.T) {
	a, _ := newTestApp(t)

	if _, _, _, err := a.SignUp("x@y.io", validPassword, "X", "marketer"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, _, _, err := a.SignUp("", validPassword, "X", domain.RoleStartup); !errors.Is(err, ErrSignupFieldsRequired) {
		t.Fatalf("expected ErrSignupFieldsRequired, got %v", err)
	}
	if _, _, _, err := a.SignUp("x@y.io", "short", "X", domain.RoleStartup); err == nil {
		t.Fatal("expected weak password to be rejected")
	}

	if _, _, _, err := a.SignUp("dup@y.io", validPassword, "One", domain.RoleStartup); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, _, _, err := a.SignUp("dup@y.io", validPassword, "Two", domain.RoleStartup); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestLoginSyncsWalletAddress(t *testing.T) {
	a, dataStore := newTestApp(t)
	if _, _, _, err := a.SignUp("riya@creators.io", validPassword, "Riya", domain.RoleInfluencer); err != nil {
		t.Fatalf("signup: %v", err)
	}

	user, _, _, err := a.Login("riya@creators.io", validPassword, "0xabc123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.WalletAddress != "0xabc123" {
		t.Fatalf("expected wallet synced, got %q", user.WalletAddress)
	}
	stored, ok, _ := dataStore.GetUserByEmail("riya@creators.io")
	if !ok || stored.WalletAddress != "0xabc123" {
		t.Fatalf("expected wallet persisted, got %q", stored.WalletAddress)
	}

	// Login without a wallet leaves the stored one alone.
	user, _, _, err = a.Login("riya@creators.io", validPassword, "")
	if err != nil {
		t.Fatalf("relogin: %v", err)
	}
	if user.WalletAddress != "0xabc123" {
		t.Fatalf("expected wallet kept, got %q", user.WalletAddress)
	}

	if _, _, _, err := a.Login("riya@creators.io", "WrongPass123!", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	a, _ := newTestApp(t)
	_, _, refresh, err := a.SignUp("founder@acme.io", validPassword, "Founder", domain.RoleStartup)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	user, token, nextRefresh, err := a.Refresh(refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if user.Email != "founder@acme.io" || token == "" {
		t.Fatalf("unexpected refresh result: %+v", user)
	}
	if nextRefresh == refresh {
		t.Fatal("expected rotated refresh token")
	}

	// Replaying the rotated-away token invalidates the family.
	if _, _, _, err := a.Refresh(refresh); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken on replay, got %v", err)
	}
	if _, _, _, err := a.Refresh(nextRefresh); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected family revoked after replay, got %v", err)
	}
}

func TestAccessFromToken(t *testing.T) {
	a, dataStore := newTestApp(t)
	user, token, _, err := a.SignUp("founder@acme.io", validPassword, "Founder", domain.RoleStartup)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	flags, err := a.AccessFromToken(token)
	if err != nil {
		t.Fatalf("access: %v", err)
	}
	if flags.UserID != user.ID || !flags.IsAdmin || flags.IsBlocked {
		t.Fatalf("unexpected flags: %+v", flags)
	}

	if err := dataStore.SetUserBlocked(user.ID, true); err != nil {
		t.Fatalf("block: %v", err)
	}
	flags, err = a.AccessFromToken(token)
	if err != nil {
		t.Fatalf("access after block: %v", err)
	}
	if !flags.IsBlocked {
		t.Fatal("expected blocked flag")
	}

	if _, err := a.AccessFromToken("garbage"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad token, got %v", err)
	}
}

func TestAdminUpdateUserGuards(t *testing.T) {
	a, _ := newTestApp(t)
	admin, _, _, err := a.SignUp("founder@acme.io", validPassword, "Founder", domain.RoleStartup)
	if err != nil {
		t.Fatalf("signup admin: %v", err)
	}
	target, _, _, err := a.SignUp("riya@creators.io", validPassword, "Riya", domain.RoleInfluencer)
	if err != nil {
		t.Fatalf("signup target: %v", err)
	}

	blocked := true
	updated, err := a.AdminUpdateUser(admin, target.ID, &blocked, nil)
	if err != nil {
		t.Fatalf("block target: %v", err)
	}
	if !updated.IsBlocked {
		t.Fatal("expected target blocked")
	}

	if _, err := a.AdminUpdateUser(admin, admin.ID, &blocked, nil); err == nil {
		t.Fatal("expected self-block to be rejected")
	}
	notAdmin := false
	if _, err := a.AdminUpdateUser(admin, admin.ID, nil, &notAdmin); err == nil {
		t.Fatal("expected dropping own admin flag to be rejected")
	}
	if _, err := a.AdminUpdateUser(admin, "missing", &blocked, nil); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
