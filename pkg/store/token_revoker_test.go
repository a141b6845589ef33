package store

import (
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryTokenRevokerExpiresEntries(t *testing.T) {
	r := NewMemoryTokenRevoker()
	if err := r.Revoke("jti-1", 50*time.Millisecond); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := r.IsRevoked("jti-1")
	if err != nil || !revoked {
		t.Fatalf("want revoked immediately, revoked=%v err=%v", revoked, err)
	}

	time.Sleep(80 * time.Millisecond)
	revoked, err = r.IsRevoked("jti-1")
	if err != nil || revoked {
		t.Fatalf("want expiry to clear the entry, revoked=%v err=%v", revoked, err)
	}
}

func TestMemoryTokenRevokerUserCutoffOnlyMovesForward(t *testing.T) {
	r := NewMemoryTokenRevoker()
	older := time.Now().UTC().Add(-2 * time.Minute)
	newer := time.Now().UTC()

	if err := r.RevokeUser("user-1", older); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	if err := r.RevokeUser("user-1", older.Add(-time.Minute)); err != nil {
		t.Fatalf("revoke user with stale cutoff: %v", err)
	}
	got, err := r.RevokedAfter("user-1")
	if err != nil {
		t.Fatalf("revoked after: %v", err)
	}
	if !got.Equal(older) {
		t.Fatalf("stale cutoff must not rewind, got %v", got)
	}

	if err := r.RevokeUser("user-1", newer); err != nil {
		t.Fatalf("revoke user again: %v", err)
	}
	got, err = r.RevokedAfter("user-1")
	if err != nil {
		t.Fatalf("revoked after: %v", err)
	}
	if !got.Equal(newer) {
		t.Fatalf("want newest cutoff, got %v", got)
	}
}

func TestRedisTokenRevokerRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedisTokenRevoker(mr.Addr(), "")

	if err := r.Revoke("jti-redis", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := r.IsRevoked("jti-redis")
	if err != nil || !revoked {
		t.Fatalf("want revoked, revoked=%v err=%v", revoked, err)
	}
	revoked, err = r.IsRevoked("jti-other")
	if err != nil || revoked {
		t.Fatalf("want unrelated jti untouched, revoked=%v err=%v", revoked, err)
	}

	for _, key := range mr.Keys() {
		if !strings.HasPrefix(key, "kreatorboard:auth:revoked:") {
			t.Fatalf("key %q escapes the revocation namespace", key)
		}
	}

	mr.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked("jti-redis")
	if err != nil || revoked {
		t.Fatalf("want redis ttl to clear the entry, revoked=%v err=%v", revoked, err)
	}
}

func TestRedisTokenRevokerUserCutoff(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedisTokenRevoker(mr.Addr(), "")

	cutoff := time.Now().UTC().Truncate(time.Millisecond)
	if err := r.RevokeUser("user-redis", cutoff); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	if err := r.RevokeUser("user-redis", cutoff.Add(-time.Minute)); err != nil {
		t.Fatalf("revoke user with stale cutoff: %v", err)
	}
	got, err := r.RevokedAfter("user-redis")
	if err != nil {
		t.Fatalf("revoked after: %v", err)
	}
	if !got.Equal(cutoff) {
		t.Fatalf("stale cutoff must not rewind, got %v want %v", got, cutoff)
	}
}
