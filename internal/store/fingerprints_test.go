package store_test

import (
	"context"
	"testing"
	"time"

	"bobbin/internal/store"
	"bobbin/internal/testsupport"
)

func mustClaim(t *testing.T, st *store.Store, digest string, now, expiresAt time.Time) bool {
	t.Helper()
	claimed, err := st.ClaimFingerprint(context.Background(), digest, now, expiresAt)
	if err != nil {
		t.Fatalf("ClaimFingerprint %s: %v", digest, err)
	}
	return claimed
}

func TestClaimFingerprintLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := testClock()

	seen, err := st.SeenFingerprint(ctx, "digest-1", now)
	if err != nil {
		t.Fatalf("SeenFingerprint: %v", err)
	}
	if seen {
		t.Fatal("unrecorded digest reported seen")
	}

	if !mustClaim(t, st, "digest-1", now, now.Add(time.Hour)) {
		t.Fatal("first claim lost")
	}
	if mustClaim(t, st, "digest-1", now.Add(time.Minute), now.Add(2*time.Hour)) {
		t.Fatal("live digest claimed twice")
	}

	seen, err = st.SeenFingerprint(ctx, "digest-1", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("SeenFingerprint after claim: %v", err)
	}
	if !seen {
		t.Fatal("claimed digest not seen")
	}

	// Beyond expiry the digest counts as unseen and is claimable again.
	seen, err = st.SeenFingerprint(ctx, "digest-1", now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("SeenFingerprint after expiry: %v", err)
	}
	if seen {
		t.Fatal("expired digest reported seen")
	}
	if !mustClaim(t, st, "digest-1", now.Add(2*time.Hour), now.Add(3*time.Hour)) {
		t.Fatal("expired digest not reclaimable")
	}
}

func TestReleaseFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := testClock()

	if !mustClaim(t, st, "digest-1", now, now.Add(time.Hour)) {
		t.Fatal("first claim lost")
	}
	if err := st.ReleaseFingerprint(ctx, "digest-1"); err != nil {
		t.Fatalf("ReleaseFingerprint: %v", err)
	}
	if !mustClaim(t, st, "digest-1", now, now.Add(time.Hour)) {
		t.Fatal("released digest not reclaimable")
	}
}

func TestPurgeExpiredFingerprints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := testClock()

	mustClaim(t, st, "old", now, now.Add(time.Minute))
	mustClaim(t, st, "fresh", now, now.Add(time.Hour))

	purged, err := st.PurgeExpiredFingerprints(ctx, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("PurgeExpiredFingerprints: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged digest, got %d", purged)
	}

	seen, err := st.SeenFingerprint(ctx, "fresh", now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("SeenFingerprint: %v", err)
	}
	if !seen {
		t.Fatal("live digest purged")
	}
}
