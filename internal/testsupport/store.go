package testsupport

import (
	"context"
	"testing"
	"time"

	"bobbin/internal/config"
	"bobbin/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewItem enqueues a content item for tests using the provided store.
func NewItem(t testing.TB, st *store.Store, title, groupID string, now time.Time) *store.Item {
	t.Helper()

	item, err := st.InsertItem(context.Background(), store.NewItem{
		SourceURL:   "https://example.com/" + title,
		Title:       title,
		PublishedAt: now.Add(-time.Hour),
		Body:        "body of " + title,
		GroupID:     groupID,
	}, now)
	if err != nil {
		t.Fatalf("store.InsertItem: %v", err)
	}
	return item
}
