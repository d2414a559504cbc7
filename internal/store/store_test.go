package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArtifactStorePutGet(t *testing.T) {
	s, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := s.Get("ministries/abc123/page")
	require.NoError(t, err)
	require.False(t, ok, "get before put is a miss, not an error")

	require.NoError(t, s.Put("ministries/abc123/page", "<html>m</html>"))

	html, ok, err := s.Get("ministries/abc123/page")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "<html>m</html>", html)
}

func TestArtifactStoreNestedKeys(t *testing.T) {
	s, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	key := "ministries/abc/departments/def/agencies/ghi/services"
	require.NoError(t, s.Put(key, "<ul></ul>"))
	html, ok, err := s.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "<ul></ul>", html)
}

func TestArtifactStoreRejectsTraversal(t *testing.T) {
	s, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	require.Error(t, s.Put("../outside", "<html></html>"))
	require.Error(t, s.Put("", "<html></html>"))
}

func TestLedgerCheckpoints(t *testing.T) {
	ledger, err := OpenLedger(t.TempDir())
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()

	done, err := ledger.IsComplete(ctx, "faq", "faq/page")
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, ledger.MarkComplete(ctx, "faq", "faq/page"))
	// Marking twice is idempotent.
	require.NoError(t, ledger.MarkComplete(ctx, "faq", "faq/page"))

	done, err = ledger.IsComplete(ctx, "faq", "faq/page")
	require.NoError(t, err)
	require.True(t, done)

	done, err = ledger.IsComplete(ctx, "agencies", "faq/page")
	require.NoError(t, err)
	require.False(t, done, "checkpoints are scoped by phase")
}

func TestLedgerFailureLog(t *testing.T) {
	ledger, err := OpenLedger(t.TempDir())
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()

	require.NoError(t, ledger.RecordFailure(ctx, "ministries", "ministries/abc/page", "all 3 attempts exhausted"))
	require.NoError(t, ledger.RecordFailure(ctx, "ministries", "ministries/def/page", "status 429"))
	// Re-recording replaces the earlier entry for the same key.
	require.NoError(t, ledger.RecordFailure(ctx, "ministries", "ministries/abc/page", "status 503"))

	failures, err := ledger.Failures(ctx)
	require.NoError(t, err)
	require.Len(t, failures, 2)

	byKey := map[string]string{}
	for _, f := range failures {
		byKey[f.Key] = f.Error
	}
	require.Equal(t, "status 503", byKey["ministries/abc/page"])
	require.Equal(t, "status 429", byKey["ministries/def/page"])
}

func TestLedgerClearFailure(t *testing.T) {
	ledger, err := OpenLedger(t.TempDir())
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()

	require.NoError(t, ledger.RecordFailure(ctx, "services", "ministries/abc/services", "status 404"))
	require.NoError(t, ledger.RecordFailure(ctx, "services", "ministries/def/services", "status 429"))

	require.NoError(t, ledger.ClearFailure(ctx, "services", "ministries/abc/services"))
	// Clearing a key with no entry is a no-op.
	require.NoError(t, ledger.ClearFailure(ctx, "services", "ministries/abc/services"))

	failures, err := ledger.Failures(ctx)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Equal(t, "ministries/def/services", failures[0].Key)
}
