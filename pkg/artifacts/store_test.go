package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	data := []byte(`{"overall_verdict":"partial_compliance"}`)
	ref, err := store.Put(ctx, KindReport, "json", data)
	require.NoError(t, err)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), ref.Hash)
	assert.Equal(t, "reports/"+ref.Hash+".json", ref.Key())
	assert.Equal(t, "sha256:"+ref.Hash, ref.Digest())
	assert.FileExists(t, filepath.Join(dir, "reports", ref.Hash+".json"))

	got, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ok, err := store.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStore_PutIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	a, err := store.Put(ctx, KindEvidence, ".zip", []byte("pack"))
	require.NoError(t, err)
	b, err := store.Put(ctx, KindEvidence, "zip", []byte("pack"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	entries, err := os.ReadDir(filepath.Join(store.BaseDir(), "evidence"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_NotFoundAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ref, err := NewRef(KindLog, "jsonl", []byte("line\n"))
	require.NoError(t, err)

	_, err = store.Get(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Put(ctx, KindLog, "jsonl", []byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, ref))
	require.NoError(t, store.Delete(ctx, ref), "deleting twice is not an error")

	ok, err = store.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_RejectsInvalidRefs(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(ctx, Kind("../etc"), "json", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidRef)

	_, err = store.Put(ctx, KindReport, "js/on", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidRef)

	_, err = store.Get(ctx, Ref{Kind: KindReport, Hash: "../../passwd", Ext: "json"})
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestParseRef(t *testing.T) {
	ref, err := NewRef(KindScorecard, "json", []byte("card"))
	require.NoError(t, err)

	parsed, err := ParseRef(ref.Key())
	require.NoError(t, err)
	assert.Equal(t, ref, parsed)

	for _, bad := range []string{"", "reports", "reports/abc.json", "unknown/" + ref.Hash + ".json", "reports/" + ref.Hash} {
		_, err := ParseRef(bad)
		assert.ErrorIs(t, err, ErrInvalidRef, bad)
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("json"))
	assert.Equal(t, "application/zip", contentType("zip"))
	assert.Equal(t, "application/octet-stream", contentType("bin"))
}
