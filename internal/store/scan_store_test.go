package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignready/internal/domain"
)

func newTestStore(t *testing.T) *ScanStore {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestOpenCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir)
	require.NoError(t, err)

	for _, sub := range []string{"_index/byEmail", "_index/byDomain"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	doc := map[string]any{
		"scan_id": "abc",
		"inputs":  map[string]any{"website_url": "https://example.com"},
		"list":    []any{"a", "b"},
		"score":   float64(87),
	}

	require.NoError(t, s.Save("abc", doc))

	var got map[string]any
	found, err := s.Load("abc", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, doc, got)
}

func TestSaveLoadTypedDocument(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := domain.NewScanDocument("typed", created, domain.ScanInputs{WebsiteURL: "https://shop.example"}, "local")

	require.NoError(t, s.Save(doc.ScanID, doc))

	var got domain.ScanDocument
	found, err := s.Load(doc.ScanID, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, doc, got)
}

func TestLoadMissingIsNotAnError(t *testing.T) {
	s := newTestStore(t)

	var got map[string]any
	found, err := s.Load("nope", &got)

	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestUpdateMergesNestedObjects(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("id1", map[string]any{
		"a":    map[string]any{"b": 1, "c": 3},
		"tags": []any{"x", "y"},
		"keep": "me",
	}))

	merged, err := s.Update("id1", map[string]any{
		"a":    map[string]any{"b": 2},
		"tags": []any{"z"},
	})
	require.NoError(t, err)

	want := map[string]any{
		"a":    map[string]any{"b": float64(2), "c": float64(3)},
		"tags": []any{"z"},
		"keep": "me",
	}
	assert.Equal(t, want, merged)

	var reloaded map[string]any
	_, err = s.Load("id1", &reloaded)
	require.NoError(t, err)
	assert.Equal(t, want, reloaded)
}

func TestUpdateUnknownIDFails(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update("ghost", map[string]any{"a": 1})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "ghost")
}

func TestUpdateIntoTypedDocument(t *testing.T) {
	s := newTestStore(t)
	doc := domain.NewScanDocument("typed", time.Now(), domain.ScanInputs{SendingEmail: "a@b.co"}, "local")
	require.NoError(t, s.Save(doc.ScanID, doc))

	var got domain.ScanDocument
	err := s.UpdateInto(doc.ScanID, map[string]any{
		"meta": map[string]any{"runtime_ms": 1234},
	}, &got)

	require.NoError(t, err)
	assert.Equal(t, int64(1234), got.Meta.RuntimeMs)
	assert.Equal(t, domain.RunSingle, got.Meta.RunMode)
	assert.Equal(t, "a@b.co", got.Inputs.SendingEmail)
}

func TestUpdateRejectsNonObjectPatch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("id", map[string]any{"a": 1}))

	_, err := s.Update("id", []string{"nope"})
	assert.Error(t, err)
}

func TestAppendEventIsAppendOnly(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendEvent("e1", NewEvent("scan_created", map[string]any{"url": "https://x.test"})))
	require.NoError(t, s.AppendEvent("e1", NewEvent("report_generated", nil)))

	events, err := s.Events("e1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "scan_created", events[0]["type"])
	assert.Equal(t, "https://x.test", events[0]["url"])
	assert.NotEmpty(t, events[0]["at"])
	assert.Equal(t, "report_generated", events[1]["type"])

	assert.Error(t, s.AppendEvent("e1", Event{"no": "type"}))
}

func TestEventsMissingLog(t *testing.T) {
	events, err := newTestStore(t).Events("none")
	assert.NoError(t, err)
	assert.Empty(t, events)
}

func TestIndexByEmailIsIdempotentAndCaseInsensitive(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.IndexByEmail("X@Y.com", "id1"))
	require.NoError(t, s.IndexByEmail("X@Y.com", "id1"))
	require.NoError(t, s.IndexByEmail(" x@y.COM ", "id2"))

	assert.Equal(t, []string{"id1", "id2"}, s.FindByEmail("x@y.com"))
}

func TestIndexByDomain(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.IndexByDomain("Example.com", "a"))
	require.NoError(t, s.IndexByDomain("", "b"))

	assert.Equal(t, []string{"a"}, s.FindByDomain("example.com"))
	assert.Equal(t, []string{}, s.FindByDomain("other.com"))
	assert.Equal(t, []string{}, s.FindByDomain("   "))
}

func TestFindIgnoresCorruptIndex(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Dir(), "_index", "byDomain", "broken.com.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	assert.Equal(t, []string{}, s.FindByDomain("broken.com"))
	require.NoError(t, s.IndexByDomain("broken.com", "fresh"))
	assert.Equal(t, []string{"fresh"}, s.FindByDomain("broken.com"))
}

func TestSafeKey(t *testing.T) {
	tests := map[string]string{
		"  Foo@Bar.COM ":       "foo@bar.com",
		"news+promo@shop.io":   "news+promo@shop.io",
		"weird name/../x":      "weird_name_.._x",
		"ünïcode.example":      "_n_code.example",
		"":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeKey(in), "SafeKey(%q)", in)
	}
}

func TestArtifacts(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteArtifact("id", "report.json", map[string]any{"verdict": "low"}))

	var got map[string]any
	found, err := s.ReadArtifact("id", "report.json", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "low", got["verdict"])
	assert.FileExists(t, filepath.Join(s.Dir(), "id.report.json"))
}

func TestDeepMergeDoesNotMutateInputs(t *testing.T) {
	base := map[string]any{"a": map[string]any{"b": 1}}
	patch := map[string]any{"a": map[string]any{"c": 2}}

	out := DeepMerge(base, patch)

	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1, "c": 2}}, out)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1}}, base)
}

func TestIndexSurvivesInterruptedWrite(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.IndexByDomain("shop.example", "scan-1"))
	require.NoError(t, s.IndexByDomain("shop.example", "scan-2"))

	// a write that died before its rename leaves only a partial temp file
	stray := filepath.Join(s.byDomain, ".shop.example.json.123.tmp")
	require.NoError(t, os.WriteFile(stray, []byte(`{"scan_ids":["scan-`), 0o644))

	assert.Equal(t, []string{"scan-1", "scan-2"}, s.FindByDomain("shop.example"))

	require.NoError(t, s.IndexByDomain("shop.example", "scan-3"))
	assert.Equal(t, []string{"scan-1", "scan-2", "scan-3"}, s.FindByDomain("shop.example"))
}

func TestWritesLeaveNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("abc", map[string]any{"scan_id": "abc"}))
	require.NoError(t, s.IndexByEmail("a@shop.example", "abc"))

	for _, dir := range []string{s.Dir(), s.byEmailDir} {
		matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
		require.NoError(t, err)
		hidden, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, append(matches, hidden...), dir)
	}

	info, err := os.Stat(s.ScanPath("abc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
}
