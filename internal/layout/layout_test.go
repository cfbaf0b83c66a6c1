package layout

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contigscreen/internal/catalog"
)

func TestPaths(t *testing.T) {
	l := New("/out")

	assert.Equal(t, filepath.FromSlash("/out/AMR/card/sampleA.tsv"), l.ResultPath(catalog.AMR, "card", "sampleA"))
	assert.Equal(t, filepath.FromSlash("/out/AMR/card_combined_summary.txt"), l.SummaryPath(catalog.AMR, "card"))
	assert.Equal(t, filepath.FromSlash("/out/Virulence/vfdb"), l.PairDir(catalog.Virulence, "vfdb"))

	assert.Equal(t, ".", New("").Root)
}

func TestPaths_Injective(t *testing.T) {
	l := New("out")
	cats := []catalog.Category{catalog.AMR, catalog.Virulence, catalog.Plasmid}
	dbs := []string{"card", "ncbi", "card.v2", "vfdb"}
	samples := []string{"a", "b", "a.tsv", "card", "card_combined_summary"}

	seen := make(map[string]string)
	claim := func(path, key string) {
		if prev, ok := seen[path]; ok {
			t.Fatalf("%s and %s both map to %s", prev, key, path)
		}
		seen[path] = key
	}

	for _, c := range cats {
		for _, db := range dbs {
			claim(l.SummaryPath(c, db), "summary "+string(c)+"/"+db)
			for _, s := range samples {
				key := string(c) + "/" + db + "/" + s
				claim(l.ResultPath(c, db, s), key)
				assert.Equal(t, l.ResultPath(c, db, s), l.ResultPath(c, db, s))
			}
		}
	}
}

func TestEnsurePairDir_Concurrent(t *testing.T) {
	l := New(t.TempDir())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.EnsurePairDir(catalog.AMR, "card")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	info, err := os.Stat(l.PairDir(catalog.AMR, "card"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResults(t *testing.T) {
	l := New(t.TempDir())

	paths, err := l.Results(catalog.AMR, "card")
	require.NoError(t, err)
	assert.Empty(t, paths, "missing pair directory is an empty set")

	require.NoError(t, l.EnsurePairDir(catalog.AMR, "card"))
	dir := l.PairDir(catalog.AMR, "card")
	for _, name := range []string{"b.tsv", "a.tsv", "notes.txt", ".a.tsv.123.partial"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.tsv"), 0o755))

	paths, err = l.Results(catalog.AMR, "card")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.tsv"), filepath.Join(dir, "b.tsv")}, paths)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.tsv")

	require.NoError(t, WriteFile(path, []byte("first")))
	require.NoError(t, WriteFile(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteFile_MissingDir(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "absent", "s1.tsv"), []byte("x"))
	assert.Error(t, err)
}
