package cache

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyunomas/duff/internal/entities"
)

var mtime = time.Date(2023, 1, 2, 3, 4, 5, 600, time.UTC)

func record(path string, size int64, mt time.Time) *entities.FileRecord {
	return entities.NewFileRecord(path, size, mt)
}

func TestLoadSkipsBadLines(t *testing.T) {
	input := strings.Join([]string{
		`{"file_path":"/a.txt","size":5,"mtime":"2023-01-02T03:04:05.0000006Z","hash":"00000000000000aa"}`,
		``,
		`# comentario`,
		`esto no es json`,
		`{"file_path":"","size":5,"mtime":"2023-01-02T03:04:05Z","hash":"bb"}`,
		`{"file_path":"/b.txt","size":6,"mtime":"2023-01-02T03:04:05Z","hash":"00000000000000bb"}`,
	}, "\n")

	c, err := Load(strings.NewReader(input), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.Skipped())
}

func TestLookupRequiresExactMatch(t *testing.T) {
	c := Empty()
	c.add(Entry{Path: "/a.txt", Size: 5, ModTime: mtime, Hash: "cached"})

	hash, ok := c.Lookup(record("/a.txt", 5, mtime))
	require.True(t, ok)
	assert.Equal(t, "cached", hash)

	misses := map[string]*entities.FileRecord{
		"older mtime":  record("/a.txt", 5, mtime.Add(-time.Second)),
		"newer mtime":  record("/a.txt", 5, mtime.Add(time.Nanosecond)),
		"other path":   record("/b.txt", 5, mtime),
		"other size":   record("/a.txt", 6, mtime),
		"unknown size": record("/a.txt", 99, mtime),
	}
	for name, rec := range misses {
		_, ok := c.Lookup(rec)
		assert.False(t, ok, name)
	}
}

func TestLookupNilCache(t *testing.T) {
	var c *Cache
	_, ok := c.Lookup(record("/a", 1, mtime))
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestLookupIgnoresTimezone(t *testing.T) {
	c := Empty()
	c.add(Entry{Path: "/a", Size: 1, ModTime: mtime, Hash: "h"})

	_, ok := c.Lookup(record("/a", 1, mtime.In(time.FixedZone("X", 3600))))
	assert.True(t, ok)
}

func TestArchiveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	a := NewArchive(&buf, nil)

	recs := []*entities.FileRecord{
		record("/a.txt", 5, mtime),
		record("/b.txt", 5, mtime.Add(time.Hour)),
	}
	recs[0].Hash = "00000000000000aa"
	recs[1].Hash = "00000000000000bb"
	for _, r := range recs {
		a.Append(r)
	}
	a.Flush()
	assert.EqualValues(t, 2, a.Written())

	c, err := Load(&buf, nil)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	for _, r := range recs {
		hash, ok := c.Lookup(record(r.Path, r.Size, r.ModTime))
		require.True(t, ok, r.Path)
		assert.Equal(t, r.Hash, hash)
	}
}

func TestArchiveWritevToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashes.arch")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)

	a := NewArchive(f, nil)

	const n = 150
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := record(fmt.Sprintf("/dir/file-%03d", i), int64(i+1), mtime)
			r.Hash = fmt.Sprintf("%016x", i)
			a.Append(r)
		}(i)
	}
	wg.Wait()
	a.Flush()
	require.NoError(t, f.Close())

	assert.EqualValues(t, n, a.Written())
	assert.Zero(t, a.Failed())

	rf, err := os.Open(path)
	require.NoError(t, err)
	defer rf.Close()

	c, err := Load(rf, nil)
	require.NoError(t, err)
	assert.Equal(t, n, c.Len())

	hash, ok := c.Lookup(record("/dir/file-042", 43, mtime))
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("%016x", 42), hash)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestArchiveFailureIsNotFatal(t *testing.T) {
	a := NewArchive(failingWriter{}, nil)
	r := record("/a", 1, mtime)
	r.Hash = "h"
	a.Append(r)
	a.Flush()

	assert.Zero(t, a.Written())
	assert.EqualValues(t, 1, a.Failed())
}

func TestNilArchiveIsNoop(t *testing.T) {
	var a *Archive
	a.Append(record("/a", 1, mtime))
	a.Flush()
	assert.Zero(t, a.Written())
}

func TestWriteRemainder(t *testing.T) {
	var buf bytes.Buffer
	lines := [][]byte{[]byte("abc\n"), []byte("def\n"), []byte("gh\n")}

	require.NoError(t, writeRemainder(&buf, lines, 5))
	assert.Equal(t, "ef\ngh\n", buf.String())
}
