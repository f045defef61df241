package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyunomas/duff/internal/engine"
	"github.com/soyunomas/duff/internal/entities"
)

func file(path string, size int64, hash string, dev, inode uint64) *entities.FileRecord {
	return &entities.FileRecord{Path: path, Size: size, Hash: hash, ModTime: time.Unix(100, 0), DeviceID: dev, Inode: inode}
}

func sampleGroups() map[entities.GroupKey]*entities.DuplicateGroup {
	small := &entities.DuplicateGroup{Size: 5, Hash: "aaaa", Files: []*entities.FileRecord{
		file("/d/a.txt", 5, "aaaa", 1, 10),
		file("/d/b.txt", 5, "aaaa", 1, 11),
	}}
	big := &entities.DuplicateGroup{Size: 100, Hash: "bbbb", Files: []*entities.FileRecord{
		file("/d/x", 100, "bbbb", 1, 20),
		file("/d/y", 100, "bbbb", 1, 20), // hard link de x
		file("/d/z", 100, "bbbb", 1, 21),
	}}
	for _, g := range []*entities.DuplicateGroup{small, big} {
		g.Key = entities.GroupKey{Size: g.Size, Hash: g.Hash}
	}
	return map[entities.GroupKey]*entities.DuplicateGroup{small.Key: small, big.Key: big}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleGroups()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		Header,
		"1\t1\t100\tbbbb\t/d/x",
		"1\t2\t100\tbbbb\t/d/y",
		"1\t3\t100\tbbbb\t/d/z",
		"2\t1\t5\taaaa\t/d/a.txt",
		"2\t2\t5\taaaa\t/d/b.txt",
	}, lines)
}

func TestWriteTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, nil))
	assert.Equal(t, Header+"\n", buf.String())
}

func TestBuildCountsHardLinks(t *testing.T) {
	res := &engine.Result{
		Stats:  engine.Stats{Discovered: 9, SizeCandidates: 5, Duration: time.Second},
		Groups: sampleGroups(),
	}
	rep := Build(res, "run-1", []string{"/d"})

	assert.Equal(t, "run-1", rep.Metadata.RunID)
	assert.EqualValues(t, 9, rep.Summary.TotalFilesScanned)
	assert.EqualValues(t, 2, rep.Summary.TotalGroups)
	assert.EqualValues(t, 2, rep.Summary.TotalDuplicates)
	assert.EqualValues(t, 1, rep.Summary.TotalHardLinks)
	assert.EqualValues(t, 105, rep.Summary.BytesRecoverable)

	require.Len(t, rep.Groups, 2)
	assert.Equal(t, []string{"/d/y"}, rep.Groups[0].HardLinks)
	assert.Len(t, rep.Groups[0].Files, 3)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rep))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "summary")
}

func TestRecordLog(t *testing.T) {
	var buf bytes.Buffer
	l := NewRecordLog(&buf, nil)
	l.Section("Config", "jobs=2")
	l.Record(file("/d/a.txt", 5, "", 0, 0))
	l.Section("Starting hashing")
	l.Record(file("/d/a.txt", 5, "aaaa", 0, 0))
	require.NoError(t, l.Close())

	assert.EqualValues(t, 2, l.Lines())
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "#Config", lines[0])
	assert.Equal(t, "jobs=2", lines[1])
	assert.Equal(t, "#Starting hashing", lines[3])

	var rec entities.FileRecord
	require.NoError(t, json.Unmarshal([]byte(lines[4]), &rec))
	assert.Equal(t, "aaaa", rec.Hash)
	assert.Equal(t, "/d/a.txt", rec.Path)
}
