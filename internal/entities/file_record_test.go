package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileRecordCompare(t *testing.T) {
	now := time.Now()
	a := NewFileRecord("/a", 5, now)
	b := NewFileRecord("/b", 5, now.Add(time.Hour))
	c := NewFileRecord("/c", 6, now)

	// Sin hash solo cuenta el tamaño
	assert.True(t, a.Equal(b))
	assert.Equal(t, -1, a.Compare(c))
	assert.Equal(t, 1, c.Compare(a))

	a.Hash = "0000000000000001"
	b.Hash = "0000000000000002"
	assert.False(t, a.Equal(b))
	assert.Equal(t, -1, a.Compare(b))

	b.Hash = a.Hash
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
}

func TestGroupKey(t *testing.T) {
	k := GroupKey{Size: 5, Hash: "abc"}
	assert.Equal(t, "5_abc", k.String())
	assert.Equal(t, -1, k.Compare(GroupKey{Size: 6, Hash: "abc"}))
	assert.Equal(t, 1, k.Compare(GroupKey{Size: 5, Hash: "abb"}))
	assert.Equal(t, 0, k.Compare(GroupKey{Size: 5, Hash: "abc"}))
}

func TestDuplicateGroupPaths(t *testing.T) {
	g := &DuplicateGroup{Files: []*FileRecord{
		NewFileRecord("/x", 1, time.Time{}),
		NewFileRecord("/y", 1, time.Time{}),
	}}
	assert.Equal(t, []string{"/x", "/y"}, g.Paths())
}
