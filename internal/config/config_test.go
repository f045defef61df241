package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeINI(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeINI(t, `
[search]
dirs = /a, /b
jobs = 8
min_size = 1K
max_size = 2MB
exts = .jpg,.png
excludes = .git

[output]
dir = /tmp/out
log = true
archive = yes
format = JSON
`)

	c := Default()
	require.NoError(t, c.LoadFile(path, true))

	assert.Equal(t, []string{"/a", "/b"}, c.Roots)
	assert.Equal(t, 8, c.Jobs)
	assert.EqualValues(t, 1000, c.MinSize)
	assert.EqualValues(t, 2000000, c.MaxSize)
	assert.Equal(t, []string{".jpg", ".png"}, c.Exts)
	assert.Equal(t, []string{".git"}, c.Excludes)
	assert.Equal(t, "/tmp/out", c.OutDir)
	assert.True(t, c.UserSetDir)
	assert.True(t, c.Log)
	assert.True(t, c.Archive)
	assert.Equal(t, FormatJSON, c.Format)
}

func TestLoadFileMissing(t *testing.T) {
	c := Default()
	missing := filepath.Join(t.TempDir(), "nope.ini")

	assert.NoError(t, c.LoadFile(missing, false))
	assert.Error(t, c.LoadFile(missing, true))
	assert.NoError(t, c.LoadFile("", true))
}

func TestLoadFileInvalidValues(t *testing.T) {
	for _, content := range []string{
		"[search]\njobs = many\n",
		"[search]\nmin_size = lots\n",
		"[search]\nmax_size = 1XB\n",
	} {
		c := Default()
		err := c.LoadFile(writeINI(t, content), true)
		assert.ErrorIs(t, err, ErrInvalid, content)
	}
}

func validConfig(t *testing.T) *Config {
	c := Default()
	c.Roots = []string{t.TempDir()}
	c.OutDir = t.TempDir()
	c.UserSetDir = true
	return c
}

func TestValidateOK(t *testing.T) {
	c := validConfig(t)
	c.Jobs = 0
	c.Exts = nil
	c.Format = ""

	require.NoError(t, c.Validate())
	assert.Equal(t, 1, c.Jobs)
	assert.EqualValues(t, math.MaxInt64, c.MaxSize)
	assert.Equal(t, []string{"*"}, c.Exts)
	assert.Equal(t, FormatReport, c.Format)
}

func TestValidateRoots(t *testing.T) {
	c := validConfig(t)
	c.Roots = nil
	assert.ErrorIs(t, c.Validate(), ErrNoRoots)

	c = validConfig(t)
	c.Roots = []string{filepath.Join(t.TempDir(), "missing")}
	err := c.Validate()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "there was an error with the specified directory"))

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	c = validConfig(t)
	c.Roots = []string{file}
	assert.ErrorIs(t, c.Validate(), ErrNotDirectory)
}

func TestValidateSizes(t *testing.T) {
	c := validConfig(t)
	c.MinSize = 10
	c.MaxSize = 5
	assert.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestValidateKeepsZeroUpperBound(t *testing.T) {
	path := writeINI(t, "[search]\nmax_size = 0\n")
	c := validConfig(t)
	require.NoError(t, c.LoadFile(path, true))
	require.NoError(t, c.Validate())

	assert.EqualValues(t, 0, c.MaxSize)
	assert.False(t, c.Filter().MatchSize(5))

	c.MaxSize = -1
	assert.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestValidateFormat(t *testing.T) {
	c := validConfig(t)
	c.Format = "xml"
	assert.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestValidateOutDir(t *testing.T) {
	c := validConfig(t)
	c.OutDir = filepath.Join(t.TempDir(), "missing")
	err := c.Validate()
	assert.ErrorIs(t, err, ErrUnwritable)
	assert.Contains(t, err.Error(), "-out")

	if os.Geteuid() == 0 {
		t.Skip("root ignora los permisos de escritura")
	}
	ro := t.TempDir()
	require.NoError(t, os.Chmod(ro, 0555))
	t.Cleanup(func() { _ = os.Chmod(ro, 0755) })

	c = validConfig(t)
	c.OutDir = ro
	assert.ErrorIs(t, c.Validate(), ErrUnwritable)
}

func TestValidatePrevHashFile(t *testing.T) {
	c := validConfig(t)
	c.PrevHashFile = filepath.Join(t.TempDir(), "missing.arch")
	assert.ErrorIs(t, c.Validate(), ErrUnreadable)
}

func TestSetOutputFiles(t *testing.T) {
	c := &Config{OutDir: "/out", Archive: true}
	c.SetOutputFiles(time.Date(2024, 3, 1, 9, 8, 7, 0, time.UTC))

	assert.Equal(t, "/out/DuFF_2024_03_01__09_08_07.report", c.ReportFile)
	assert.Equal(t, "/out/DuFF_2024_03_01__09_08_07.arch", c.ArchiveFile)
	assert.Empty(t, c.LogFile)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b,"))
	assert.Nil(t, SplitList(""))
}

func TestFilter(t *testing.T) {
	c := &Config{Exts: []string{".txt"}, MinSize: 1, MaxSize: 9}
	f := c.Filter()
	assert.True(t, f.MatchSize(9))
	assert.False(t, f.MatchExt("/a.bin"))
}

func TestString(t *testing.T) {
	c := validConfig(t)
	c.SetOutputFiles(time.Now())
	s := c.String()
	assert.Contains(t, s, c.Roots[0])
	assert.Contains(t, s, c.ReportFile)
}
