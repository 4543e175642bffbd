package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNormalizeCommand(t *testing.T) {
	out, err := run(t, "normalize", "  I'm SO stressed about exams!!  ")
	require.NoError(t, err)
	assert.Equal(t, "i am so stressed about exams\n", out)
}

func TestSlangCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slang.csv")
	require.NoError(t, os.WriteFile(path, []byte("Slang,Description\nfire,amazing or excellent\n"), 0o600))

	out, err := run(t, "slang", "--file", path, "that song is FIRE")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "that song is fire (amazing or excellent)", lines[0])
	assert.Contains(t, lines[1], "fire [13:17] amazing or excellent")

	_, err = run(t, "slang", "hello")
	assert.Error(t, err)
}

func TestClassifyCommand(t *testing.T) {
	out, err := run(t, "classify", "--mode", "top", "I feel so happy today!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "joy "), out)
	assert.Equal(t, 1, strings.Count(out, "\n"))

	_, err = run(t, "classify", "--mode", "everything", "hi")
	assert.Error(t, err)
}

func TestSeedCommand(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("emotions: [{name: fear}]\nstrategies: [{id: s-box, name: box-breathing, emotions: [fear]}]\n"), 0o600))

	out, err := run(t, "seed", "--dsn", filepath.Join(dir, "mindpal.db"), "--catalog", catalogPath)
	require.NoError(t, err)
	assert.Equal(t, "seeded 1 emotions and 1 strategies\n", out)
}

func TestSeedCommandReportsUnclearedCache(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("emotions: [{name: fear}]\nstrategies: [{id: s-box, name: box-breathing, emotions: [fear]}]\n"), 0o600))

	_, err := run(t, "seed", "--dsn", filepath.Join(dir, "mindpal.db"), "--catalog", catalogPath, "--redis", "redis://127.0.0.1:1/0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog seeded but connect strategy cache")
}
