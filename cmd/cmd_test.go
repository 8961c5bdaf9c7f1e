package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bkdict/internal/metric"
)

// run executes the root command with args and returns its stdout. Flag
// variables are package globals, so they are reset first.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	loadMetric = metric.NameDamerau
	loadNormalise, loadLowercase, loadAppend, loadProgress = false, false, false, false
	searchDistance = false
	infoLimit, infoVerify = 10, false
	dupesThreshold, dupesJSON, dupesLimit, dupesOffset = 1, false, 10, 0
	for _, c := range rootCmd.Commands() {
		c.Flags().Visit(func(f *pflag.Flag) { f.Changed = false })
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeWords(t *testing.T, dir, name string, words ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(words, "\n")+"\n"), 0644))
	return path
}

func TestLoadAndSearch(t *testing.T) {
	dir := t.TempDir()
	words := writeWords(t, dir, "words.txt", "book", "books", "", "boo", "boot", "cake", "book")
	archive := filepath.Join(dir, "words.db")

	out, err := run(t, "load", words, archive)
	require.NoError(t, err)
	assert.Equal(t, "Loaded 6 entries\n", out)

	out, err = run(t, "search", archive, "book", "1")
	require.NoError(t, err)
	assert.Equal(t, "book\nbooks\nboo\nboot\n", out)

	out, err = run(t, "search", archive, "bok", "1", "--distance")
	require.NoError(t, err)
	assert.Equal(t, "book\t1\nboo\t1\n", out)

	out, err = run(t, "search", "--", archive, "book", "-1")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSearch_InvalidThreshold(t *testing.T) {
	_, err := run(t, "search", filepath.Join(t.TempDir(), "x.db"), "book", "one")
	assert.ErrorContains(t, err, "invalid threshold")
}

func TestLoad_MissingSource(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "words.db")

	_, err := run(t, "load", filepath.Join(dir, "missing.txt"), archive)
	assert.ErrorContains(t, err, "word list not found")

	_, statErr := os.Stat(archive)
	assert.True(t, os.IsNotExist(statErr), "archive should not be created")
}

func TestLoad_Append(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "words.db")

	_, err := run(t, "load", writeWords(t, dir, "a.txt", "ab", "cd"), archive, "--metric", metric.NameLevenshtein)
	require.NoError(t, err)

	out, err := run(t, "load", writeWords(t, dir, "b.txt", "ba", "ab"), archive, "--append")
	require.NoError(t, err)
	assert.Equal(t, "Loaded 4 entries\n", out)

	// the archive keeps its metric: plain Levenshtein puts "ba" two edits from "ab"
	out, err = run(t, "search", archive, "ab", "1")
	require.NoError(t, err)
	assert.Equal(t, "ab\n", out)

	_, err = run(t, "load", writeWords(t, dir, "c.txt", "ef"), archive, "--append", "--metric", metric.NameDamerau)
	assert.ErrorContains(t, err, "archive was built with metric")
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "words.db")

	_, err := run(t, "load", writeWords(t, dir, "words.txt", "book", "books", "boo", "boot", "cake"), archive)
	require.NoError(t, err)

	out, err := run(t, "info", archive, "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Metric:    damerau")
	assert.Contains(t, out, "Entries:   5")
	assert.Contains(t, out, "Distinct:  5")
	assert.Contains(t, out, "Depth:     3")
	assert.Contains(t, out, "Verified:")
	assert.Contains(t, out, "words.txt")
}

func TestDupes(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "words.db")

	_, err := run(t, "load", writeWords(t, dir, "words.txt", "cat", "house", "recieve", "cot", "dog", "receive", "cog"), archive)
	require.NoError(t, err)

	out, err := run(t, "dupes", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 groups of near-duplicates")
	assert.Contains(t, out, "Group #1 (4 entries)")
	assert.Contains(t, out, "Group #2 (2 entries)")
	assert.NotContains(t, out, "house")

	out, err = run(t, "dupes", archive, "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Showing groups 1-1 of 2")
	assert.Contains(t, out, "--offset 1")

	out, err = run(t, "dupes", archive, "--json", "--offset", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":2,"members":["receive","recieve"]}]`, out)
}

func TestMissingArchive(t *testing.T) {
	tests := [][]string{
		{"info", ""},
		{"search", "", "book", "1"},
		{"dupes", ""},
	}

	for _, tt := range tests {
		t.Run(tt[0], func(t *testing.T) {
			archive := filepath.Join(t.TempDir(), "typo", "nope.db")
			args := append([]string{tt[0], archive}, tt[2:]...)

			_, err := run(t, args...)
			assert.ErrorIs(t, err, os.ErrNotExist)
			assert.ErrorContains(t, err, "archive not found")
			assert.NoDirExists(t, filepath.Dir(archive))
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}

func TestShortenPath(t *testing.T) {
	assert.Equal(t, "words.txt", shortenPath("words.txt", 30))

	got := shortenPath("/very/long/directory/structure/that/goes/on/words.txt", 30)
	assert.LessOrEqual(t, len(got), 30)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "words.txt"))
}
