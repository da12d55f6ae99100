package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	semsearch "github.com/Supernova-PulsarAIGeorgia/semantic-search"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(strings.NewReader(stdin), &out).Run(append([]string{"semscan"}, args...))
	return out.String(), err
}

func TestScan(t *testing.T) {
	out, err := run(t, "", "scan", "-q", "quick brown", "-t", "0.9", "the quick brown fox")
	require.NoError(t, err)

	var spans []semsearch.Match
	require.NoError(t, json.Unmarshal([]byte(out), &spans))
	require.Len(t, spans, 1)
	assert.Equal(t, semsearch.Match{Similarity: 1, Start: 4, End: 15, Text: "quick brown"}, spans[0])
}

func TestScan_FromStdin(t *testing.T) {
	out, err := run(t, "hello wrld\n", "scan", "--query", "world", "--file", "-")
	require.NoError(t, err)

	var spans []semsearch.Match
	require.NoError(t, json.Unmarshal([]byte(out), &spans))
	require.Len(t, spans, 1)
	assert.Equal(t, "wrld", spans[0].Text)
	assert.Equal(t, 6, spans[0].Start)
}

func TestScan_Errors(t *testing.T) {
	_, err := run(t, "", "scan", "the quick brown fox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")

	_, err = run(t, "", "scan", "-q", "fox")
	require.Error(t, err)

	_, err = run(t, "", "scan", "-q", "fox", "-f", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	out, err := run(t, "", "similarity", "abc", "abd")
	require.NoError(t, err)
	assert.Equal(t, "0.666667\n", out)

	_, err = run(t, "", "similarity", "abc")
	require.Error(t, err)
}

func TestRank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.txt")
	require.NoError(t, os.WriteFile(path, []byte("a cat sat\n\nno match here\nthe cart\n"), 0o600))

	out, err := run(t, "", "rank", "-q", "cat", "-f", path, "-t", "0.6")
	require.NoError(t, err)

	var results []semsearch.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "a cat sat", results[0].Text)
	assert.Equal(t, "the cart", results[1].Text)

	out, err = run(t, "a cat sat\nthe cart\n", "rank", "-q", "cat", "-k", "1", "-t", "0.6")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 1)
}

func TestNonEmptyLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, nonEmptyLines("a\r\n\n  \t\nb\n"))
	assert.Empty(t, nonEmptyLines(""))
}
