package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/matzehuels/segdag/pkg/errors"
	"github.com/matzehuels/segdag/pkg/vertex"
)

const diamondFile = `{
  "vertices": [
    {"name": "A"},
    {"name": "B", "parents": ["A"]},
    {"name": "C", "parents": ["A"]},
    {"name": "D", "parents": ["B", "C"]},
    {"name": "E", "parents": ["C"]}
  ],
  "master": ["D"]
}`

// run executes the CLI against store and returns its stdout.
func run(t *testing.T, store string, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := newRoot(c)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--store", store}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, store string, args ...string) string {
	t.Helper()
	out, err := run(t, store, args...)
	require.NoError(t, err, "segdag %s", strings.Join(args, " "))
	return out
}

// seeded returns a store holding the diamond graph.
func seeded(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(file, []byte(diamondFile), 0644))
	store := filepath.Join(dir, "store")
	out := mustRun(t, store, "add", file)
	require.Contains(t, out, "Added 5 vertices")
	return store
}

func TestRootCommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	want := []string{
		"add", "export", "ancestors", "descendants", "parents", "children", "heads", "roots",
		"gca", "merges", "first-ancestors", "range", "is-ancestor", "log", "strip", "clone",
		"segments", "check", "status", "render", "config", "completion",
	}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestQueries(t *testing.T) {
	store := seeded(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"ancestors", "D"}, "A\nC\nB\nD\n"},
		{[]string{"ancestors", "D", "--count"}, "4\n"},
		{[]string{"ancestors", "D", "--reverse", "-n", "2"}, "D\nB\n"},
		{[]string{"descendants", "C"}, "C\nD\nE\n"},
		{[]string{"parents", "D"}, "C\nB\n"},
		{[]string{"children", "A"}, "C\nB\n"},
		{[]string{"heads"}, "D\nE\n"},
		{[]string{"roots"}, "A\n"},
		{[]string{"gca", "B", "C"}, "A\n"},
		{[]string{"gca", "D", "E"}, "C\n"},
		{[]string{"merges"}, "D\n"},
		{[]string{"first-ancestors", "D"}, "A\nB\nD\n"},
		{[]string{"range", "C", "D"}, "C\nD\n"},
		{[]string{"range", "--only", "C", "D"}, "B\nD\n"},
		{[]string{"is-ancestor", "A", "D"}, "true\n"},
		{[]string{"is-ancestor", "E", "D"}, "false\n"},
		// "44" is the hex form of D.
		{[]string{"ancestors", "44", "--count"}, "4\n"},
		{[]string{"ancestors", "D~1"}, "A\nB\n"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			assert.Equal(t, tt.want, mustRun(t, store, tt.args...))
		})
	}
}

func TestUnknownVertex(t *testing.T) {
	store := seeded(t)
	_, err := run(t, store, "ancestors", "nope")
	assert.True(t, derrors.Is(err, derrors.ErrCodeNotFound), "err = %v", err)

	// A (41) and B (42) share the prefix 4.
	_, err = run(t, store, "ancestors", "4")
	assert.True(t, derrors.Is(err, derrors.ErrCodeInvalidInput), "err = %v", err)
}

func TestStrip(t *testing.T) {
	store := seeded(t)

	out := mustRun(t, store, "strip", "--dry-run", "B")
	assert.Contains(t, out, "Would remove 2 vertices")
	assert.Equal(t, "5\n", mustRun(t, store, "ancestors", "--count"))

	out = mustRun(t, store, "strip", "B")
	assert.Contains(t, out, "Removed 2 vertices")
	assert.Equal(t, "A\nC\nE\n", mustRun(t, store, "ancestors"))
	assert.Contains(t, mustRun(t, store, "check"), "Store is consistent")
}

func TestCloneRoundTrip(t *testing.T) {
	store := seeded(t)
	bundle := filepath.Join(t.TempDir(), "graph.bundle")

	out := mustRun(t, store, "clone", "export", "--non-master", "--all-names", bundle)
	assert.Contains(t, out, "Exported")

	other := filepath.Join(t.TempDir(), "other")
	out = mustRun(t, other, "clone", "import", bundle)
	assert.Contains(t, out, "Imported 5 vertices")
	assert.NotContains(t, out, "lazy")

	assert.Equal(t, mustRun(t, store, "ancestors", "D"), mustRun(t, other, "ancestors", "D"))
	assert.Equal(t, mustRun(t, store, "heads"), mustRun(t, other, "heads"))

	_, err := run(t, other, "clone", "import", bundle)
	assert.True(t, derrors.Is(err, derrors.ErrCodeConflict), "second import err = %v", err)
}

func TestExportAdd(t *testing.T) {
	store := seeded(t)
	file := filepath.Join(t.TempDir(), "export.json")
	mustRun(t, store, "export", file)

	other := filepath.Join(t.TempDir(), "other")
	mustRun(t, other, "add", file)
	assert.Equal(t, mustRun(t, store, "ancestors"), mustRun(t, other, "ancestors"))
}

func TestSegmentsAndStatus(t *testing.T) {
	store := seeded(t)

	out := mustRun(t, store, "segments")
	assert.Contains(t, out, "0..=1")
	assert.Contains(t, out, "N0")

	out = mustRun(t, store, "segments", "--group", "non_master")
	assert.NotContains(t, out, "0..=1")

	_, err := run(t, store, "segments", "--group", "bogus")
	assert.Error(t, err)

	out = mustRun(t, store, "status")
	assert.Contains(t, out, "4 master")
	assert.Contains(t, out, "1 non-master")
	assert.Contains(t, out, "clean")
}

func TestRenderDOT(t *testing.T) {
	store := seeded(t)
	out := mustRun(t, store, "render", "--format", "dot", "--segments", "D")
	assert.Contains(t, out, "digraph G")
	assert.Contains(t, out, `"D" -> "B";`)
	assert.NotContains(t, out, `"E"`)

	_, err := run(t, store, "render", "--format", "gif")
	assert.Error(t, err)
}

func TestConfig(t *testing.T) {
	store := filepath.Join(t.TempDir(), "store")
	assert.Contains(t, mustRun(t, store, "config"), "size = 16")

	mustRun(t, store, "config", "init")
	_, err := run(t, store, "config", "init")
	assert.Error(t, err, "init should refuse to overwrite")
	mustRun(t, store, "config", "init", "--force")

	require.NoError(t, os.WriteFile(filepath.Join(store, "segdag.toml"), []byte("[store]\nread_only = true\n"), 0644))
	file := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(file, []byte(diamondFile), 0644))
	_, err = run(t, store, "add", file)
	assert.True(t, derrors.Is(err, derrors.ErrCodeUnsupported), "add on a read-only store err = %v", err)
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct{ path, want string }{
		{"", "svg"},
		{"out.dot", "dot"},
		{"out.PNG", "png"},
		{"out.pdf", "pdf"},
		{"out.txt", "svg"},
	}
	for _, tt := range tests {
		if got := formatFromPath(tt.path); got != tt.want {
			t.Errorf("formatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLogModel(t *testing.T) {
	entries := []logEntry{
		{Name: "D", ID: 3, Parents: []vertex.Name{"B", "C"}},
		{Name: "B", ID: 2, Parents: []vertex.Name{"A"}},
		{Name: "C", ID: 1, Parents: []vertex.Name{"A"}},
		{Name: "A", ID: 0},
	}
	var m tea.Model = NewLogModel(entries)
	key := func(k tea.KeyType) tea.Msg { return tea.KeyMsg{Type: k} }

	m, _ = m.Update(key(tea.KeyUp))
	assert.Equal(t, 0, m.(LogModel).Cursor, "up at the top stays put")

	m, _ = m.Update(key(tea.KeyEnter))
	assert.Equal(t, 1, m.(LogModel).Cursor, "enter jumps to the first parent B")

	m, _ = m.Update(key(tea.KeyEnter))
	assert.Equal(t, 3, m.(LogModel).Cursor, "enter jumps to A")

	m, _ = m.Update(key(tea.KeyDown))
	assert.Equal(t, 3, m.(LogModel).Cursor, "down at the bottom stays put")

	m, _ = m.Update(tea.WindowSizeMsg{Height: 8})
	lm := m.(LogModel)
	assert.Equal(t, 5, lm.Height)
	assert.Contains(t, lm.View(), "[4/4]")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd, "q should quit")
}

func TestLogCommand(t *testing.T) {
	store := seeded(t)
	out := mustRun(t, store, "log", "-n", "2", "D")
	assert.Contains(t, out, "D")
	assert.Contains(t, out, "B, C")
	assert.Contains(t, out, "master")
	// Only D (3) and B (2) fit the limit.
	assert.NotContains(t, out, " 1 ")
}

func TestRenderCache(t *testing.T) {
	store := seeded(t)
	out := filepath.Join(t.TempDir(), "graph.svg")

	mustRun(t, store, "render", "--no-cache", "-o", out)
	_, err := os.Stat(filepath.Join(store, cacheDir))
	assert.True(t, os.IsNotExist(err), "--no-cache should not create the cache")

	mustRun(t, store, "render", "-o", out)
	first, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(first), "<svg")
	entries, err := os.ReadDir(filepath.Join(store, cacheDir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, os.Remove(out))
	mustRun(t, store, "render", "-o", out)
	second, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompleteVertices(t *testing.T) {
	store := seeded(t)
	c := New(io.Discard, LogInfo)
	c.Store = store
	cmd := c.RootCommand()
	cmd.SetContext(context.Background())

	got, _ := c.completeVertices(cmd, nil, "")
	assert.Equal(t, []string{"E", "D"}, got)

	got, _ = c.completeVertices(cmd, nil, "D")
	assert.Equal(t, []string{"D"}, got)

	got, _ = c.completeVertices(cmd, nil, "4")
	assert.Equal(t, []string{"41", "42", "43", "44", "45"}, got)

	c.Store = filepath.Join(t.TempDir(), "missing")
	got, _ = c.completeVertices(cmd, nil, "")
	assert.Empty(t, got)
	_, err := os.Stat(c.Store)
	assert.True(t, os.IsNotExist(err), "completion should not create a store")
}
