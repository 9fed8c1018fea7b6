package get_matches

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/unoclass/pkg/session"
)

const rules = `
static:
  flex: display:flex
rules:
  - match: '^p-(\d+)$'
    css: 'padding:calc(${1} * 0.25rem)'
`

func TestGetMatches(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/w/uno.rules.yaml", []byte(rules), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/w/src/a.html", []byte("<p>\n  <i class=\"flex p-2\"></i>\n</p>"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/w/node_modules/x/b.html", []byte(`<i class="flex"></i>`), 0o644))

	var out bytes.Buffer
	cmd := newCommand(&Handler{fs: fs, logOut: io.Discard})
	cmd.SetArgs([]string{"--rules", "/w/uno.rules.yaml", "/w"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var results []session.FileMatches
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))

	require.Len(t, results, 1)
	assert.Equal(t, "/w/src/a.html", results[0].ID)
	assert.Equal(t, "HTML", results[0].Language)
	require.Len(t, results[0].Matches, 2)

	p2 := results[0].Matches[1]
	assert.Equal(t, "p-2", p2.Text)
	assert.Equal(t, 1, p2.Range.Start.Line)
	assert.Equal(t, 17, p2.Range.Start.Character)
}

func TestGetMatchesRequiresPaths(t *testing.T) {
	cmd := newCommand(&Handler{fs: afero.NewMemMapFs(), logOut: io.Discard})
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.Error(t, cmd.ExecuteContext(context.Background()))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func TestGetMatchesWatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uno.rules.yaml"), []byte(rules), 0o644))
	doc := filepath.Join(dir, "a.tsx")
	require.NoError(t, os.WriteFile(doc, []byte(`cn("flex")`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	cmd := newCommand(&Handler{fs: afero.NewOsFs(), logOut: io.Discard})
	cmd.SetArgs([]string{"--watch", "--rules", filepath.Join(dir, "uno.rules.yaml"), doc})
	cmd.SetOut(out)

	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(strings.Join(out.Lines(), "\n"), `"flex"`)
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(doc, []byte(`cn("p-4")`), 0o644))

	require.Eventually(t, func() bool {
		lines := out.Lines()
		return len(lines) >= 2 && strings.Contains(lines[len(lines)-1], `"p-4"`)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
