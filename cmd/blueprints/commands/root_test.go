package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyluth/blueprints/internal/relay"
	"github.com/dyluth/blueprints/internal/store/redisstore"
	"github.com/dyluth/blueprints/internal/testutil"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRootCommand_ShowsHelpWhenNoSubcommand tests that the root command
// shows help instead of silently succeeding when invoked without a subcommand
func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yml")})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, Execute())
	output := buf.String()
	assert.Contains(t, output, "Usage:")
	for _, sub := range []string{"serve", "draw", "watch", "list", "get"} {
		assert.Contains(t, output, sub)
	}
}

// TestDrawAndList drives the CLI against an in-process relay: a new
// blueprint is drawn from a script, saved through the REST API, rendered to
// PNG and then listed.
func TestDrawAndList(t *testing.T) {
	rdb, _ := testutil.SetupRedis(t)
	repo := redisstore.New(rdb)
	srv, err := relay.New(relay.Options{Redis: rdb, Repository: repo})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	configFile := filepath.Join(dir, "blueprints.yml")
	require.NoError(t, os.WriteFile(configFile, []byte(fmt.Sprintf(`version: "1.0"
transport:
  kind: websocket
  endpoint: %s
store:
  url: %s
`, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", ts.URL)), 0644))

	run := func(stdin string, args ...string) string {
		t.Helper()
		out := new(bytes.Buffer)
		rootCmd.SetOut(out)
		rootCmd.SetErr(out)
		rootCmd.SetIn(strings.NewReader(stdin))
		rootCmd.SetArgs(append([]string{"--config", configFile}, args...))
		require.NoError(t, Execute(), out.String())
		return out.String()
	}
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	png := filepath.Join(dir, "house.png")
	// the first point of an empty drawing maps 1:1; the second is placed
	// after the view was fitted around (10, 20) at scale 480
	out := run("10 20\n250 250\n", "draw", "ana/house", "--new", "--save", "--png", png)
	assert.Contains(t, out, "saved ana/house (2 points)")

	bp, err := repo.Get(context.Background(), blueprint.Key{Author: "ana", Name: "house"})
	require.NoError(t, err)
	assert.Equal(t, []blueprint.Point{{X: 10, Y: 20}, {X: 10.5, Y: 20.5}}, bp.Points)

	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	out = run("", "list", "--output", "jsonl")
	var listed blueprint.Blueprint
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &listed))
	assert.Equal(t, bp, &listed)

	out = run("", "get", "ana/house")
	assert.Contains(t, out, `"author": "ana"`)
}
