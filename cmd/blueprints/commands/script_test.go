package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/blueprints/internal/canvas"
	"github.com/dyluth/blueprints/internal/editor"
	"github.com/dyluth/blueprints/internal/printer"
	"github.com/dyluth/blueprints/internal/store/redisstore"
	"github.com/dyluth/blueprints/internal/testutil"
	"github.com/dyluth/blueprints/internal/transport"
	"github.com/dyluth/blueprints/internal/transport/membroker"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var house = blueprint.Key{Author: "ana", Name: "house"}

// openHouse opens a session on a saved three-point house. At 500x500 with
// the default margin the drawing scale is 48, so (58, 106) is model (1, 2).
func openHouse(t *testing.T) (*editor.Session, *redisstore.Store, *membroker.Broker) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	ctx := context.Background()
	rdb, _ := testutil.SetupRedis(t)
	repo := redisstore.New(rdb)
	bp := &blueprint.Blueprint{Author: "ana", Name: "house", Points: []blueprint.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}}
	require.NoError(t, repo.Create(ctx, bp))

	broker := membroker.New(membroker.WithRelay(membroker.AppToTopic))
	mgr := transport.NewManager(broker, 20*time.Millisecond)
	t.Cleanup(func() { mgr.Close() })

	ed := editor.New(mgr, repo, canvas.NewRecorder(500, 500))
	s, err := ed.Open(ctx, bp, editor.OpenOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(ctx, false) })
	return s, repo, broker
}

func TestRunScript(t *testing.T) {
	s, repo, broker := openHouse(t)
	ctx := context.Background()
	var out bytes.Buffer

	script := `# outline the chimney
58 106
58 106 pointermove
490 490 touchstart
undo

save
`
	require.NoError(t, runScript(ctx, s, strings.NewReader(script), printer.New(&out, &out)))

	bp, err := repo.Get(ctx, house)
	require.NoError(t, err)
	assert.Equal(t, []blueprint.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 1, Y: 2}}, bp.Points)
	assert.False(t, s.Modified())

	text := out.String()
	assert.Contains(t, text, "(1.00, 2.00)  (local)")
	assert.Contains(t, text, "undo\n")
	assert.Contains(t, text, "✓ saved ana/house (4 points)")

	var sent int
	for _, m := range broker.Published() {
		if m.Destination == blueprint.PointDestination(house) {
			sent++
		}
	}
	assert.Equal(t, 2, sent, "undo does not retract a published point")
}

func TestRunScriptErrors(t *testing.T) {
	tests := []struct {
		script string
		errMsg string
	}{
		{"bogus", `line 1: unknown command "bogus"`},
		{"58 106\n1 two", `line 2: invalid y "two"`},
		{"1 2 hover", `unknown pointer kind "hover"`},
		{"wait", "usage: wait DURATION"},
		{"wait soon", "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			s, _, _ := openHouse(t)
			err := runScript(context.Background(), s, strings.NewReader(tt.script), printer.New(&bytes.Buffer{}, &bytes.Buffer{}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRunScriptWaitHonoursContext(t *testing.T) {
	s, _, _ := openHouse(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runScript(ctx, s, strings.NewReader("wait 1h"), printer.New(&bytes.Buffer{}, &bytes.Buffer{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseKey(t *testing.T) {
	key, err := parseKey([]string{"ana/house"})
	require.NoError(t, err)
	assert.Equal(t, house, key)

	key, err = parseKey([]string{"ana", "house"})
	require.NoError(t, err)
	assert.Equal(t, house, key)

	for _, args := range [][]string{{"ana"}, {"ana/"}, {"a/b/c"}, {}, {"a", "b", "c"}} {
		_, err := parseKey(args)
		assert.Error(t, err, "%q", args)
	}
}
