package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dyluth/blueprints/internal/store/redisstore"
	"github.com/dyluth/blueprints/internal/testutil"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *redisstore.Store {
	t.Helper()
	rdb, _ := testutil.SetupRedis(t)
	repo := redisstore.New(rdb)
	ctx := context.Background()
	for _, bp := range []*blueprint.Blueprint{
		{Author: "ben", Name: "bridge", Points: []blueprint.Point{{X: 0, Y: 0}}},
		{Author: "ana", Name: "house", Points: []blueprint.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}},
		{Author: "ana", Name: "hut", Points: []blueprint.Point{}},
		{Author: "ana", Name: "barn", Points: []blueprint.Point{{X: -1, Y: 2}, {X: 3, Y: -4}}},
	} {
		require.NoError(t, repo.Create(ctx, bp))
	}
	return repo
}

func names(t *testing.T, jsonl string) []string {
	t.Helper()
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(jsonl), "\n") {
		if line == "" {
			continue
		}
		var bp blueprint.Blueprint
		require.NoError(t, json.Unmarshal([]byte(line), &bp))
		out = append(out, bp.Key().String())
	}
	return out
}

func TestList(t *testing.T) {
	repo := seeded(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		filter   *Filter
		expected []string
	}{
		{"no filter", nil, []string{"ana/barn", "ana/house", "ana/hut", "ben/bridge"}},
		{"author", &Filter{Author: "ben"}, []string{"ben/bridge"}},
		{"unknown author", &Filter{Author: "zoe"}, nil},
		{"name glob", &Filter{NameGlob: "h*"}, []string{"ana/house", "ana/hut"}},
		{"min points", &Filter{MinPoints: 2}, []string{"ana/barn", "ana/house"}},
		{"combined", &Filter{Author: "ana", NameGlob: "h*", MinPoints: 1}, []string{"ana/house"}},
		{"bad glob matches nothing", &Filter{NameGlob: "["}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, List(ctx, repo, OutputFormatJSONL, tt.filter, &buf))
			assert.Equal(t, tt.expected, names(t, buf.String()))
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		err := List(ctx, repo, "xml", nil, &bytes.Buffer{})
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestFormatTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Equal(t, 0, FormatTable(&buf, nil))
		assert.Equal(t, "No blueprints found\n", buf.String())
	})

	t.Run("rows", func(t *testing.T) {
		var buf bytes.Buffer
		n := FormatTable(&buf, []*blueprint.Blueprint{
			{Author: "ana", Name: "barn", Points: []blueprint.Point{{X: -1, Y: 2}, {X: 3, Y: -4}}},
			{Author: "ana", Name: "hut", Points: []blueprint.Point{}},
		})
		assert.Equal(t, 2, n)

		out := buf.String()
		assert.Contains(t, out, "AUTHOR")
		assert.Contains(t, out, "(-1.00, -4.00)-(3.00, 2.00)")
		assert.Contains(t, out, "2 blueprints found")

		lines := strings.Split(out, "\n")
		assert.Contains(t, lines[3], "hut")
		assert.True(t, strings.HasSuffix(lines[3], " -"), "empty blueprint has no bounds: %q", lines[3])
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 8))
	assert.Equal(t, "exactly8", truncate("exactly8", 8))
	assert.Equal(t, "a-lon...", truncate("a-longer-name", 8))
}

func TestFormatSingleJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatSingleJSON(&buf, &blueprint.Blueprint{Author: "ana", Name: "hut"}))
	assert.JSONEq(t, `{"author":"ana","name":"hut","points":[]}`, buf.String())
	assert.True(t, strings.HasSuffix(buf.String(), "}\n"))
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("jsonl")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSONL, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}
