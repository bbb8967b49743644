// Package listing renders stored blueprints for the CLI.
package listing

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dyluth/blueprints/internal/store"
	"github.com/dyluth/blueprints/pkg/blueprint"
)

// OutputFormat specifies how to format the blueprint list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table with point counts and bounds
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete blueprints as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputFormatDefault, OutputFormatJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// Filter narrows a listing. All criteria are ANDed; zero values match
// everything.
type Filter struct {
	Author    string // exact author, fetched with ListByAuthor
	NameGlob  string // filepath.Match pattern on the name
	MinPoints int
}

func (f *Filter) matches(bp *blueprint.Blueprint) bool {
	if f.NameGlob != "" {
		matched, err := filepath.Match(f.NameGlob, bp.Name)
		if err != nil || !matched {
			return false
		}
	}
	return len(bp.Points) >= f.MinPoints
}

// List fetches blueprints from repo, applies filter (may be nil), sorts them
// by key and writes them to w. An author without blueprints lists as empty.
func List(ctx context.Context, repo store.Repository, format OutputFormat, filter *Filter, w io.Writer) error {
	if filter == nil {
		filter = &Filter{}
	}

	var (
		bps []*blueprint.Blueprint
		err error
	)
	if filter.Author != "" {
		bps, err = repo.ListByAuthor(ctx, filter.Author)
		if store.IsNotFound(err) {
			bps, err = nil, nil
		}
	} else {
		bps, err = repo.List(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list blueprints: %w", err)
	}

	matched := bps[:0]
	for _, bp := range bps {
		if filter.matches(bp) {
			matched = append(matched, bp)
		}
	}
	store.SortByKey(matched)

	switch format {
	case OutputFormatDefault:
		FormatTable(w, matched)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, matched); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}
