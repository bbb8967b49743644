package listing

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dyluth/blueprints/pkg/blueprint"
)

// FormatTable writes blueprints as a formatted table to the provided writer.
// The table includes columns: AUTHOR, NAME, POINTS and BOUNDS.
// Returns the number of blueprints formatted.
func FormatTable(w io.Writer, bps []*blueprint.Blueprint) int {
	if len(bps) == 0 {
		fmt.Fprintln(w, "No blueprints found")
		return 0
	}

	fmt.Fprintf(w, "%-16s %-24s %-6s %s\n", "AUTHOR", "NAME", "POINTS", "BOUNDS")
	fmt.Fprintf(w, "%-16s %-24s %-6s %s\n",
		"----------------", "------------------------", "------", "------------------------------")

	for _, bp := range bps {
		fmt.Fprintf(w, "%-16s %-24s %-6d %s\n",
			truncate(bp.Author, 16),
			truncate(bp.Name, 24),
			len(bp.Points),
			formatBounds(bp.Points),
		)
	}

	countMsg := "blueprint"
	if len(bps) != 1 {
		countMsg = "blueprints"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(bps), countMsg)

	return len(bps)
}

// FormatJSONL writes one compact JSON object per blueprint per line, for
// piping into tools like jq.
func FormatJSONL(w io.Writer, bps []*blueprint.Blueprint) error {
	for _, bp := range bps {
		data, err := json.Marshal(bp.Clone())
		if err != nil {
			return fmt.Errorf("failed to marshal blueprint to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes one blueprint as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, bp *blueprint.Blueprint) error {
	data, err := json.MarshalIndent(bp.Clone(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal blueprint to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// truncate shortens s to n characters, marking the cut with "...".
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// formatBounds renders the bounding box of points, or "-" when empty.
func formatBounds(points []blueprint.Point) string {
	if len(points) == 0 {
		return "-"
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return fmt.Sprintf("%s-%s",
		blueprint.Point{X: minX, Y: minY}, blueprint.Point{X: maxX, Y: maxY})
}
