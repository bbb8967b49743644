package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/blueprints/internal/collab"
	"github.com/dyluth/blueprints/internal/editor"
	"github.com/dyluth/blueprints/internal/printer"
)

// runScript feeds a drawing script to an open session, one command per line:
//
//	X Y [KIND]      pointer event in surface pixels; KIND defaults to pointerdown
//	undo            remove the last local point
//	discard         drop every unsaved point
//	save            persist the current snapshot
//	wait DURATION   let collaborative points arrive, e.g. "wait 500ms"
//	# ...           comment
//
// A failed publish is reported and the script continues; the point stays
// local. Any other failure stops the script.
func runScript(ctx context.Context, s *editor.Session, r io.Reader, p *printer.Printer) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := runCommand(ctx, s, fields, p); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, s *editor.Session, fields []string, p *printer.Printer) error {
	switch fields[0] {
	case "undo":
		if s.Undo() {
			p.Info("undo\n")
		} else {
			p.Warning("nothing to undo\n")
		}
		return nil
	case "discard":
		s.Discard()
		p.Info("discarded unsaved points\n")
		return nil
	case "save":
		if err := s.Save(ctx); err != nil {
			return err
		}
		p.Success("saved %s (%d points)\n", s.Key(), len(s.Snapshot()))
		return nil
	case "wait":
		if len(fields) != 2 {
			return errors.New("usage: wait DURATION")
		}
		d, err := time.ParseDuration(fields[1])
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ev, err := parsePointer(fields)
	if err != nil {
		return err
	}
	pt, accepted, err := s.HandlePointer(ctx, ev)
	var pubErr *collab.PublishError
	switch {
	case errors.As(err, &pubErr):
		p.Warning("%s not sent: %v\n", pt, pubErr.Err)
	case err != nil:
		return err
	case accepted:
		p.Point(s.Key(), pt, "local")
	}
	return nil
}

func parsePointer(fields []string) (editor.PointerEvent, error) {
	if len(fields) < 2 || len(fields) > 3 {
		return editor.PointerEvent{}, fmt.Errorf("unknown command %q", strings.Join(fields, " "))
	}
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return editor.PointerEvent{}, fmt.Errorf("invalid x %q", fields[0])
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return editor.PointerEvent{}, fmt.Errorf("invalid y %q", fields[1])
	}

	ev := editor.PointerEvent{X: x, Y: y, Kind: editor.PointerDown}
	if len(fields) == 3 {
		switch k := editor.PointerKind(fields[2]); k {
		case editor.PointerDown, editor.TouchStart, editor.PointerMove, editor.PointerUp:
			ev.Kind = k
		default:
			return editor.PointerEvent{}, fmt.Errorf("unknown pointer kind %q", fields[2])
		}
	}
	return ev, nil
}
