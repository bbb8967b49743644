// Package watch streams the live points and polygons of one blueprint to a
// writer.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dyluth/blueprints/internal/collab"
	"github.com/dyluth/blueprints/internal/printer"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/golang/glog"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable, one colored line per event
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is one Event object per line
	OutputFormatJSON OutputFormat = "json"
)

// Event kinds
const (
	EventPoint   = "point"
	EventPolygon = "polygon"
)

// Event is one JSON line of OutputFormatJSON.
type Event struct {
	Event     string            `json:"event"`
	Blueprint string            `json:"blueprint"`
	Point     *blueprint.Point  `json:"point,omitempty"`
	Points    []blueprint.Point `json:"points,omitempty"`
}

// Options selects what Stream subscribes to.
type Options struct {
	Format   OutputFormat
	Polygons bool
}

// Stream subscribes to key's point topic (and polygon topic when requested)
// and writes every event to w until ctx is cancelled or a subscription ends.
// Events are written in arrival order from a single goroutine.
func Stream(ctx context.Context, reg *collab.Registry, key blueprint.Key, opts Options, w io.Writer) error {
	if opts.Format == "" {
		opts.Format = OutputFormatDefault
	}
	if opts.Format != OutputFormatDefault && opts.Format != OutputFormatJSON {
		return fmt.Errorf("unknown output format: %s", opts.Format)
	}

	events := make(chan Event, 64)
	quit := make(chan struct{})
	var subs []*collab.Subscription
	// quit first: Close waits for a callback that may be blocked in emit
	defer func() {
		close(quit)
		for _, sub := range subs {
			sub.Close()
		}
	}()
	emit := func(e Event) {
		select {
		case events <- e:
		case <-quit:
		}
	}

	points, err := reg.SubscribePoints(ctx, key, func(pt blueprint.Point) {
		emit(Event{Event: EventPoint, Blueprint: key.String(), Point: &pt})
	})
	if err != nil {
		return err
	}
	subs = append(subs, points)

	// a nil channel never fires, so without polygons only points can end the stream
	var polygonsStopped <-chan struct{}
	if opts.Polygons {
		polygons, err := reg.SubscribePolygons(ctx, key, func(pts []blueprint.Point) {
			emit(Event{Event: EventPolygon, Blueprint: key.String(), Points: pts})
		})
		if err != nil {
			return err
		}
		subs = append(subs, polygons)
		polygonsStopped = polygons.Stopped()
	}
	glog.Infof("[watch] streaming %s", key)

	out := printer.New(w, w)
	enc := json.NewEncoder(w)
	for {
		select {
		case e := <-events:
			if err := write(out, enc, opts.Format, key, e); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		case <-points.Stopped():
			return fmt.Errorf("point subscription for %s ended", key)
		case <-polygonsStopped:
			return fmt.Errorf("polygon subscription for %s ended", key)
		}
	}
}

func write(out *printer.Printer, enc *json.Encoder, format OutputFormat, key blueprint.Key, e Event) error {
	if format == OutputFormatJSON {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
		return nil
	}
	switch e.Event {
	case EventPoint:
		out.Point(key, *e.Point, "")
	case EventPolygon:
		out.Polygon(key, e.Points)
	}
	return nil
}
