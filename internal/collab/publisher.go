package collab

import (
	"context"

	"github.com/dyluth/blueprints/internal/transport"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/golang/glog"
)

// Publisher sends locally added points to the blueprint's publish
// destination.
type Publisher struct {
	mgr *transport.Manager
}

// NewPublisher creates a publisher on top of mgr.
func NewPublisher(mgr *transport.Manager) *Publisher {
	return &Publisher{mgr: mgr}
}

// Publish connects if needed and sends p to /app/newpoint/{author}/{name}.
// Delivery is not acknowledged.
func (p *Publisher) Publish(ctx context.Context, key blueprint.Key, pt blueprint.Point) error {
	destination := blueprint.PointDestination(key)

	payload, err := blueprint.EncodePoint(pt)
	if err != nil {
		return &PublishError{Destination: destination, Err: err}
	}

	conn, err := p.mgr.Acquire(ctx)
	if err != nil {
		return &PublishError{Destination: destination, Err: err}
	}
	if err := conn.Publish(ctx, destination, payload); err != nil {
		return &PublishError{Destination: destination, Err: err}
	}

	glog.V(2).Infof("[collab] published %s to %s", pt, destination)
	return nil
}
