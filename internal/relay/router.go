package relay

import (
	"context"
	"fmt"

	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// Route relays every point published under /app/newpoint/ until ctx is
// cancelled. Each valid point is re-broadcast on its /topic/newpoint/ topic
// and appended to the blueprint's drawing list; once the list holds
// PolygonThreshold points it is published on /topic/newpolygon/ and reset.
//
// One router per Redis is assumed: the drawing list is not partitioned
// between routers.
func (s *Server) Route(ctx context.Context) error {
	pattern := blueprint.PointDestinationPattern()
	pubsub := s.rdb.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}
	glog.Infof("[relay] routing points from %s (polygon every %d points)", pattern, s.threshold)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			glog.Infof("[relay] point router stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("point subscription on %s closed", pattern)
			}
			if err := s.routePoint(ctx, msg.Channel, []byte(msg.Payload)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				glog.Errorf("[relay] failed to route point from %s: %v", msg.Channel, err)
			}
		}
	}
}

// routePoint handles one published point. Malformed destinations and
// payloads are dropped without error.
func (s *Server) routePoint(ctx context.Context, destination string, payload []byte) error {
	d, err := blueprint.ParseDestination(destination)
	if err != nil || d.Namespace != blueprint.AppNamespace || d.Kind != blueprint.ChannelNewPoint {
		glog.V(2).Infof("[relay] dropping message on %s: bad destination", destination)
		return nil
	}
	pt, err := blueprint.DecodePoint(payload)
	if err != nil {
		glog.V(2).Infof("[relay] dropping message on %s: %v", destination, err)
		return nil
	}

	data, err := blueprint.EncodePoint(pt)
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, blueprint.PointTopic(d.Key), data).Err(); err != nil {
		return fmt.Errorf("failed to publish point: %w", err)
	}

	drawing := blueprint.DrawingKey(d.Key)
	n, err := s.rdb.RPush(ctx, drawing, data).Result()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", drawing, err)
	}
	if n < int64(s.threshold) {
		return nil
	}
	return s.emitPolygon(ctx, d.Key)
}

// emitPolygon drains the drawing list of key and publishes it as one
// polygon.
func (s *Server) emitPolygon(ctx context.Context, key blueprint.Key) error {
	drawing := blueprint.DrawingKey(key)

	var lrange *redis.StringSliceCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, drawing, 0, -1)
		pipe.Del(ctx, drawing)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to drain %s: %w", drawing, err)
	}

	raw := lrange.Val()
	points := make([]blueprint.Point, 0, len(raw))
	for _, r := range raw {
		pt, err := blueprint.DecodePoint([]byte(r))
		if err != nil {
			glog.Warningf("[relay] skipping corrupt entry in %s: %v", drawing, err)
			continue
		}
		points = append(points, pt)
	}

	data, err := blueprint.EncodePolygon(points)
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, blueprint.PolygonTopic(key), data).Err(); err != nil {
		return fmt.Errorf("failed to publish polygon: %w", err)
	}
	glog.V(1).Infof("[relay] published %d-point polygon for %s", len(points), key)
	return nil
}
