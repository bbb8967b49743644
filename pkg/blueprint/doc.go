// Package blueprint provides the shared data model and pub/sub schema for
// collaborative blueprint editing.
//
// # Overview
//
// A blueprint is a named, authored, ordered sequence of 2-D points that is
// drawn as a connected polyline. Blueprints are identified by the composite
// key (author, name). Clients edit a blueprint together by publishing single
// points to a blueprint-scoped destination and subscribing to the topics the
// relay re-broadcasts them on.
//
// # Topic Schema
//
// Topics are pure functions of (author, name, channel kind):
//
//	/topic/newpoint/{author}/{name}    single point  {"x":1.5,"y":2}
//	/topic/newpolygon/{author}/{name}  point list    [{"x":0,"y":0}, ...]
//	/app/newpoint/{author}/{name}      publish destination for a single point
//
// The same strings are used verbatim as Redis pub/sub channel names, so a
// client talking to Redis directly and a client bridged through the
// web-socket relay share one topology.
//
// # Precision
//
// Every point captured from pointer input is rounded to two decimal places
// (see Round). Point equality is exact-value equality, which is what echo
// suppression and collaborative de-duplication rely on.
//
// # Usage Example
//
//	key := blueprint.Key{Author: "ana", Name: "house"}
//	topic := blueprint.PointTopic(key)        // "/topic/newpoint/ana/house"
//	dest := blueprint.PointDestination(key)   // "/app/newpoint/ana/house"
//
//	p, err := blueprint.DecodePoint([]byte(`{"x":1.25,"y":3}`))
//	if errors.Is(err, blueprint.ErrMalformed) {
//		// drop it
//	}
package blueprint
