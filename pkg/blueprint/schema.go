package blueprint

import (
	"fmt"
	"strings"
)

// Topic and destination helpers
//
// Pattern: {namespace}/{channel_kind}/{author}/{name}
//
// Subscribers listen on the /topic namespace; clients publish into the /app
// namespace and the relay re-broadcasts onto /topic.

const (
	// TopicNamespace prefixes every subscribable destination.
	TopicNamespace = "/topic"

	// AppNamespace prefixes every destination clients publish to.
	AppNamespace = "/app"
)

// ChannelKind selects the kind of message carried on a topic.
type ChannelKind string

const (
	// ChannelNewPoint carries single points as they are drawn.
	ChannelNewPoint ChannelKind = "newpoint"

	// ChannelNewPolygon carries finished point lists rendered as filled shapes.
	ChannelNewPolygon ChannelKind = "newpolygon"
)

// Validate checks if the ChannelKind is a known value.
func (k ChannelKind) Validate() error {
	switch k {
	case ChannelNewPoint, ChannelNewPolygon:
		return nil
	default:
		return fmt.Errorf("unknown channel kind: %q", k)
	}
}

// Topic returns the subscribable destination for key and kind.
// Pattern: /topic/{kind}/{author}/{name}
func Topic(key Key, kind ChannelKind) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicNamespace, kind, key.Author, key.Name)
}

// PointTopic returns /topic/newpoint/{author}/{name}.
func PointTopic(key Key) string {
	return Topic(key, ChannelNewPoint)
}

// PolygonTopic returns /topic/newpolygon/{author}/{name}.
func PolygonTopic(key Key) string {
	return Topic(key, ChannelNewPolygon)
}

// PointDestination returns the publish destination for a single point.
// Pattern: /app/newpoint/{author}/{name}
func PointDestination(key Key) string {
	return fmt.Sprintf("%s/%s/%s/%s", AppNamespace, ChannelNewPoint, key.Author, key.Name)
}

// PointDestinationPattern matches every point destination. Used by the relay
// with PSUBSCRIBE.
func PointDestinationPattern() string {
	return fmt.Sprintf("%s/%s/*", AppNamespace, ChannelNewPoint)
}

// Destination is a parsed topic or publish destination.
type Destination struct {
	Namespace string
	Kind      ChannelKind
	Key       Key
}

// ParseDestination is the inverse of Topic and PointDestination.
func ParseDestination(s string) (Destination, error) {
	parts := strings.Split(s, "/")
	// leading slash yields an empty first element
	if len(parts) != 5 || parts[0] != "" {
		return Destination{}, fmt.Errorf("invalid destination %q: expected /{namespace}/{kind}/{author}/{name}", s)
	}

	d := Destination{
		Namespace: "/" + parts[1],
		Kind:      ChannelKind(parts[2]),
		Key:       Key{Author: parts[3], Name: parts[4]},
	}
	if d.Namespace != TopicNamespace && d.Namespace != AppNamespace {
		return Destination{}, fmt.Errorf("invalid destination %q: unknown namespace %q", s, d.Namespace)
	}
	if err := d.Kind.Validate(); err != nil {
		return Destination{}, fmt.Errorf("invalid destination %q: %w", s, err)
	}
	if err := d.Key.Validate(); err != nil {
		return Destination{}, fmt.Errorf("invalid destination %q: %w", s, err)
	}
	return d, nil
}

// Redis key helpers for server-side state.
//
// Pattern: blueprints:{entity}:{author}:{name}

// BlueprintKey returns the Redis key holding a stored blueprint as JSON.
// Pattern: blueprints:bp:{author}:{name}
func BlueprintKey(key Key) string {
	return fmt.Sprintf("blueprints:bp:%s:%s", key.Author, key.Name)
}

// AuthorIndexKey returns the Redis set of blueprint names stored for an author.
// Pattern: blueprints:author:{author}
func AuthorIndexKey(author string) string {
	return fmt.Sprintf("blueprints:author:%s", author)
}

// AuthorsKey returns the Redis set of every author with stored blueprints.
func AuthorsKey() string {
	return "blueprints:authors"
}

// DrawingKey returns the Redis list accumulating relayed points until the
// next polygon is emitted.
// Pattern: blueprints:drawing:{author}:{name}
func DrawingKey(key Key) string {
	return fmt.Sprintf("blueprints:drawing:%s:%s", key.Author, key.Name)
}
