package blueprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicHelpers(t *testing.T) {
	key := Key{Author: "ana", Name: "house"}

	assert.Equal(t, "/topic/newpoint/ana/house", PointTopic(key))
	assert.Equal(t, "/topic/newpolygon/ana/house", PolygonTopic(key))
	assert.Equal(t, "/app/newpoint/ana/house", PointDestination(key))
	assert.Equal(t, "/app/newpoint/*", PointDestinationPattern())
	assert.Equal(t, PointTopic(key), Topic(key, ChannelNewPoint))
}

func TestRedisKeyHelpers(t *testing.T) {
	key := Key{Author: "ana", Name: "house"}

	assert.Equal(t, "blueprints:bp:ana:house", BlueprintKey(key))
	assert.Equal(t, "blueprints:author:ana", AuthorIndexKey("ana"))
	assert.Equal(t, "blueprints:drawing:ana:house", DrawingKey(key))
	assert.Equal(t, "blueprints:authors", AuthorsKey())
}

func TestParseDestination(t *testing.T) {
	key := Key{Author: "ana", Name: "house"}

	t.Run("round-trips topics", func(t *testing.T) {
		for _, kind := range []ChannelKind{ChannelNewPoint, ChannelNewPolygon} {
			d, err := ParseDestination(Topic(key, kind))
			require.NoError(t, err)
			assert.Equal(t, TopicNamespace, d.Namespace)
			assert.Equal(t, kind, d.Kind)
			assert.Equal(t, key, d.Key)
		}
	})

	t.Run("round-trips publish destinations", func(t *testing.T) {
		d, err := ParseDestination(PointDestination(key))
		require.NoError(t, err)
		assert.Equal(t, AppNamespace, d.Namespace)
		assert.Equal(t, ChannelNewPoint, d.Kind)
		assert.Equal(t, key, d.Key)
	})

	t.Run("rejects malformed destinations", func(t *testing.T) {
		cases := []string{
			"",
			"topic/newpoint/ana/house",
			"/topic/newpoint/ana",
			"/topic/newpoint/ana/house/extra",
			"/queue/newpoint/ana/house",
			"/topic/newline/ana/house",
			"/topic/newpoint//house",
			"/app/newpoint/a:b/c",
		}
		for _, c := range cases {
			_, err := ParseDestination(c)
			assert.Error(t, err, c)
		}
	})
}

func TestChannelKindValidate(t *testing.T) {
	assert.NoError(t, ChannelNewPoint.Validate())
	assert.NoError(t, ChannelNewPolygon.Validate())
	assert.Error(t, ChannelKind("newline").Validate())
}
