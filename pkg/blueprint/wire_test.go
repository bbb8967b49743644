package blueprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePoint(t *testing.T) {
	t.Run("decodes valid point", func(t *testing.T) {
		p, err := DecodePoint([]byte(`{"x":1.25,"y":-3}`))
		require.NoError(t, err)
		assert.Equal(t, Point{X: 1.25, Y: -3}, p)
	})

	t.Run("accepts zero coordinates", func(t *testing.T) {
		p, err := DecodePoint([]byte(`{"x":0,"y":0}`))
		require.NoError(t, err)
		assert.Equal(t, Point{}, p)
	})

	t.Run("rejects missing coordinate", func(t *testing.T) {
		_, err := DecodePoint([]byte(`{"x":1}`))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		_, err := DecodePoint([]byte(`not json`))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("rejects wrong types", func(t *testing.T) {
		_, err := DecodePoint([]byte(`{"x":"1","y":2}`))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestDecodePolygon(t *testing.T) {
	t.Run("decodes quadrilateral", func(t *testing.T) {
		pts, err := DecodePolygon([]byte(`[{"x":0,"y":0},{"x":10,"y":0},{"x":10,"y":10},{"x":0,"y":10}]`))
		require.NoError(t, err)
		assert.Equal(t, []Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}, pts)
	})

	t.Run("decodes empty array", func(t *testing.T) {
		pts, err := DecodePolygon([]byte(`[]`))
		require.NoError(t, err)
		assert.Empty(t, pts)
	})

	t.Run("rejects null", func(t *testing.T) {
		_, err := DecodePolygon([]byte(`null`))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("rejects single object", func(t *testing.T) {
		_, err := DecodePolygon([]byte(`{"x":1,"y":2}`))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("rejects incomplete member", func(t *testing.T) {
		_, err := DecodePolygon([]byte(`[{"x":1,"y":2},{"y":3}]`))
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Contains(t, err.Error(), "polygon point 1")
	})
}

func TestEncode(t *testing.T) {
	data, err := EncodePoint(Point{X: 1.5, Y: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1.5,"y":2}`, string(data))

	data, err = EncodePolygon(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}
