package blueprint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	assert.Equal(t, 1.23, Round(1.234))
	assert.Equal(t, 1.24, Round(1.235000001))
	assert.Equal(t, -3.5, Round(-3.5))
	assert.Equal(t, 0.0, Round(0.001))
	assert.Equal(t, Point{X: 10.13, Y: -2.99}, Point{X: 10.129, Y: -2.991}.Round())
}

func TestPointEqual(t *testing.T) {
	assert.True(t, Point{X: 5, Y: 5}.Equal(Point{X: 5, Y: 5}))
	assert.False(t, Point{X: 5, Y: 5}.Equal(Point{X: 5, Y: 5.01}))
	assert.Equal(t, "(1.00, 2.50)", Point{X: 1, Y: 2.5}.String())
}

func TestKeyValidate(t *testing.T) {
	assert.NoError(t, Key{Author: "ana", Name: "house"}.Validate())

	err := Key{Author: "", Name: "house"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "author cannot be empty")

	err = Key{Author: "ana", Name: ""}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name cannot be empty")

	err = Key{Author: "ana", Name: "a/b"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot contain '/'")

	for _, k := range []Key{{Author: "a:b", Name: "c"}, {Author: "a", Name: "b:c"}} {
		err = k.Validate()
		require.Error(t, err, k)
		assert.Contains(t, err.Error(), "cannot contain '/' or ':'")
	}

	assert.Equal(t, "ana/house", Key{Author: "ana", Name: "house"}.String())
}

func TestBlueprintValidate(t *testing.T) {
	t.Run("accepts valid blueprint", func(t *testing.T) {
		bp := &Blueprint{Author: "ana", Name: "house", Points: []Point{{X: 1, Y: 2}}}
		assert.NoError(t, bp.Validate())
	})

	t.Run("accepts empty point list", func(t *testing.T) {
		bp := &Blueprint{Author: "ana", Name: "house"}
		assert.NoError(t, bp.Validate())
	})

	t.Run("rejects invalid key", func(t *testing.T) {
		bp := &Blueprint{Author: "", Name: "house"}
		err := bp.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid blueprint key")
	})

	t.Run("rejects non-finite coordinates", func(t *testing.T) {
		bp := &Blueprint{Author: "ana", Name: "house", Points: []Point{{X: 1, Y: 1}, {X: math.NaN(), Y: 0}}}
		err := bp.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index 1")
	})
}

func TestBlueprintClone(t *testing.T) {
	bp := &Blueprint{Author: "ana", Name: "house", Points: []Point{{X: 1, Y: 2}}}
	c := bp.Clone()
	c.Points[0].X = 99
	assert.Equal(t, 1.0, bp.Points[0].X)

	empty := (&Blueprint{Author: "ana", Name: "empty"}).Clone()
	assert.NotNil(t, empty.Points)
	assert.Empty(t, empty.Points)
}
