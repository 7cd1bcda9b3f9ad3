package serialize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nelknet/dbspgo/pkg/serialize"
)

type point struct {
	X, Y int
}

func TestGobSerializerRoundTrip(t *testing.T) {
	t.Parallel()

	s := serialize.NewGobSerializer[point]()

	in := point{X: 3, Y: -7}

	data, err := s.Serialize(in)
	require.NoError(t, err)

	out, err := s.Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, in, out)
}

func TestGobSerializerEstimateSizeMatchesSerialize(t *testing.T) {
	t.Parallel()

	s := serialize.NewGobSerializer[point]()
	in := point{X: 1, Y: 2}

	data, err := s.Serialize(in)
	require.NoError(t, err)

	assert.Equal(t, len(data), s.EstimateSize(in))
}

func TestRegistryFallsBackToGob(t *testing.T) {
	t.Parallel()

	r := serialize.NewRegistry()

	s := serialize.LookupOrDefault[point](r, "point")

	data, err := s.Serialize(point{X: 5, Y: 9})
	require.NoError(t, err)

	out, err := s.Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, point{X: 5, Y: 9}, out)
}

type stringSerializer struct{}

func (stringSerializer) Serialize(v string) ([]byte, error)   { return []byte(v), nil }
func (stringSerializer) Deserialize(d []byte) (string, error) { return string(d), nil }
func (stringSerializer) EstimateSize(v string) int            { return len(v) }

func TestRegistryOverrideTakesPrecedence(t *testing.T) {
	t.Parallel()

	r := serialize.NewRegistry()
	serialize.Register[string](r, "raw-string", stringSerializer{})

	s, ok := serialize.Lookup[string](r, "raw-string")
	require.True(t, ok)

	data, err := s.Serialize("hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestRegistryLookupMissingReturnsFalse(t *testing.T) {
	t.Parallel()

	r := serialize.NewRegistry()

	_, ok := serialize.Lookup[point](r, "missing")
	assert.False(t, ok)
}
