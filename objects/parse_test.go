package objects

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVector(t *testing.T) {
	v, err := ParseVector("1, 2.5,3")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2.5, 3}, v)

	v, err = ParseVector("0.5\t-1 2")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2}, v)

	_, err = ParseVector("")
	assert.Error(t, err)
	_, err = ParseVector("1, two, 3")
	assert.Error(t, err)
}

func TestReadObjects(t *testing.T) {
	input := `# dataset header
first: 1, 2, 3

4, 5, 6
second: 7 8 9
`
	objs, err := ReadObjects(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, objs, 3)

	assert.Equal(t, "first", objs[0].Locator)
	// unlabeled lines get their line number
	assert.Equal(t, "4", objs[1].Locator)
	assert.Equal(t, "second", objs[2].Locator)
	assert.Equal(t, []float32{7, 8, 9}, objs[2].Data)
}

func TestReadObjectsDimensionMismatch(t *testing.T) {
	_, err := ReadObjects(strings.NewReader("1, 2\n1, 2, 3\n"))
	assert.ErrorContains(t, err, "dimension")
}

func TestRandomObject(t *testing.T) {
	o := Random("r", 16, -1, 1)
	assert.Equal(t, 16, o.Dimension())
	for _, v := range o.Data {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.Less(t, v, float32(1))
	}
}
