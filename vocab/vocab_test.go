package vocab

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digits() []string {
	return []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}
}

func TestNew_DefaultBlankIsLast(t *testing.T) {
	v, err := New(digits())
	require.NoError(t, err)

	assert.Equal(t, 10, v.Size())
	assert.Equal(t, 11, v.SizeWithBlank())
	assert.Equal(t, 10, v.BlankIndex())

	for i, s := range digits() {
		id, ok := v.ID(s)
		require.True(t, ok)
		assert.Equal(t, i, id)
		assert.NotEqual(t, v.BlankIndex(), id)
	}
	s, ok := v.Symbol(10)
	assert.True(t, ok)
	assert.Equal(t, BlankSymbol, s)
}

func TestNew_ExplicitBlankShiftsFollowingSymbols(t *testing.T) {
	v, err := New([]string{"a", "b", "c"}, WithBlankIndex(0))
	require.NoError(t, err)

	assert.Equal(t, 0, v.BlankIndex())
	id, _ := v.ID("a")
	assert.Equal(t, 1, id)
	id, _ = v.ID("c")
	assert.Equal(t, 3, id)
	s, _ := v.Symbol(3)
	assert.Equal(t, "c", s)
	_, ok := v.Symbol(4)
	assert.False(t, ok)
}

func TestNew_Errors(t *testing.T) {
	_, err := New([]string{"a"}, WithBlankIndex(2))
	assert.Error(t, err)
	_, err = New([]string{"a"}, WithBlankIndex(-1))
	assert.Error(t, err)
	_, err = New([]string{"a", "a"})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	v, err := Load(strings.NewReader("a\nb\n\n \nc\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", " ", "c"}, v.Symbols())
	assert.Equal(t, 4, v.BlankIndex())
}

func TestLoad_BlankMarker(t *testing.T) {
	v, err := Load(strings.NewReader("<blk>\na\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, v.BlankIndex())
	assert.Equal(t, 2, v.Size())

	_, err = Load(strings.NewReader("a\n<blank>\nb\n"), WithBlankIndex(0))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("<blk>\na\n<blk>\n"))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	v, err := New([]string{"▁he", "llo", "▁wor", "ld"})
	require.NoError(t, err)
	blank := v.BlankIndex()

	assert.Equal(t, "hello world", v.Decode([]int{blank, 0, 1, blank, 2, 3, 99}))
	assert.Equal(t, "", v.Decode([]int{blank}))
}
