package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRangeHeader(t *testing.T) {
	start, end, err := parseRangeHeader("bytes=0-1023")
	require.NoError(t, err)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(1023), end)

	// Открытый конец дорезается по размеру файла позже
	start, end, err = parseRangeHeader("bytes=500-")
	require.NoError(t, err)
	assert.Equal(t, int64(500), start)
	assert.Equal(t, int64(0), end)

	_, _, err = parseRangeHeader("items=0-10")
	assert.Error(t, err)

	_, _, err = parseRangeHeader("bytes=abc-10")
	assert.Error(t, err)
}

func TestParseOptionalParent(t *testing.T) {
	parent, err := parseOptionalParent("")
	require.NoError(t, err)
	assert.Nil(t, parent)

	parent, err = parseOptionalParent("null")
	require.NoError(t, err)
	assert.Nil(t, parent)

	parent, err = parseOptionalParent("3f0e3bb2-43b6-4b3e-b32a-0f1f0a6f4a11")
	require.NoError(t, err)
	require.NotNil(t, parent)

	_, err = parseOptionalParent("not-a-uuid")
	assert.Error(t, err)
}
