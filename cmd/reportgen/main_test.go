package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs(" 1, 2,,30 ")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 30}, ids)

	ids, err = parseIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = parseIDs("1,abc")
	assert.EqualError(t, err, `invalid investor id "abc"`)
}

func TestSummarize(t *testing.T) {
	assert.NoError(t, summarize(zap.NewNop(), 3, 0))
	assert.EqualError(t, summarize(zap.NewNop(), 3, 1), "1 of 3 reports failed")
}
