package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_Equal(t *testing.T) {
	a := map[string]any{"wallet": "0x742D35CC6634C0532925A3B8D000B45F5C964C12", "amount": 1}
	b := map[string]any{"amount": 1, "wallet": "0x742d35cc6634c0532925a3b8d000b45f5c964c12"}

	cmp, err := Compare(a, b)
	require.NoError(t, err)
	assert.True(t, cmp.AreEqual)
	assert.Empty(t, cmp.Differences)
}

func TestCompare_ReportsEveryDifference(t *testing.T) {
	a := map[string]any{"amount": 50000, "hours": 8, "only1": "x", "same": true}
	b := map[string]any{"amount": 50001, "hours": 9, "only2": "y", "same": true}

	cmp, err := Compare(a, b)
	require.NoError(t, err)
	require.False(t, cmp.AreEqual)
	require.Len(t, cmp.Differences, 4)

	assert.Equal(t, Difference{Key: "amount", Value1: json.Number("50000"), Value2: json.Number("50001")}, cmp.Differences[0])
	assert.Equal(t, Difference{Key: "hours", Value1: json.Number("8"), Value2: json.Number("9")}, cmp.Differences[1])
	assert.Equal(t, Difference{Key: "only1", Value1: "x", Value2: Missing}, cmp.Differences[2])
	assert.Equal(t, Difference{Key: "only2", Value1: Missing, Value2: "y"}, cmp.Differences[3])
}

func TestCompare_NullIsNotMissing(t *testing.T) {
	cmp, err := Compare(map[string]any{"a": nil}, map[string]any{})
	require.NoError(t, err)
	require.Len(t, cmp.Differences, 1)
	assert.Nil(t, cmp.Differences[0].Value1)
	assert.Equal(t, Missing, cmp.Differences[0].Value2)
}

func TestCompare_NestedDifferenceReportedAtTopLevel(t *testing.T) {
	a := map[string]any{"meta": map[string]any{"x": 1, "y": 2}}
	b := map[string]any{"meta": map[string]any{"y": 2, "x": 3}}

	cmp, err := Compare(a, b)
	require.NoError(t, err)
	require.Len(t, cmp.Differences, 1)
	assert.Equal(t, "meta", cmp.Differences[0].Key)
}

func TestCompare_NonMapRoots(t *testing.T) {
	cmp, err := Compare([]any{1, 2}, []any{2, 1})
	require.NoError(t, err)
	assert.False(t, cmp.AreEqual)
	require.Len(t, cmp.Differences, 1)
	assert.Equal(t, "", cmp.Differences[0].Key)
}

func TestCompare_PropagatesCanonicalizationErrors(t *testing.T) {
	_, err := Compare(map[string]any{"a": make(chan int)}, map[string]any{})
	require.Error(t, err)
}
