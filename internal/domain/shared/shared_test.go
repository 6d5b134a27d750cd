package shared

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesCode(t *testing.T) {
	detailed := ErrInsufficientStock.WithDetails(map[string]any{"short": 2})
	wrapped := fmt.Errorf("create sale: %w", detailed)

	assert.ErrorIs(t, wrapped, ErrInsufficientStock)
	assert.NotErrorIs(t, wrapped, ErrStockAlreadyReallocated)
	assert.Empty(t, ErrInsufficientStock.Details)

	de, ok := AsDomainError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 2, de.Details["short"])
}

func TestNewID_FollowsCreationOrder(t *testing.T) {
	prev := NewID()
	for range 100 {
		next := NewID()
		assert.Less(t, prev.String(), next.String())
		prev = next
	}
}

func TestFilter_Normalize(t *testing.T) {
	f := Filter{Page: 0, PageSize: 500, OrderDir: "sideways"}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 200, f.PageSize)
	assert.Equal(t, "desc", f.OrderDir)
	assert.Equal(t, 0, f.Offset())
	assert.Equal(t, 40, Filter{Page: 3, PageSize: 20}.Offset())
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 41, 3, 20)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, NewPaginated[int](nil, 5, 1, 0).TotalPages)
}
