package atomic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/atomic"
)

func Test_LocalIDs_Assign_And_Lookup(t *testing.T) {
	// arrange
	ids := atomic.NewLocalIDs()

	// act
	err := ids.Assign("a", jsonapi.MustResourceID("9"))

	// assert
	require.NoError(t, err)
	id, ok := ids.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "9", id.String())
	assert.Equal(t, 1, ids.Len())

	_, ok = ids.Lookup("b")
	assert.False(t, ok)
}

func Test_LocalIDs_Entries_Are_Never_Overwritten(t *testing.T) {
	// arrange
	ids := atomic.NewLocalIDs()
	require.NoError(t, ids.Assign("a", jsonapi.MustResourceID("9")))

	// act
	err := ids.Assign("a", jsonapi.MustResourceID("10"))

	// assert
	assert.ErrorIs(t, err, atomic.ErrDuplicateLocalID)
	id, _ := ids.Lookup("a")
	assert.Equal(t, "9", id.String())
}

func Test_LocalIDs_Reject_Empty_Local_IDs(t *testing.T) {
	assert.ErrorIs(t, atomic.NewLocalIDs().Assign("", jsonapi.MustResourceID("1")), atomic.ErrEmptyLocalID)
}
