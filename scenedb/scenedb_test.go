package scenedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDynTableValidateOffsetWithinData(t *testing.T) {
	tbl := &DynTable{
		Data: make([]byte, 16),
		Lookups: []LookupEntry{
			{TypeID: 0, Flags: 0, Offset: 0},
			{TypeID: 1, Flags: 0, Offset: 8},
		},
	}
	require.NoError(t, tbl.Validate())
}

func TestDynTableValidateRejectsOutOfBounds(t *testing.T) {
	tbl := &DynTable{
		Data:    make([]byte, 8),
		Lookups: []LookupEntry{{Offset: 16}},
	}
	assert.Error(t, tbl.Validate())
}

func TestDynTableValidateRejectsNonMonotonic(t *testing.T) {
	tbl := &DynTable{
		Data: make([]byte, 16),
		Lookups: []LookupEntry{
			{Offset: 8},
			{Offset: 4},
		},
	}
	assert.Error(t, tbl.Validate())
}

func TestEntityCountFromFixTable(t *testing.T) {
	db := New()
	db.FixTables["entities"] = &FixTable{EntryCount: 3}
	assert.Equal(t, 3, db.EntityCount())
}

func TestEntityCountMissingTable(t *testing.T) {
	db := New()
	assert.Equal(t, 0, db.EntityCount())
}

func TestPreferredWidth(t *testing.T) {
	assert.Equal(t, BVH2, PreferredWidth(true, true))
	assert.Equal(t, BVH8, PreferredWidth(false, true))
	assert.Equal(t, BVH4, PreferredWidth(false, false))
}
