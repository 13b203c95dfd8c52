package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryGroup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cat   Category
		group string
		ratio bool
	}{
		{CategoryAssets, "assets_and_liabilities", false},
		{CategoryIncome, "income_analysis", false},
		{CategoryExpenses, "expense_tracking", false},
		{CategoryInsurance, "insurance_coverage", false},
		{CategoryPlanning, "future_planning_ratios", true},
		{CategoryWisdomIndex, "wisdom_index_ratios", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.group, tt.cat.Group())
			assert.Equal(t, tt.ratio, tt.cat.IsRatio())
		})
	}
	assert.Len(t, Categories, len(tests))
}

func TestGrouped(t *testing.T) {
	g := Grouped{}
	g.Set(CategoryAssets, "net-worth", Float(10))
	g.Set(CategoryPlanning, "retirement-ratio", nil)

	v, ok := g.Get(CategoryAssets, "net-worth")
	assert.True(t, ok)
	assert.Equal(t, 10.0, *v)

	v, ok = g.Get(CategoryPlanning, "retirement-ratio")
	assert.True(t, ok, "nil values are stored, not dropped")
	assert.Nil(t, v)

	_, ok = g.Get(CategoryIncome, "total-income")
	assert.False(t, ok)

	flat := g.Flatten()
	assert.Len(t, flat, 2)
	assert.Contains(t, flat, "retirement-ratio")
}

func TestOutcome(t *testing.T) {
	ok := OK(1.5)
	assert.True(t, ok.IsOK())
	assert.Equal(t, 1.5, *ok.Ptr())
	assert.Equal(t, "ok(1.5)", ok.String())

	none := NoData()
	assert.False(t, none.IsOK())
	assert.Nil(t, none.Ptr())
	assert.Equal(t, "no_data", none.String())

	failed := Failed(ErrStore, errors.New("conn refused"))
	assert.Nil(t, failed.Ptr())
	assert.Equal(t, ErrStore, failed.ErrorKind)
	assert.Contains(t, failed.String(), "store")
}
