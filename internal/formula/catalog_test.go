package formula

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wisdom-metrics/internal/actuarial"
	"github.com/sells-group/wisdom-metrics/internal/model"
)

func TestCatalog_Counts(t *testing.T) {
	counts := map[model.Category]int{}
	for _, m := range All() {
		counts[m.Category]++
	}

	assert.Len(t, All(), 38)
	assert.Equal(t, 7, counts[model.CategoryAssets])
	assert.Equal(t, 6, counts[model.CategoryIncome])
	assert.Equal(t, 7, counts[model.CategoryExpenses])
	assert.Equal(t, 7, counts[model.CategoryInsurance])
	assert.Equal(t, 6, counts[model.CategoryPlanning])
	assert.Equal(t, 5, counts[model.CategoryWisdomIndex])
}

func TestCatalog_MetadataComplete(t *testing.T) {
	for _, m := range All() {
		t.Run(m.Key, func(t *testing.T) {
			assert.NotEmpty(t, m.Title)
			assert.NotEmpty(t, m.Formula)
			assert.NotEmpty(t, m.Description)
			assert.NotEmpty(t, m.Tables)
			assert.NotEmpty(t, m.Inputs())
		})
	}
}

func TestLookup(t *testing.T) {
	m, err := Lookup("net-worth")
	require.NoError(t, err)
	assert.Equal(t, "Net Worth", m.Title)

	_, err = Lookup("net_worth")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownMetric))
}

func TestKeys_Sorted(t *testing.T) {
	keys := Keys()
	assert.Len(t, keys, 38)
	assert.True(t, sort.StringsAreSorted(keys))
}

func TestMetadata(t *testing.T) {
	md, ok := Metadata("retirement-ratio")
	require.True(t, ok)
	assert.Equal(t, model.CategoryPlanning, md.Category)
	assert.Contains(t, md.Tables, "savings")

	_, ok = Metadata("nope")
	assert.False(t, ok)
}

func TestSummaryKeys_Registered(t *testing.T) {
	for _, key := range SummaryKeys {
		_, err := Lookup(key)
		assert.NoError(t, err, key)
	}
}

func eval(t *testing.T, key string, row Row) model.Outcome {
	t.Helper()
	m, err := Lookup(key)
	require.NoError(t, err)
	return m.Evaluate(row)
}

func TestEvaluate_NilRowIsNoData(t *testing.T) {
	assert.Equal(t, model.KindNoData, eval(t, "net-worth", nil).Kind)
}

func TestEvaluate_NetWorth(t *testing.T) {
	row := Row{
		"ho_total": 1000.0,
		"re_total": 250000.0,
		"bz_total": nil,
		"ia_total": 5000.0,
		"pp_total": 0.0,
		"li_owed":  200000.0,
	}
	out := eval(t, "net-worth", row)
	require.True(t, out.IsOK())
	assert.Equal(t, 56000.0, out.Value)
}

func TestEvaluate_CurrencyWithoutFactsIsZero(t *testing.T) {
	out := eval(t, "total-income", Row{"inc_total": nil})
	require.True(t, out.IsOK())
	assert.Equal(t, 0.0, out.Value)
}

func TestEvaluate_Debt(t *testing.T) {
	out := eval(t, "debt", Row{"li_net": -1500.5})
	require.True(t, out.IsOK())
	assert.Equal(t, 1500.5, out.Value)
}

func TestEvaluate_CurrentYearDebt(t *testing.T) {
	tests := []struct {
		name  string
		loans any
		want  float64
	}{
		{"no loans", "[]", 0},
		{"null column", nil, 0},
		{"flat fallback", `[{"principal": 12000, "rate": null, "term_years": null}]`, 1000},
		{"amortized", `[{"principal": 120000, "rate": 0.06, "term_years": 30}]`, 8633.53},
		{"bytes", []byte(`[{"principal": 24000}]`), 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := eval(t, "current-year-debt", Row{"li_loans": tt.loans})
			require.True(t, out.IsOK(), out.String())
			assert.Equal(t, tt.want, out.Value)
		})
	}
}

func TestEvaluate_CurrentYearDebt_BadJSON(t *testing.T) {
	out := eval(t, "current-year-debt", Row{"li_loans": "{not json"})
	assert.Equal(t, model.KindError, out.Kind)
	assert.Equal(t, model.ErrCoercion, out.ErrorKind)
}

func TestEvaluate_CoercionFailure(t *testing.T) {
	out := eval(t, "cash", Row{"ho_cash": "abc", "ia_cash": 10.0})
	assert.Equal(t, model.KindError, out.Kind)
	assert.Equal(t, model.ErrCoercion, out.ErrorKind)
}

func TestEvaluate_TaxesAndMargin(t *testing.T) {
	row := Row{
		"inc_total": 100000.0,
		"ex_giving": 5000.0,
		"sv_active": 10000.0,
		"li_loans":  `[{"principal": 12000}]`,
		"ex_living": 40000.0,
	}

	taxes := eval(t, "current-year-taxes", row)
	require.True(t, taxes.IsOK())
	assert.Equal(t, 15000.0, taxes.Value)

	total := eval(t, "total-expenses", row)
	require.True(t, total.IsOK())
	assert.Equal(t, 71000.0, total.Value)

	margin := eval(t, "margin", row)
	require.True(t, margin.IsOK())
	assert.Equal(t, 29000.0, margin.Value)
}

func TestEvaluate_AtRisk(t *testing.T) {
	out := eval(t, "at-risk", Row{"ia_taxable_investment": 500000.0, "pc_umbrella": 1000000.0})
	require.True(t, out.IsOK())
	assert.Equal(t, -500000.0, out.Value)
}

func TestEvaluate_RetirementRatio(t *testing.T) {
	base := func(age any) Row {
		return Row{
			"cl_present":     true,
			"cl_age":         age,
			"inc_retirement": 10000.0,
			"sv_retirement":  0.0,
			"rx_annual":      20000.0,
			"li_owed":        0.0,
			"ia_total":       100000.0,
			"re_total":       nil,
			"pp_total":       nil,
		}
	}

	out := eval(t, "retirement-ratio", base(55.0))
	require.True(t, out.IsOK(), out.String())
	assert.Equal(t, 1.12, out.Value)

	assert.Equal(t, model.KindNoData, eval(t, "retirement-ratio", base(65.0)).Kind, "at retirement age")
	assert.Equal(t, model.KindNoData, eval(t, "retirement-ratio", base(70.0)).Kind, "past retirement age")
	assert.Equal(t, model.KindNoData, eval(t, "retirement-ratio", base(nil)).Kind, "unknown age")

	missing := base(55.0)
	missing["cl_present"] = nil
	assert.Equal(t, model.KindNoData, eval(t, "retirement-ratio", missing).Kind, "unknown client")
}

func TestEvaluate_HorizonRatios(t *testing.T) {
	pvAt := func(cashflow, years float64) float64 {
		return actuarial.PresentValue(cashflow, years, actuarial.DiscountRate)
	}

	tests := []struct {
		key     string
		row     Row
		derived float64
		want    float64
	}{
		{
			key: "survivor-ratio",
			row: Row{
				"cl_present":        true,
				"lf_death_benefits": 500000.0,
				"inc_survivor":      20000.0,
				"ia_total":          100000.0,
				"re_total":          200000.0,
				"pp_total":          nil,
				"ex_survivor":       60000.0,
				"li_owed":           50000.0,
			},
			derived: (500000 + pvAt(20000, 20) + 300000) / (pvAt(60000, 20) + 50000),
			want:    1.24,
		},
		{
			key: "education-ratio",
			row: Row{
				"cl_present":   true,
				"sv_education": 5000.0,
				"ia_education": 30000.0,
				"ex_education": 15000.0,
			},
			derived: (pvAt(5000, 10) + 30000) / pvAt(15000, 10),
			want:    0.58,
		},
		{
			key: "new-cars-ratio",
			row: Row{
				"cl_present":          true,
				"ia_taxable_accounts": 40000.0,
				"sv_taxable":          6000.0,
				"ex_cars":             12000.0,
			},
			derived: (40000 + pvAt(6000, 5)) / pvAt(12000, 5),
			want:    1.25,
		},
		{
			key: "ltc-ratio",
			row: Row{
				"cl_present":      true,
				"inc_all_annual":  80000.0,
				"ia_total":        250000.0,
				"re_total":        0.0,
				"pp_total":        10000.0,
				"ex_non_ltc":      70000.0,
				"di_ltc_premiums": 5000.0,
			},
			derived: (pvAt(80000, 20) + 260000) / (pvAt(70000, 20) + pvAt(5000, 20)),
			want:    1.32,
		},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			out := eval(t, tt.key, tt.row)
			require.True(t, out.IsOK(), out.String())
			assert.Equal(t, actuarial.Round2(tt.derived), out.Value)
			assert.Equal(t, tt.want, out.Value)

			missing := Row{}
			for k, v := range tt.row {
				missing[k] = v
			}
			missing["cl_present"] = nil
			assert.Equal(t, model.KindNoData, eval(t, tt.key, missing).Kind, "unknown client")
		})
	}
}

func TestAnnuityFactor_Horizons(t *testing.T) {
	assert.InDelta(t, 13.5903, actuarial.AnnuityFactor(actuarial.SurvivorHorizon, actuarial.DiscountRate), 1e-4)
	assert.InDelta(t, 13.5903, actuarial.AnnuityFactor(actuarial.LTCHorizon, actuarial.DiscountRate), 1e-4)
	assert.InDelta(t, 8.1109, actuarial.AnnuityFactor(actuarial.EducationHorizon, actuarial.DiscountRate), 1e-4)
	assert.InDelta(t, 4.4518, actuarial.AnnuityFactor(actuarial.NewCarsHorizon, actuarial.DiscountRate), 1e-4)
}

func TestEvaluate_RatiosZeroDenominator(t *testing.T) {
	present := Row{"cl_present": true, "cl_age": 40.0}
	for _, m := range All() {
		if !m.Category.IsRatio() {
			continue
		}
		t.Run(m.Key, func(t *testing.T) {
			out := m.Evaluate(present)
			assert.Equal(t, model.KindNoData, out.Kind, out.String())
		})
	}
}

func TestEvaluate_WisdomRatios(t *testing.T) {
	tests := []struct {
		key  string
		row  Row
		want float64
	}{
		{"savings-ratio", Row{"sv_active": 15000.0, "inc_total": 100000.0}, 0.15},
		{"giving-ratio", Row{"ex_giving": 3333.0, "inc_total": 100000.0}, 0.03},
		{"reserves-ratio", Row{"ho_cash": 20000.0, "ia_cash": 20000.0, "ex_living": 40000.0}, 0.5},
		{"debt-ratio", Row{"re_residence": 500000.0, "rm_mortgage": 200000.0}, 0.6},
		{"diversification-ratio", Row{"ho_largest": 25000.0, "ho_total": 80000.0, "ia_total": 20000.0}, 0.75},
		{"ltd-ratio", Row{"cl_present": true, "di_ltd": 60000.0, "inc_earned_active": 120000.0}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			out := eval(t, tt.key, tt.row)
			require.True(t, out.IsOK(), out.String())
			assert.Equal(t, tt.want, out.Value)
		})
	}
}

func TestEvaluate_DiversificationWithoutHoldings(t *testing.T) {
	out := eval(t, "diversification-ratio", Row{"ho_largest": nil, "ho_total": nil, "ia_total": 5000.0})
	assert.Equal(t, model.KindNoData, out.Kind)
}
