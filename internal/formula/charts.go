package formula

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wisdom-metrics/internal/binder"
	"github.com/sells-group/wisdom-metrics/internal/model"
	"github.com/sells-group/wisdom-metrics/internal/numeric"
)

// ErrUnknownChart is returned for a chart key outside the catalog.
var ErrUnknownChart = eris.New("formula: unknown chart")

// Chart keys.
const (
	ChartIncome      = "income"
	ChartTreemap     = "treemap"
	ChartExpense     = "expense"
	ChartWisdomIndex = "wisdom-index"
)

// Chart describes one chart. SQL charts carry a statement returning
// (category, amount) rows; derived charts project metrics from a batch
// result.
type Chart struct {
	Key    string
	Title  string
	Stmt   *binder.Statement
	Labels []string
	// Series maps a label to the metric that feeds it, for derived charts.
	Series map[string]string
}

// Derived reports whether the chart is computed from batch metrics.
func (c *Chart) Derived() bool {
	return c.Stmt == nil
}

var incomeChartStmt = binder.MustCompile("chart:income", `SELECT c.category,
	COALESCE(SUM(i.current_year_amount), 0) AS amount
FROM (VALUES
	('Earned Income', 'Salary'),
	('Social Security', 'SocialSecurity'),
	('Pension', 'Pension'),
	('Real Estate', 'Real Estate'),
	('Business', 'Business')
) AS c(category, income_type)
LEFT JOIN core.incomes i ON i.income_type = c.income_type AND i.client_id = ?
GROUP BY c.category
ORDER BY c.category`, 1)

var treemapChartStmt = func() binder.Statement {
	frags := []*fragment{holdingsFrag, realEstateFrag, investmentsFrag}
	sql := fmt.Sprintf(`%s
SELECT v.category, v.amount
%s
CROSS JOIN LATERAL (VALUES
	('Equity', COALESCE(ho.equity, 0) + COALESCE(ia.equity, 0)),
	('Cash', COALESCE(ho.cash, 0) + COALESCE(ia.cash, 0)),
	('Real Estate', COALESCE(re.total, 0)),
	('Fixed Income', COALESCE(ho.fixed_income, 0))
) AS v(category, amount)
ORDER BY v.category`, withClause(ScopeClient, frags), joins(frags))
	return binder.MustCompile("chart:treemap", sql, 1+len(frags))
}()

var charts = map[string]*Chart{
	ChartIncome: {
		Key:    ChartIncome,
		Title:  "Income Breakdown",
		Stmt:   &incomeChartStmt,
		Labels: []string{"Business", "Earned Income", "Pension", "Real Estate", "Social Security"},
	},
	ChartTreemap: {
		Key:    ChartTreemap,
		Title:  "Asset Allocation",
		Stmt:   &treemapChartStmt,
		Labels: []string{"Cash", "Equity", "Fixed Income", "Real Estate"},
	},
	ChartExpense: {
		Key:    ChartExpense,
		Title:  "Expense Breakdown",
		Labels: []string{"Giving", "Savings", "Debt", "Taxes", "Living"},
		Series: map[string]string{
			"Giving":  "current-year-giving",
			"Savings": "current-year-savings",
			"Debt":    "current-year-debt",
			"Taxes":   "current-year-taxes",
			"Living":  "current-year-living-expenses",
		},
	},
	ChartWisdomIndex: {
		Key:   ChartWisdomIndex,
		Title: "Wisdom Index",
		Labels: []string{
			"Debt Ratio",
			"Diversification Ratio",
			"Giving Ratio",
			"LTC Ratio",
			"LTD Ratio",
			"Reserves Ratio",
			"Retirement Ratio",
			"Savings Ratio",
			"Survivor Ratio",
		},
		Series: map[string]string{
			"Debt Ratio":            "debt-ratio",
			"Diversification Ratio": "diversification-ratio",
			"Giving Ratio":          "giving-ratio",
			"LTC Ratio":             "ltc-ratio",
			"LTD Ratio":             "ltd-ratio",
			"Reserves Ratio":        "reserves-ratio",
			"Retirement Ratio":      "retirement-ratio",
			"Savings Ratio":         "savings-ratio",
			"Survivor Ratio":        "survivor-ratio",
		},
	},
}

// LookupChart returns the chart registered under key.
func LookupChart(key string) (*Chart, error) {
	c, ok := charts[key]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownChart, "%q", key)
	}
	return c, nil
}

// ChartKeys returns every chart key, sorted.
func ChartKeys() []string {
	keys := make([]string, 0, len(charts))
	for k := range charts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Project builds a derived chart from flattened metric values.
func (c *Chart) Project(values map[string]*float64) []model.ChartPoint {
	points := make([]model.ChartPoint, 0, len(c.Labels))
	for _, label := range c.Labels {
		points = append(points, model.ChartPoint{Category: label, Amount: values[c.Series[label]]})
	}
	return points
}

// Points converts tabular rows with category and amount columns into chart
// points. Rows without a category are skipped.
func Points(records []model.Record) []model.ChartPoint {
	points := make([]model.ChartPoint, 0, len(records))
	for _, rec := range records {
		label, _ := rec["category"].(string)
		if label == "" {
			continue
		}
		var amount *float64
		if v, ok, err := numeric.Float(rec["amount"]); err == nil && ok {
			amount = model.Float(v)
		}
		points = append(points, model.ChartPoint{Category: label, Amount: amount})
	}
	return points
}
