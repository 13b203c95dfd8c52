package model

// Category groups related metrics for display and batch output.
type Category string

const (
	CategoryAssets      Category = "assets"
	CategoryIncome      Category = "income"
	CategoryExpenses    Category = "expenses"
	CategoryInsurance   Category = "insurance"
	CategoryPlanning    Category = "planning"
	CategoryWisdomIndex Category = "wisdom-index"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryAssets,
	CategoryIncome,
	CategoryExpenses,
	CategoryInsurance,
	CategoryPlanning,
	CategoryWisdomIndex,
}

// Group returns the key the category is nested under in batch results.
func (c Category) Group() string {
	switch c {
	case CategoryAssets:
		return "assets_and_liabilities"
	case CategoryIncome:
		return "income_analysis"
	case CategoryExpenses:
		return "expense_tracking"
	case CategoryInsurance:
		return "insurance_coverage"
	case CategoryPlanning:
		return "future_planning_ratios"
	case CategoryWisdomIndex:
		return "wisdom_index_ratios"
	default:
		return string(c)
	}
}

// IsRatio reports whether metrics in the category are dimensionless ratios
// rather than dollar amounts.
func (c Category) IsRatio() bool {
	return c == CategoryPlanning || c == CategoryWisdomIndex
}

// MetricMetadata is the static description of a metric.
type MetricMetadata struct {
	Key         string   `json:"key" yaml:"key"`
	Title       string   `json:"title" yaml:"title"`
	Category    Category `json:"category" yaml:"category"`
	Formula     string   `json:"formula" yaml:"formula"`
	Description string   `json:"description" yaml:"description"`
	Tables      []string `json:"tables" yaml:"tables"`
}

// Grouped holds metric values nested by category group and metric key.
// A nil value means the metric has no data, which is distinct from zero.
type Grouped map[string]map[string]*float64

// Set stores v under the group of category c.
func (g Grouped) Set(c Category, key string, v *float64) {
	group := c.Group()
	if g[group] == nil {
		g[group] = make(map[string]*float64)
	}
	g[group][key] = v
}

// Get returns the value stored for key in the group of category c.
func (g Grouped) Get(c Category, key string) (*float64, bool) {
	m, ok := g[c.Group()]
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// Flatten returns every metric keyed by metric key alone.
func (g Grouped) Flatten() map[string]*float64 {
	out := make(map[string]*float64)
	for _, m := range g {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// ClientSummary carries the key metrics of one client for roster views.
type ClientSummary struct {
	ClientID int64               `json:"client_id" yaml:"client_id"`
	Name     string              `json:"name" yaml:"name"`
	Metrics  map[string]*float64 `json:"metrics" yaml:"metrics"`
}

// Client is an entry of the client roster.
type Client struct {
	ID   int64  `json:"client_id" yaml:"client_id"`
	Name string `json:"name" yaml:"name"`
}

// ChartPoint is one bar or tile of a chart.
type ChartPoint struct {
	Category string   `json:"category" yaml:"category"`
	Amount   *float64 `json:"amount" yaml:"amount"`
}

// Record is one normalized row of a tabular query, keyed by column name.
type Record map[string]any

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
