package compare

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/wisdom-metrics/internal/model"
)

// Missing is rendered for a metric without a value.
const Missing = "-"

// FormatValue renders v for a metric of category c. Ratios use k/m suffixes
// or two decimals. Currency uses k/m/b suffixes with a leading minus sign
// before the dollar symbol.
func FormatValue(c model.Category, v *float64) string {
	if v == nil {
		return Missing
	}
	if c.IsRatio() {
		return formatRatio(*v)
	}
	return formatCurrency(*v)
}

func formatRatio(v float64) string {
	switch {
	case v >= 1e6:
		return fmt.Sprintf("%.1fm", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fk", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func formatCurrency(v float64) string {
	abs := math.Abs(v)
	sign := ""
	if v < 0 {
		sign = "-"
	}
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%s$%.1fb", sign, abs/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%s$%.1fm", sign, abs/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%s$%.1fk", sign, abs/1e3)
	default:
		return fmt.Sprintf("%s$%.0f", sign, abs)
	}
}

var printer = message.NewPrinter(language.English)

// FormatFull renders v with digit grouping, for detail views where suffixes
// lose precision.
func FormatFull(c model.Category, v *float64) string {
	if v == nil {
		return Missing
	}
	if c.IsRatio() {
		return printer.Sprintf("%.2f", *v)
	}
	if *v < 0 {
		return printer.Sprintf("-$%.2f", -*v)
	}
	return printer.Sprintf("$%.2f", *v)
}

var titler = cases.Title(language.English)

// GroupTitle renders a batch group key such as "assets_and_liabilities" as
// "Assets And Liabilities".
func GroupTitle(group string) string {
	return titler.String(strings.ReplaceAll(group, "_", " "))
}

// FormattedGroup is one group of a batch result rendered for display.
type FormattedGroup struct {
	Key     string
	Title   string
	Metrics []FormattedMetric
}

// FormattedMetric is one rendered metric value.
type FormattedMetric struct {
	Key       string
	Title     string
	Value     *float64
	Formatted string
	Full      string
}

// FormatGrouped renders a batch result in category order. meta resolves a
// metric key to its metadata; metrics it does not know are skipped.
func FormatGrouped(g model.Grouped, keys []string, meta func(string) (model.MetricMetadata, bool)) []FormattedGroup {
	byGroup := make(map[string]*FormattedGroup, len(model.Categories))
	var out []FormattedGroup
	order := make([]string, 0, len(model.Categories))
	for _, c := range model.Categories {
		byGroup[c.Group()] = &FormattedGroup{Key: c.Group(), Title: GroupTitle(c.Group())}
		order = append(order, c.Group())
	}

	for _, key := range keys {
		md, ok := meta(key)
		if !ok {
			continue
		}
		v, ok := g.Get(md.Category, key)
		if !ok {
			continue
		}
		grp := byGroup[md.Category.Group()]
		grp.Metrics = append(grp.Metrics, FormattedMetric{
			Key:       key,
			Title:     md.Title,
			Value:     v,
			Formatted: FormatValue(md.Category, v),
			Full:      FormatFull(md.Category, v),
		})
	}

	for _, k := range order {
		if grp := byGroup[k]; len(grp.Metrics) > 0 {
			out = append(out, *grp)
		}
	}
	return out
}
