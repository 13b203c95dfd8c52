// Package compare relates metric values to their targets and renders values
// for display.
package compare

import (
	"fmt"
	"math"

	"github.com/sells-group/wisdom-metrics/internal/model"
)

// NoTargetText is the display text when a comparison has no target.
const NoTargetText = "No target"

// Compare relates actual to target. The percentage is the signed deviation
// (actual/target - 1) * 100; the display text carries its magnitude only.
// A missing operand or a zero target yields no_target.
func Compare(actual, target *float64) model.Comparison {
	if actual == nil || target == nil || *target == 0 {
		return model.Comparison{Status: model.StatusNoTarget, DisplayText: NoTargetText}
	}

	a, t := *actual, *target
	pct := (a/t - 1) * 100

	switch {
	case a > t:
		return model.Comparison{Status: model.StatusAbove, Percentage: pct, DisplayText: display(pct)}
	case a < t:
		return model.Comparison{Status: model.StatusBelow, Percentage: pct, DisplayText: display(pct)}
	default:
		return model.Comparison{Status: model.StatusEqual}
	}
}

func display(pct float64) string {
	return fmt.Sprintf(" %.1f%%", math.Abs(pct))
}
