// Package guards - Runtime invariant checks for partition results.
// A violation here means the partitioner is broken, not that the input is bad.
package guards

import (
	"fmt"
	"strings"

	"cu-planner/core/types"
	"cu-planner/internal/errors"
)

// Violation describes one broken invariant
type Violation struct {
	// Invariant names the rule that was broken
	Invariant string `json:"invariant"`

	// Window is the offending window, -1 for whole-result rules
	Window int `json:"window"`

	// Detail explains the violation
	Detail string `json:"detail"`
}

// String returns the violation as a single line
func (v Violation) String() string {
	if v.Window < 0 {
		return fmt.Sprintf("%s: %s", v.Invariant, v.Detail)
	}
	return fmt.Sprintf("%s (window %d): %s", v.Invariant, v.Window, v.Detail)
}

// CheckPartition recomputes window costs from costs and result.WindowSizes and
// reports every invariant the result breaks.
func CheckPartition(costs []int64, cfg types.Configuration, result *types.PartitionResult) []Violation {
	var violations []Violation
	if result == nil {
		return []Violation{{Invariant: "result", Window: -1, Detail: "result is nil"}}
	}

	total := 0
	for _, size := range result.WindowSizes {
		if size < 0 {
			violations = append(violations, Violation{Invariant: "coverage", Window: -1, Detail: "negative window size"})
			return violations
		}
		total += size
	}
	if total != len(costs) {
		violations = append(violations, Violation{
			Invariant: "coverage",
			Window:    -1,
			Detail:    fmt.Sprintf("windows hold %d steps, sequence has %d", total, len(costs)),
		})
		return violations
	}
	if result.WindowCount != len(result.WindowSizes) {
		violations = append(violations, Violation{
			Invariant: "window_count",
			Window:    -1,
			Detail:    fmt.Sprintf("window count %d, %d sizes", result.WindowCount, len(result.WindowSizes)),
		})
	}

	oversized := make(map[int]bool, len(result.OversizedSteps))
	for _, idx := range result.OversizedSteps {
		oversized[idx] = true
	}

	effective := cfg.EffectiveCapacity()
	start := 0
	for w, size := range result.WindowSizes {
		var cost int64
		if w == 0 || cfg.Policy() == types.OffsetEveryWindow {
			cost = cfg.StartOffset
		}
		flagged := false
		for i := start; i < start+size; i++ {
			cost = types.SaturatingAdd(cost, costs[i])
			if oversized[i] {
				flagged = true
			}
		}
		if cost > effective && !flagged {
			violations = append(violations, Violation{
				Invariant: "capacity",
				Window:    w,
				Detail:    fmt.Sprintf("cost %d exceeds effective capacity %d", cost, effective),
			})
		}
		if flagged && size != 1 {
			violations = append(violations, Violation{
				Invariant: "oversized_isolation",
				Window:    w,
				Detail:    fmt.Sprintf("oversized step shares a window of %d steps", size),
			})
		}
		start += size
	}

	if last := len(result.WindowSizes) - 1; last > 0 && result.WindowSizes[last] == 0 {
		violations = append(violations, Violation{
			Invariant: "trailing_window",
			Window:    last,
			Detail:    "trailing empty window after the last step",
		})
	}

	return violations
}

// Enforce returns an internal error listing every violation, or nil
func Enforce(costs []int64, cfg types.Configuration, result *types.PartitionResult) error {
	violations := CheckPartition(costs, cfg, result)
	if len(violations) == 0 {
		return nil
	}

	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = v.String()
	}
	return errors.Newf(errors.TypeInternal, "INVARIANT VIOLATED: %s", strings.Join(lines, "; ")).
		WithContext("violations", violations)
}
