package timesheet

import "strings"

type DependencyReason string

const (
	DependencyBilled         DependencyReason = "timesheet has been billed"
	DependencyFrozen         DependencyReason = "timesheet is frozen pending billing"
	DependencyPendingBilling DependencyReason = "timesheet is approved and waiting to be billed"
)

// BlockingDependencies lists what prevents the timesheet from being deleted. An empty result means
// deletion is allowed.
func BlockingDependencies(ts Timesheet) []DependencyReason {
	var reasons []DependencyReason
	if ts.IsBilled || ts.Status == StatusBilled {
		reasons = append(reasons, DependencyBilled)
	}
	if ts.IsFrozen {
		reasons = append(reasons, DependencyFrozen)
	} else if ts.Status == StatusFrozen {
		reasons = append(reasons, DependencyPendingBilling)
	}
	return reasons
}

func joinReasons(reasons []DependencyReason) string {
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, "; ")
}
