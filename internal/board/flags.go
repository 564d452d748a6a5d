package board

import "strings"

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Indicator is the single attention badge shown on a card.
type Indicator struct {
	Severity string `json:"severity"`
	Label    string `json:"label"`
}

// FlagIndicator maps a package's flags list to at most one indicator:
// "overdue" wins over "stuck", which wins over everything else. Any other
// non-empty flags list becomes a low-severity badge carrying the raw names.
func FlagIndicator(flags []string) *Indicator {
	if len(flags) == 0 {
		return nil
	}
	var hasStuck bool
	for _, f := range flags {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "overdue":
			return &Indicator{Severity: SeverityHigh, Label: "Overdue"}
		case "stuck":
			hasStuck = true
		}
	}
	if hasStuck {
		return &Indicator{Severity: SeverityMedium, Label: "Stuck"}
	}
	return &Indicator{Severity: SeverityLow, Label: strings.Join(flags, ", ")}
}
