package board

const (
	ScoreSuccess  = "success"
	ScoreWarning  = "warning"
	ScoreCritical = "critical"
)

// ScoreStatus classifies a backend-computed SmartMatch fulfillment rate
// (percent, 0..100) into the badge shown on the score card.
func ScoreStatus(rate float64) (status, message string) {
	switch {
	case rate > 84:
		return ScoreSuccess, "Great job! Your fulfillment is running efficiently."
	case rate > 50:
		return ScoreWarning, "Some regions need better alignment. Consider rebalancing."
	default:
		return ScoreCritical, "Most shipments are sub-optimal. Rebalancing strongly recommended."
	}
}
