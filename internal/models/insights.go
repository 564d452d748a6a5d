package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexFloat tolerates both numeric and string-encoded numbers; older
// insights snapshots serialized rates as strings.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}

// InsightsSummary is the SmartMatch card payload, computed entirely
// server-side and merely rendered here.
type InsightsSummary struct {
	SnapshotDate     *string   `json:"snapshot_date"`
	FulfillmentRate  FlexFloat `json:"fulfillmentRate"`
	MonthlyOrders    *float64  `json:"monthlyOrders"`
	EstimatedSavings *float64  `json:"estimatedSavings"`
	SavingsPerOrder  *float64  `json:"savingsPerOrder"`
	CostPerMovement  *float64  `json:"costPerMovement"`
	ImprovementRate  *float64  `json:"improvementRate"`
}

type RegionMaps struct {
	RegionLabels []string           `json:"regionLabels"`
	OrderMap     map[string]float64 `json:"orderMap"`
	InventoryMap map[string]float64 `json:"inventoryMap"`
}

type Insights struct {
	Summary InsightsSummary `json:"summary"`
	Regions RegionMaps      `json:"regions"`
}
