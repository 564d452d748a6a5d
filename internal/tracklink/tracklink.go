package tracklink

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/uppership/opsboard/internal/models"
)

// Fallbacks are the single-value package fields used when the
// tracking_numbers payload yields nothing.
type Fallbacks struct {
	Carrier        string
	TrackingNumber string
	TrackingURL    string
}

type entry struct {
	URL     string `json:"url"`
	Number  string `json:"number"`
	Company string `json:"company"`
}

// Extract maps the heterogeneous tracking_numbers payload (array of
// entries, JSON-encoded string of the same, or null) into an ordered,
// URL-deduplicated list of display links. Tiers never mix: whichever step
// first produces links wins. Malformed input degrades to an empty list.
func Extract(raw json.RawMessage, fb Fallbacks) []models.TrackingLink {
	out := make([]models.TrackingLink, 0, 2)
	seen := make(map[string]struct{}, 2)

	for _, e := range decodeEntries(raw) {
		u := strings.TrimSpace(e.URL)
		if !strings.HasPrefix(u, "http") {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, models.TrackingLink{URL: u, Number: e.Number, Company: e.Company})
	}
	if len(out) > 0 {
		return out
	}

	// Одиночный tracking_url.
	if u := strings.TrimSpace(fb.TrackingURL); strings.HasPrefix(u, "http") {
		return []models.TrackingLink{{URL: u, Number: fb.TrackingNumber, Company: fb.Carrier}}
	}

	// Последний шанс: собираем URL из carrier + tracking_number.
	if fb.Carrier != "" && fb.TrackingNumber != "" {
		if built := BuildCarrierURL(fb.Carrier, fb.TrackingNumber); built != "" {
			return []models.TrackingLink{{URL: built, Number: fb.TrackingNumber, Company: fb.Carrier}}
		}
	}

	return out
}

func decodeEntries(raw json.RawMessage) []entry {
	if len(raw) == 0 {
		return nil
	}
	var arr []entry
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}
	// Исторический формат: массив, закодированный строкой.
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return nil
	}
	return arr
}

// BuildCarrierURL synthesizes a carrier tracking URL from a known carrier
// name (substring, case-insensitive) and a tracking number. Unrecognized
// carriers yield "".
func BuildCarrierURL(company, number string) string {
	n := strings.TrimSpace(number)
	if n == "" {
		return ""
	}
	enc := url.QueryEscape(n)
	c := strings.ToLower(company)
	switch {
	case strings.Contains(c, "usps"):
		return "https://tools.usps.com/go/TrackConfirmAction?tLabels=" + enc
	case strings.Contains(c, "ups"):
		return "https://www.ups.com/track?loc=en_US&tracknum=" + enc
	case strings.Contains(c, "fedex"):
		return "https://www.fedex.com/fedextrack/?trknbr=" + enc
	case strings.Contains(c, "dhl e"), strings.Contains(c, "dhl ecom"):
		return "https://www.dhl.com/global-en/home/tracking.html?tracking-id=" + enc
	case strings.Contains(c, "dhl"):
		return "https://www.dhl.com/us-en/home/tracking/tracking-express.html?submit=1&tracking-id=" + enc
	case strings.Contains(c, "lasership"):
		return "https://www.lasership.com/track/" + enc
	case strings.Contains(c, "ontrac"):
		return "https://www.ontrac.com/tracking?number=" + enc
	default:
		return ""
	}
}
