package tracklink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract_ArrayDedup(t *testing.T) {
	raw := json.RawMessage(`[
		{"url":"https://a.example/1","number":"N1","company":"UPS"},
		{"url":"https://a.example/1","number":"dup"},
		{"url":"https://a.example/2"},
		{"url":"ftp://bad.example"},
		{"url":""}
	]`)

	links := Extract(raw, Fallbacks{})
	require.Len(t, links, 2)
	require.Equal(t, "https://a.example/1", links[0].URL)
	require.Equal(t, "N1", links[0].Number)
	require.Equal(t, "UPS", links[0].Company)
	require.Equal(t, "https://a.example/2", links[1].URL)
}

func TestExtract_JSONStringPayload(t *testing.T) {
	raw := json.RawMessage(`"[{\"url\":\"https://a.example/1\"}]"`)
	links := Extract(raw, Fallbacks{})
	require.Len(t, links, 1)
	require.Equal(t, "https://a.example/1", links[0].URL)
}

func TestExtract_MalformedNeverPanics(t *testing.T) {
	for _, raw := range []string{
		``, `null`, `"not json at all"`, `"{\"url\":1}"`, `{"url":"https://x"}`, `123`, `[`,
	} {
		links := Extract(json.RawMessage(raw), Fallbacks{})
		require.Empty(t, links, "payload %q", raw)
	}
}

func TestExtract_TrackingURLFallback(t *testing.T) {
	links := Extract(nil, Fallbacks{
		Carrier:        "USPS",
		TrackingNumber: "123",
		TrackingURL:    "https://t.example/track",
	})
	require.Len(t, links, 1)
	require.Equal(t, "https://t.example/track", links[0].URL)
	require.Equal(t, "123", links[0].Number)
	require.Equal(t, "USPS", links[0].Company)
}

func TestExtract_TiersNeverMerge(t *testing.T) {
	// Массив дал ссылку — фоллбеки не подмешиваются.
	raw := json.RawMessage(`[{"url":"https://a.example/1"}]`)
	links := Extract(raw, Fallbacks{TrackingURL: "https://other.example"})
	require.Len(t, links, 1)
	require.Equal(t, "https://a.example/1", links[0].URL)
}

func TestBuildCarrierURL(t *testing.T) {
	u := BuildCarrierURL("USPS", "9400100000000000000000")
	require.Equal(t, "https://tools.usps.com/go/TrackConfirmAction?tLabels=9400100000000000000000", u)

	require.Contains(t, BuildCarrierURL("UPS Ground", "1Z999"), "ups.com")
	require.Contains(t, BuildCarrierURL("FedEx", "77"), "fedextrack")
	require.Contains(t, BuildCarrierURL("DHL eCommerce", "42"), "global-en")
	require.Contains(t, BuildCarrierURL("DHL", "42"), "tracking-express")
	require.Contains(t, BuildCarrierURL("LaserShip", "LS1"), "lasership.com")
	require.Contains(t, BuildCarrierURL("OnTrac", "C1"), "ontrac.com")

	require.Empty(t, BuildCarrierURL("Unknown Carrier", "42"))
	require.Empty(t, BuildCarrierURL("USPS", "   "))
}

func TestExtract_CarrierSynthesis(t *testing.T) {
	links := Extract(json.RawMessage(`[]`), Fallbacks{Carrier: "usps first class", TrackingNumber: "94001"})
	require.Len(t, links, 1)
	require.Contains(t, links[0].URL, "tools.usps.com")

	links = Extract(nil, Fallbacks{Carrier: "Some Courier", TrackingNumber: "94001"})
	require.Empty(t, links)
}
