package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/uppership/opsboard/internal/integrations/uppership"
	"github.com/uppership/opsboard/internal/models"
)

// Client talks to the public Uppership backend over HTTP, injecting the
// server-side API key on every request.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://go.uppership.com/public"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal body")
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

// Эндпоинт отдаёт то {"packages":[...]}, то голый массив, зависит от
// ревизии бэкенда.
func decodePackages(r io.Reader) ([]*models.Package, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	var wrapped struct {
		Packages []*models.Package `json:"packages"`
	}
	if err := json.Unmarshal(b, &wrapped); err == nil && wrapped.Packages != nil {
		return wrapped.Packages, nil
	}
	var bare []*models.Package
	if err := json.Unmarshal(b, &bare); err != nil {
		return nil, errors.Wrap(err, "decode packages")
	}
	return bare, nil
}

func (c *Client) ListPackages(ctx context.Context, shop, status string, limit int) ([]*models.Package, error) {
	q := url.Values{}
	if shop != "" {
		q.Set("shop", shop)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}

	resp, err := c.do(ctx, http.MethodGet, "/packages", q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("packages http %d", resp.StatusCode)
	}
	return decodePackages(resp.Body)
}

func (c *Client) GetOrder(ctx context.Context, orderID, shop string) (*models.OrderDetails, error) {
	q := url.Values{}
	if shop != "" {
		q.Set("shop", shop)
	}
	resp, err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("order http %d", resp.StatusCode)
	}
	var out models.OrderDetails
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return &out, nil
}

func (c *Client) IgnoreOrder(ctx context.Context, orderID, shop string) error {
	q := url.Values{}
	if shop != "" {
		q.Set("shop", shop)
	}
	resp, err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/ignore", q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ignore http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) ResolvePackageOrder(ctx context.Context, packageID, shop string) (models.OrderRef, error) {
	q := url.Values{}
	if shop != "" {
		q.Set("shop", shop)
	}
	resp, err := c.do(ctx, http.MethodGet, "/packages/"+url.PathEscape(packageID)+"/order", q, nil)
	if err != nil {
		return models.OrderRef{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return models.OrderRef{}, fmt.Errorf("resolve http %d", resp.StatusCode)
	}
	var ref models.OrderRef
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return models.OrderRef{}, errors.Wrap(err, "decode order ref")
	}
	return ref, nil
}

func (c *Client) Chat(ctx context.Context, shop, question string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/chat/"+url.PathEscape(shop), nil, map[string]string{
		"question": question,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Answer string `json:"answer"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode chat answer")
	}
	// Текст ошибки от бэкенда показываем как ответ — так делал и дашборд.
	if out.Answer != "" {
		return out.Answer, nil
	}
	if out.Error != "" {
		return out.Error, nil
	}
	return "No response.", nil
}

func (c *Client) SyncNow(ctx context.Context, shop string, opts uppership.SyncOptions) (string, error) {
	q := url.Values{}
	q.Set("shop", shop)
	q.Set("force", boolFlag(opts.Force))
	q.Set("orders", boolFlag(opts.Orders))
	q.Set("tracking", boolFlag(opts.Tracking))

	resp, err := c.do(ctx, http.MethodPost, "/sync/now", q, struct{}{})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read body")
	}
	text := strings.TrimSpace(string(b))

	if resp.StatusCode == http.StatusTooManyRequests {
		ce := &uppership.CooldownError{Message: text}
		// Некоторые ревизии шлют JSON с остатком окна.
		var body struct {
			MsLeft int64 `json:"msLeft"`
		}
		if json.Unmarshal(b, &body) == nil {
			ce.MsLeft = body.MsLeft
		}
		return "", ce
	}
	if resp.StatusCode/100 != 2 {
		if text == "" {
			text = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return "", errors.New(text)
	}
	return text, nil
}

func (c *Client) SyncStatus(ctx context.Context, shop string) (models.SyncStatus, error) {
	q := url.Values{}
	q.Set("shop", shop)
	resp, err := c.do(ctx, http.MethodGet, "/sync/status", q, nil)
	if err != nil {
		return models.SyncStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return models.SyncStatus{}, fmt.Errorf("sync status http %d", resp.StatusCode)
	}
	var st models.SyncStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return models.SyncStatus{}, errors.Wrap(err, "decode sync status")
	}
	if st.MsLeft < 0 {
		st.MsLeft = 0
	}
	return st, nil
}

func (c *Client) Insights(ctx context.Context, shop string) (*models.Insights, error) {
	resp, err := c.do(ctx, http.MethodGet, "/insights/"+url.PathEscape(shop), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("insights http %d", resp.StatusCode)
	}
	var out models.Insights
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode insights")
	}
	return &out, nil
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
