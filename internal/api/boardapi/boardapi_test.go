package boardapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/uppership/opsboard/internal/integrations/uppership/fake"
	"github.com/uppership/opsboard/internal/models"
	"github.com/uppership/opsboard/internal/services/chat"
	"github.com/uppership/opsboard/internal/services/columns"
	"github.com/uppership/opsboard/internal/services/syncctl"
)

type memChatStore struct {
	mu   sync.Mutex
	msgs map[string][]models.ChatMessage
}

func (m *memChatStore) AppendMessages(ctx context.Context, shop string, msgs []models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.msgs == nil {
		m.msgs = map[string][]models.ChatMessage{}
	}
	m.msgs[shop] = append(m.msgs[shop], msgs...)
	return nil
}

func (m *memChatStore) ListMessages(ctx context.Context, shop string) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ChatMessage(nil), m.msgs[shop]...), nil
}

func (m *memChatStore) ClearShop(ctx context.Context, shop string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.msgs, shop)
	return nil
}

func newTestServer(t *testing.T, backend *fake.FakeBackend) *httptest.Server {
	t.Helper()

	cols := columns.New(backend, nil, 0)
	chatSvc := chat.New(backend, &memChatStore{}, nil)
	ctrl := syncctl.New(backend, nil, "")

	r := chi.NewRouter()
	r.Route("/board", New(cols, chatSvc, ctrl, backend).Routes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestBoardAPI_GetColumns_SingleStatus(t *testing.T) {
	srv := newTestServer(t, fake.New())

	var got columns.ColumnResult
	code := getJSON(t, srv.URL+"/board/columns?shop=demo.myshopify.com&status="+models.StatusInTransit, &got)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, models.StatusInTransit, got.Status)
	require.NotEmpty(t, got.Cards)
	for _, c := range got.Cards {
		require.Equal(t, models.StatusInTransit, c.Status)
	}
}

func TestBoardAPI_GetColumns_WholeBoard(t *testing.T) {
	srv := newTestServer(t, fake.New())

	var got struct {
		Columns []columns.ColumnResult `json:"columns"`
	}
	code := getJSON(t, srv.URL+"/board/columns?shop=demo.myshopify.com", &got)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, got.Columns, len(models.BoardStatuses))
}

func TestBoardAPI_OrderFlow(t *testing.T) {
	backend := fake.New()
	srv := newTestServer(t, backend)

	pkgs, err := backend.ListPackages(context.Background(), "demo.myshopify.com", models.StatusInTransit, 1)
	require.NoError(t, err)
	require.NotEmpty(t, pkgs)
	orderID := pkgs[0].ResolveOrderID()

	var det models.OrderDetails
	code := getJSON(t, srv.URL+"/board/orders/"+orderID+"?shop=demo.myshopify.com", &det)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, det.Order.OrderName)

	resp, err := http.Post(srv.URL+"/board/orders/"+orderID+"/ignore?shop=demo.myshopify.com", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ref models.OrderRef
	code = getJSON(t, srv.URL+"/board/packages/"+pkgs[0].ID+"/order?shop=demo.myshopify.com", &ref)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "demo.myshopify.com", ref.Shop)
}

func TestBoardAPI_Chat(t *testing.T) {
	srv := newTestServer(t, fake.New())

	var hist struct {
		Messages []chat.Entry `json:"messages"`
	}
	code := getJSON(t, srv.URL+"/board/chat/demo.myshopify.com", &hist)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, hist.Messages, 1) // приветствие

	resp, err := http.Post(srv.URL+"/board/chat/demo.myshopify.com", "application/json",
		strings.NewReader(`{"question":"how are my orders doing?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var posted struct {
		Messages []chat.Entry `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&posted))
	require.Len(t, posted.Messages, 2)
	require.Equal(t, models.ChatWhoMe, posted.Messages[0].Who)
	require.Equal(t, models.ChatWhoAI, posted.Messages[1].Who)
	require.NotEmpty(t, posted.Messages[1].HTML)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/board/chat/demo.myshopify.com", nil)
	require.NoError(t, err)
	dresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	dresp.Body.Close()
	require.Equal(t, http.StatusOK, dresp.StatusCode)
}

func TestBoardAPI_Chat_BadBody(t *testing.T) {
	srv := newTestServer(t, fake.New())

	resp, err := http.Post(srv.URL+"/board/chat/demo", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBoardAPI_SyncNow_CooldownGives429(t *testing.T) {
	backend := fake.New().WithCooldown(time.Minute)
	srv := newTestServer(t, backend)

	resp, err := http.Post(srv.URL+"/board/sync/demo.myshopify.com/now", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Второй запуск упирается в кулдаун.
	resp2, err := http.Post(srv.URL+"/board/sync/demo.myshopify.com/now", "application/json", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp2.StatusCode)

	var body struct {
		Error  string `json:"error"`
		MsLeft int64  `json:"msLeft"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body))
	require.NotEmpty(t, body.Error)
	require.Greater(t, body.MsLeft, int64(0))
}

func TestBoardAPI_SyncStatus(t *testing.T) {
	srv := newTestServer(t, fake.New())

	var got struct {
		State    string `json:"state"`
		MsLeft   int64  `json:"msLeft"`
		LastSync string `json:"lastSync"`
		Left     string `json:"left"`
	}
	code := getJSON(t, srv.URL+"/board/sync/demo.myshopify.com/status", &got)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(syncctl.StateIdle), got.State)
	require.Equal(t, "never", got.LastSync)
	require.Equal(t, "0s", got.Left)
}

func TestBoardAPI_Insights(t *testing.T) {
	srv := newTestServer(t, fake.New())

	var got struct {
		Summary models.InsightsSummary `json:"summary"`
		Regions models.RegionMaps      `json:"regions"`
		Score   struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"score"`
	}
	code := getJSON(t, srv.URL+"/board/insights/demo.myshopify.com", &got)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, got.Regions.RegionLabels)
	require.Contains(t, []string{"success", "warning", "critical"}, got.Score.Status)
	require.NotEmpty(t, got.Score.Message)
}
