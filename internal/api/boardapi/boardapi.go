// Package boardapi — JSON API дашборда поверх сервисов доски, чата и
// контроллера синхронизации.
package boardapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/uppership/opsboard/internal/board"
	"github.com/uppership/opsboard/internal/integrations/uppership"
	"github.com/uppership/opsboard/internal/services/chat"
	"github.com/uppership/opsboard/internal/services/columns"
	"github.com/uppership/opsboard/internal/services/syncctl"
)

var timeNow = func() time.Time { return time.Now().UTC() }

type BoardAPI struct {
	columns *columns.Service
	chat    *chat.Service
	sync    *syncctl.Controller
	backend uppership.Client
}

func New(cols *columns.Service, chatSvc *chat.Service, sync *syncctl.Controller, backend uppership.Client) *BoardAPI {
	return &BoardAPI{columns: cols, chat: chatSvc, sync: sync, backend: backend}
}

// Routes вешает все эндпоинты доски на роутер.
func (a *BoardAPI) Routes(r chi.Router) {
	r.Get("/columns", a.getColumns)
	r.Get("/orders/{orderID}", a.getOrder)
	r.Post("/orders/{orderID}/ignore", a.ignoreOrder)
	r.Get("/packages/{packageID}/order", a.resolveOrder)

	r.Get("/chat/{shop}", a.getChat)
	r.Post("/chat/{shop}", a.postChat)
	r.Delete("/chat/{shop}", a.clearChat)

	r.Post("/sync/{shop}/now", a.syncNow)
	r.Get("/sync/{shop}/status", a.syncStatus)
	r.Get("/sync/stats", a.syncStats)

	r.Get("/insights/{shop}", a.getInsights)
}

// getColumns отдаёт одну колонку (?status=) или всю доску.
func (a *BoardAPI) getColumns(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")
	status := r.URL.Query().Get("status")

	if status != "" {
		cards, err := a.columns.Column(r.Context(), shop, status)
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, columns.ColumnResult{Status: status, Cards: cards})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"columns": a.columns.Board(r.Context(), shop),
	})
}

func (a *BoardAPI) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	shop := r.URL.Query().Get("shop")

	det, err := a.backend.GetOrder(r.Context(), orderID, shop)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, det)
}

// ignoreOrder помечает заказ скрытым и сбрасывает кэш доски магазина.
func (a *BoardAPI) ignoreOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	shop := r.URL.Query().Get("shop")

	if err := a.backend.IgnoreOrder(r.Context(), orderID, shop); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	a.columns.Bump(shop)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ignored", "order_id": orderID})
}

func (a *BoardAPI) resolveOrder(w http.ResponseWriter, r *http.Request) {
	packageID := chi.URLParam(r, "packageID")
	shop := r.URL.Query().Get("shop")

	ref, err := a.columns.ResolveOrder(r.Context(), shop, packageID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (a *BoardAPI) getChat(w http.ResponseWriter, r *http.Request) {
	shop := chi.URLParam(r, "shop")

	entries, err := a.chat.History(r.Context(), shop)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": entries})
}

type askRequest struct {
	Question string `json:"question"`
}

func (a *BoardAPI) postChat(w http.ResponseWriter, r *http.Request) {
	shop := chi.URLParam(r, "shop")

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid json body"))
		return
	}

	entries, err := a.chat.Ask(r.Context(), shop, req.Question)
	if err != nil {
		if errors.Is(err, chat.ErrDebounced) {
			writeError(w, http.StatusTooManyRequests, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": entries})
}

func (a *BoardAPI) clearChat(w http.ResponseWriter, r *http.Request) {
	shop := chi.URLParam(r, "shop")

	if err := a.chat.Clear(r.Context(), shop); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

func (a *BoardAPI) syncNow(w http.ResponseWriter, r *http.Request) {
	shop := chi.URLParam(r, "shop")
	q := r.URL.Query()
	opts := uppership.SyncOptions{
		Force:    q.Get("force") == "1" || q.Get("force") == "true",
		Orders:   q.Get("orders") == "1" || q.Get("orders") == "true",
		Tracking: q.Get("tracking") == "1" || q.Get("tracking") == "true",
	}

	msg, err := a.sync.Trigger(r.Context(), shop, opts)
	if err != nil {
		var re *syncctl.RejectedError
		if errors.As(err, &re) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":  re.Error(),
				"msLeft": re.MsLeft,
			})
			return
		}
		var ce *uppership.CooldownError
		if errors.As(err, &ce) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":  ce.Error(),
				"msLeft": ce.MsLeft,
			})
			return
		}
		if errors.Is(err, syncctl.ErrSyncInFlight) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (a *BoardAPI) syncStatus(w http.ResponseWriter, r *http.Request) {
	shop := chi.URLParam(r, "shop")

	snap, err := a.sync.Status(r.Context(), shop)
	if err != nil {
		// Бэкенд недоступен, но локальный снимок у нас есть.
		slog.Warn("sync status", "shop", shop, "error", err.Error())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":        snap.State,
		"lastSyncAt":   snap.LastSyncAt,
		"msLeft":       snap.MsLeft,
		"lastSync":     syncctl.FormatAgo(snap.LastSyncAt, timeNow()),
		"left":         syncctl.FormatLeft(snap.MsLeft),
		"refreshToken": a.columns.RefreshToken(shop),
	})
}

func (a *BoardAPI) syncStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sync.Stats())
}

func (a *BoardAPI) getInsights(w http.ResponseWriter, r *http.Request) {
	shop := chi.URLParam(r, "shop")

	ins, err := a.backend.Insights(r.Context(), shop)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	status, message := board.ScoreStatus(float64(ins.Summary.FulfillmentRate))
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": ins.Summary,
		"regions": ins.Regions,
		"score": map[string]string{
			"status":  status,
			"message": message,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
