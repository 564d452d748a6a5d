package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/uppership/opsboard/internal/markdown"
	"github.com/uppership/opsboard/internal/models"
)

type Store interface {
	AppendMessages(ctx context.Context, shop string, msgs []models.ChatMessage) error
	ListMessages(ctx context.Context, shop string) ([]models.ChatMessage, error)
	ClearShop(ctx context.Context, shop string) error
}

type Backend interface {
	Chat(ctx context.Context, shop, question string) (string, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// ErrDebounced — вопрос пришёл раньше, чем истекло окно дебаунса.
var ErrDebounced = errors.New("too many questions, slow down")

const networkErrorText = "❌ Network error."

// Entry — сообщение переписки вместе с отрендеренным HTML ответа.
// HTML заполняется только для сообщений ассистента.
type Entry struct {
	models.ChatMessage
	HTML string `json:"html,omitempty"`
}

// Service ведёт переписку с ассистентом по каждому магазину.
type Service struct {
	backend Backend
	store   Store
	rl      RateLimiter

	debounce time.Duration
}

func New(backend Backend, store Store, rl RateLimiter) *Service {
	return &Service{
		backend:  backend,
		store:    store,
		rl:       rl,
		debounce: 1500 * time.Millisecond,
	}
}

func (s *Service) WithDebounce(d time.Duration) *Service {
	if d > 0 {
		s.debounce = d
	}
	return s
}

// History возвращает переписку магазина. Пустая переписка начинается
// с приветствия, которое сразу сохраняется в сторе.
func (s *Service) History(ctx context.Context, shop string) ([]Entry, error) {
	msgs, err := s.store.ListMessages(ctx, shop)
	if err != nil {
		return nil, errors.Wrap(err, "list chat messages")
	}
	if len(msgs) == 0 {
		msgs = []models.ChatMessage{{
			Who:       models.ChatWhoAI,
			Text:      greeting(shop),
			CreatedAt: time.Now().UTC(),
		}}
		// Стор недоступен — приветствие всё равно показываем.
		if err := s.store.AppendMessages(ctx, shop, msgs); err != nil {
			slog.Warn("persist greeting", "shop", shop, "error", err.Error())
		}
	}
	return s.render(msgs), nil
}

// Ask добавляет вопрос пользователя и ответ ассистента в переписку.
// Пустой вопрос — no-op. Сбой бэкенда превращается в фиксированную
// запись об ошибке, переписка при этом сохраняется.
func (s *Service) Ask(ctx context.Context, shop, question string) ([]Entry, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil
	}

	if s.rl != nil {
		allowed, _, err := s.rl.Allow(ctx, "chat:debounce:"+shop, 1, s.debounce)
		if err != nil {
			// Redis недоступен — дебаунс пропускаем, вопрос важнее.
			slog.Warn("chat debounce", "shop", shop, "error", err.Error())
		} else if !allowed {
			return nil, ErrDebounced
		}
	}

	now := time.Now().UTC()
	msgs := []models.ChatMessage{
		{Who: models.ChatWhoMe, Text: question, CreatedAt: now},
	}

	answer, err := s.backend.Chat(ctx, shop, question)
	if err != nil {
		slog.Error("chat backend", "shop", shop, "error", err.Error())
		answer = networkErrorText
	}
	msgs = append(msgs, models.ChatMessage{
		Who:       models.ChatWhoAI,
		Text:      answer,
		CreatedAt: time.Now().UTC(),
	})

	if err := s.store.AppendMessages(ctx, shop, msgs); err != nil {
		return nil, errors.Wrap(err, "append chat messages")
	}
	return s.render(msgs), nil
}

func (s *Service) Clear(ctx context.Context, shop string) error {
	return errors.Wrap(s.store.ClearShop(ctx, shop), "clear chat")
}

func (s *Service) render(msgs []models.ChatMessage) []Entry {
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		e := Entry{ChatMessage: m}
		if m.Who == models.ChatWhoAI {
			html, err := markdown.Render(m.Text)
			if err != nil {
				slog.Error("render chat message", "error", err.Error())
			}
			e.HTML = html
		}
		out = append(out, e)
	}
	return out
}

func greeting(shop string) string {
	name := strings.TrimSuffix(shop, ".myshopify.com")
	if name == "" {
		name = "your store"
	}
	return "Hi! Ask me anything about **" + name + "**: orders, tracking, delays."
}
