package pgchat

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/uppership/opsboard/internal/models"
)

// AppendMessages дописывает сообщения в конец переписки магазина и
// обрезает историю до models.MaxTranscriptLen последних записей.
func (s *Storage) AppendMessages(ctx context.Context, shop string, msgs []models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, m := range msgs {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx, `
INSERT INTO chat_messages (shop, who, body, created_at)
VALUES ($1,$2,$3,$4)
`, shop, m.Who, m.Text, createdAt)
		if err != nil {
			return errors.Wrap(err, "insert chat message")
		}
	}

	// Старое отрезаем сразу же, чтобы переписка не росла бесконечно.
	_, err = tx.Exec(ctx, `
DELETE FROM chat_messages
WHERE shop = $1
  AND id NOT IN (
    SELECT id FROM chat_messages
    WHERE shop = $1
    ORDER BY id DESC
    LIMIT $2
  )
`, shop, models.MaxTranscriptLen)
	if err != nil {
		return errors.Wrap(err, "trim chat messages")
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// ListMessages возвращает переписку магазина от старых к новым.
func (s *Storage) ListMessages(ctx context.Context, shop string) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(ctx, `
SELECT who, body, created_at
FROM (
  SELECT id, who, body, created_at
  FROM chat_messages
  WHERE shop = $1
  ORDER BY id DESC
  LIMIT $2
) t
ORDER BY id ASC
`, shop, models.MaxTranscriptLen)
	if err != nil {
		return nil, errors.Wrap(err, "select chat messages")
	}
	defer rows.Close()

	out := make([]models.ChatMessage, 0, models.MaxTranscriptLen)
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.Who, &m.Text, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan chat message")
		}
		out = append(out, m)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ClearShop стирает переписку магазина целиком.
func (s *Storage) ClearShop(ctx context.Context, shop string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM chat_messages WHERE shop = $1`, shop)
	return errors.Wrap(err, "clear chat messages")
}
