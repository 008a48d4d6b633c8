package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"

	"supportdesk/internal/core/domain"
)

type MessageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Upsert(ctx context.Context, roomID string, seq int64, msg domain.Message) error {
	if roomID == "" {
		return domain.ErrInvalidRoomID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (room_id, id, author, role, content, user_type, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (room_id, id) DO UPDATE SET
			content = excluded.content,
			user_type = excluded.user_type
	`, roomID, msg.ID, msg.User, string(msg.Role), msg.Content, string(msg.UserType), seq)
	return err
}

func (r *MessageRepo) List(ctx context.Context, roomID string) ([]domain.Message, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidRoomID
	}
	msgs := []domain.Message{}
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT id, author, role, content, user_type
		FROM messages
		WHERE room_id = ?
		ORDER BY seq ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *MessageRepo) LastSeq(ctx context.Context, roomID string) (int64, error) {
	var seq int64
	err := r.db.GetContext(ctx, &seq, `SELECT COALESCE(MAX(seq), 0) FROM messages WHERE room_id = ?`, roomID)
	return seq, err
}
