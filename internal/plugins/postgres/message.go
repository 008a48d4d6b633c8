package postgres

import (
	"context"
	"database/sql"

	"supportdesk/internal/core/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{
		db: db,
	}
}

// Upsert writes msg at seq. A conflicting id only updates content and
// user_type so the original position is kept.
func (r *MessageRepo) Upsert(
	ctx context.Context,
	roomID string,
	seq int64,
	msg domain.Message,
) error {
	if roomID == "" {
		return domain.ErrInvalidRoomID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (room_id, id, author, role, content, user_type, seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id, id) DO UPDATE SET
			content = EXCLUDED.content,
			user_type = EXCLUDED.user_type
	`,
		roomID,
		msg.ID,
		msg.User,
		string(msg.Role),
		msg.Content,
		string(msg.UserType),
		seq,
	)
	return err
}

func (r *MessageRepo) List(
	ctx context.Context,
	roomID string,
) ([]domain.Message, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidRoomID
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, author, role, content, user_type
		FROM messages
		WHERE room_id = $1
		ORDER BY seq ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID,
			&m.User,
			&m.Role,
			&m.Content,
			&m.UserType,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *MessageRepo) LastSeq(ctx context.Context, roomID string) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0)
		FROM messages
		WHERE room_id = $1
	`, roomID).Scan(&seq)
	return seq, err
}
