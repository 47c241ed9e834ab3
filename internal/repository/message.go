package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.chat/pkg/model"
)

// MessageRepository 消息仓库
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository 创建消息仓库
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 落库一条消息，ID 与 CreatedAt 由调用方给定
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, text, image, seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		msg.ID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Text,
		msg.Image,
		msg.Seen,
		time.UnixMilli(msg.CreatedAt),
	)
	return err
}

// ListBetween 获取两个用户之间双向的全部消息，按时间升序
func (r *MessageRepository) ListBetween(ctx context.Context, a, b string) ([]model.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, text, image, seen, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]model.Message, 0)
	for rows.Next() {
		var msg model.Message
		var createdAt time.Time
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Text,
			&msg.Image,
			&msg.Seen,
			&createdAt,
		); err != nil {
			return nil, err
		}
		msg.CreatedAt = createdAt.UnixMilli()
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// MarkSeen 标记单条消息已读
func (r *MessageRepository) MarkSeen(ctx context.Context, id string) error {
	query := `UPDATE messages SET seen = TRUE WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// MarkConversationSeen 把 sender -> receiver 方向的未读消息全部置为已读
func (r *MessageRepository) MarkConversationSeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	query := `
		UPDATE messages SET seen = TRUE
		WHERE sender_id = $1 AND receiver_id = $2 AND NOT seen
	`
	tag, err := r.db.Exec(ctx, query, senderID, receiverID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteBetween 删除两个用户之间双向的全部消息，返回删除条数
func (r *MessageRepository) DeleteBetween(ctx context.Context, a, b string) (int64, error) {
	query := `
		DELETE FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
	`
	tag, err := r.db.Exec(ctx, query, a, b)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
