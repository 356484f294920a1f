package repository

import (
	"context"
	"database/sql"
	"fmt"

	"mediascore/internal/models"
	"mediascore/internal/pipeline"
)

// NotificationRepository is the persisted form of the notification sink.
// Delivery and display belong to the collaborators reading this table.
type NotificationRepository struct {
	db *sql.DB
}

var _ pipeline.NotificationSink = (*NotificationRepository)(nil)

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Notify writes one notification record
func (r *NotificationRepository) Notify(ctx context.Context, n models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, type, title, message, related_report_id)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, n.UserID, n.Type, n.Title, n.Message, n.RelatedReportID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications newest-first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, type, title, message, related_report_id, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var related sql.NullString
		err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &related, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if related.Valid {
			n.RelatedReportID = &related.String
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkRead marks one of the user's notifications as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uint) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}
