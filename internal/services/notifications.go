package services

import (
	"context"

	"plforum/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationService 站内通知
type NotificationService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewNotificationService(db *gorm.DB, log *zap.Logger) *NotificationService {
	return &NotificationService{db: db, log: orNop(log)}
}

// Notify 尽力而为，失败不影响触发通知的操作；不给自己发通知
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) {
	if n.ActorID != nil && *n.ActorID == n.UserID {
		return
	}
	if err := s.db.WithContext(ctx).Omit("User", "Actor").Create(&n).Error; err != nil {
		s.log.Warn("create notification failed",
			zap.Uint("user_id", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Preload("Actor").Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var list []models.Notification
	err := q.Order("id DESC").Limit(limit).Find(&list).Error
	return list, err
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead 只能标记自己的通知
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		UpdateColumn("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		UpdateColumn("is_read", true)
	return res.RowsAffected, res.Error
}
