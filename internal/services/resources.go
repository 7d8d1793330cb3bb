package services

import (
	"context"
	"errors"
	"fmt"

	"plforum/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DownloadResult 成功时带资源地址；配额用尽时仅 Quota 有效
type DownloadResult struct {
	URL   string      `json:"url,omitempty"`
	Code  string      `json:"code,omitempty"`
	Title string      `json:"title,omitempty"`
	Quota QuotaResult `json:"quota"`
}

type ResourceService struct {
	db    *gorm.DB
	clock Clock
	log   *zap.Logger
	quota *DownloadQuota
	audit *AuditTrail
}

func NewResourceService(db *gorm.DB, clock Clock, quota *DownloadQuota, audit *AuditTrail, log *zap.Logger) *ResourceService {
	return &ResourceService{db: db, clock: clock, quota: quota, audit: audit, log: orNop(log)}
}

// Links 帖子的资源列表，不含地址
func (s *ResourceService) Links(ctx context.Context, viewer *models.User, postID uint) ([]models.ResourceLink, error) {
	if _, err := s.post(ctx, viewer, postID); err != nil {
		return nil, err
	}
	var links []models.ResourceLink
	err := s.db.WithContext(ctx).Where("post_id = ?", postID).Order("id").Find(&links).Error
	return links, err
}

func (s *ResourceService) post(ctx context.Context, viewer *models.User, postID uint) (*models.Post, error) {
	var p models.Post
	if err := s.db.WithContext(ctx).Select("id", "user_id", "board_id", "status").
		Where("is_deleted = ?", false).First(&p, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !canView(viewer, &p) {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Download 消耗一次当日配额并返回资源地址。配额扣减与下载记录同一事务；
// 配额用尽时返回 ErrRateLimited，结果中带当前用量。
func (s *ResourceService) Download(ctx context.Context, user *models.User, postID, linkID uint, meta RequestMeta) (*DownloadResult, error) {
	if user.IsCurrentlyBanned(s.clock.now()) {
		return nil, ErrBanned
	}
	p, err := s.post(ctx, user, postID)
	if err != nil {
		return nil, err
	}
	var link models.ResourceLink
	if err := s.db.WithContext(ctx).Where("id = ? AND post_id = ?", linkID, p.ID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	res := &DownloadResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := s.quota.TryConsumeTx(tx, user)
		if err != nil {
			return err
		}
		res.Quota = q
		if !q.OK {
			return nil
		}
		return tx.Omit("User", "Link").Create(&models.DownloadEvent{UserID: user.ID, LinkID: link.ID, IP: truncate(meta.IP, 64)}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if !res.Quota.OK {
		return res, ErrRateLimited
	}

	res.URL, res.Code, res.Title = link.URL, link.Code, link.Title
	s.audit.Write(ctx, AuditEntry{
		Actor:      user,
		Action:     AuditDownloadConsume,
		TargetType: "resource",
		TargetID:   idStr(link.ID),
		Meta:       meta,
		Metadata: map[string]interface{}{
			"post_id":     p.ID,
			"resource_id": link.ID,
			"board_id":    p.BoardID,
			"used_today":  res.Quota.UsedToday,
			"remaining":   res.Quota.RemainingToday,
		},
	})
	return res, nil
}

// Quota 当日下载用量
func (s *ResourceService) Quota(ctx context.Context, user *models.User) (QuotaResult, error) {
	return s.quota.Status(ctx, user)
}
