package services

import (
	"context"
	"fmt"

	"plforum/internal/metrics"
	"plforum/internal/models"

	"gorm.io/gorm"
)

const DefaultDownloadDailyLimit = 3

// LimitFunc 每用户每日下载上限，目前为常量，保留按用户计算的入口
type LimitFunc func(u *models.User) int

func FlatLimit(n int) LimitFunc {
	return func(*models.User) int { return n }
}

type QuotaResult struct {
	OK             bool `json:"ok"`
	UsedToday      int  `json:"used_today"`
	RemainingToday int  `json:"remaining_today"`
	Limit          int  `json:"limit"`
}

// DownloadQuota 每日下载配额
type DownloadQuota struct {
	db    *gorm.DB
	clock Clock
	limit LimitFunc
}

func NewDownloadQuota(db *gorm.DB, clock Clock, limit LimitFunc) *DownloadQuota {
	if limit == nil {
		limit = FlatLimit(DefaultDownloadDailyLimit)
	}
	return &DownloadQuota{db: db, clock: clock, limit: limit}
}

// TryConsume 被封禁用户直接拒绝；否则锁当天计数行，余量 <= 0 拒绝且不修改，否则计数 +1
func (q *DownloadQuota) TryConsume(ctx context.Context, u *models.User) (QuotaResult, error) {
	return q.tryConsume(q.db.WithContext(ctx), u)
}

// TryConsumeTx 在调用方事务内消耗配额，下载记录写失败时配额一并回滚
func (q *DownloadQuota) TryConsumeTx(tx *gorm.DB, u *models.User) (QuotaResult, error) {
	return q.tryConsume(tx, u)
}

func (q *DownloadQuota) tryConsume(db *gorm.DB, u *models.User) (QuotaResult, error) {
	limit := q.limit(u)
	if u.IsCurrentlyBanned(q.clock.now()) {
		metrics.QuotaDecision(false)
		return QuotaResult{OK: false, Limit: limit}, nil
	}

	var res QuotaResult
	err := db.Transaction(func(tx *gorm.DB) error {
		day := q.clock.Today()
		stat, err := lockDayRow(tx, &models.DailyDownloadStat{UserID: u.ID, Day: day}, u.ID, day)
		if err != nil {
			return err
		}

		remaining := limit - stat.Count
		if remaining <= 0 {
			res = QuotaResult{OK: false, UsedToday: stat.Count, RemainingToday: 0, Limit: limit}
			return nil
		}

		if err := tx.Model(stat).UpdateColumn("count", gorm.Expr("count + ?", 1)).Error; err != nil {
			return err
		}
		used := stat.Count + 1
		res = QuotaResult{OK: true, UsedToday: used, RemainingToday: limit - used, Limit: limit}
		return nil
	})
	if err != nil {
		return QuotaResult{}, fmt.Errorf("download quota: %w", err)
	}
	metrics.QuotaDecision(res.OK)
	return res, nil
}

// Status 当天用量，不消耗
func (q *DownloadQuota) Status(ctx context.Context, u *models.User) (QuotaResult, error) {
	limit := q.limit(u)
	var stat models.DailyDownloadStat
	if err := q.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", u.ID, q.clock.Today()).
		Limit(1).
		Find(&stat).Error; err != nil {
		return QuotaResult{}, err
	}
	remaining := max(limit-stat.Count, 0)
	banned := u.IsCurrentlyBanned(q.clock.now())
	return QuotaResult{OK: remaining > 0 && !banned, UsedToday: stat.Count, RemainingToday: remaining, Limit: limit}, nil
}
