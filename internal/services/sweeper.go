package services

import (
	"context"
	"fmt"

	"plforum/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PunishmentSweeper 定时清理已过期的封禁/禁言标记。
// 授权判断始终看 flag 与到期时间，这里只是让列表和后台显示一致。
type PunishmentSweeper struct {
	db    *gorm.DB
	clock Clock
	audit *AuditTrail
	log   *zap.Logger
	cron  *cron.Cron
}

func NewPunishmentSweeper(db *gorm.DB, clock Clock, audit *AuditTrail, log *zap.Logger) *PunishmentSweeper {
	return &PunishmentSweeper{db: db, clock: clock, audit: audit, log: orNop(log)}
}

// SweepResult 本轮清理的人数
type SweepResult struct {
	Unbanned int64 `json:"unbanned"`
	Unmuted  int64 `json:"unmuted"`
}

// Sweep 执行一轮清理
func (s *PunishmentSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.clock.now().UTC()
	var res SweepResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := tx.Model(&models.User{}).
			Where("is_banned = ? AND banned_until IS NOT NULL AND banned_until <= ?", true, now).
			Updates(map[string]interface{}{"is_banned": false, "banned_until": nil, "ban_reason": ""})
		if r.Error != nil {
			return r.Error
		}
		res.Unbanned = r.RowsAffected

		r = tx.Model(&models.User{}).
			Where("is_muted = ? AND muted_until IS NOT NULL AND muted_until <= ?", true, now).
			Updates(map[string]interface{}{"is_muted": false, "muted_until": nil, "mute_reason": ""})
		if r.Error != nil {
			return r.Error
		}
		res.Unmuted = r.RowsAffected
		return nil
	})
	if err != nil {
		return SweepResult{}, fmt.Errorf("punishment sweep: %w", err)
	}
	if res.Unbanned > 0 || res.Unmuted > 0 {
		s.audit.Write(ctx, AuditEntry{
			Action:     AuditPunishmentSweep,
			TargetType: "system",
			Metadata:   map[string]interface{}{"unbanned": res.Unbanned, "unmuted": res.Unmuted},
		})
	}
	return res, nil
}

// Start 按 cron 表达式（如 "@every 10m"）注册任务并启动调度，表达式为空时不启动
func (s *PunishmentSweeper) Start(expr string) error {
	if expr == "" {
		return nil
	}
	c := cron.New(cron.WithLocation(s.clock.loc()))
	_, err := c.AddFunc(expr, func() {
		res, err := s.Sweep(context.Background())
		if err != nil {
			s.log.Error("punishment sweep failed", zap.Error(err))
			return
		}
		s.log.Debug("punishment sweep done", zap.Int64("unbanned", res.Unbanned), zap.Int64("unmuted", res.Unmuted))
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", expr, err)
	}
	s.cron = c
	c.Start()
	s.log.Info("punishment sweeper started", zap.String("cron", expr))
	return nil
}

// Stop 等待正在执行的任务结束
func (s *PunishmentSweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
