package services

import (
	"context"

	"plforum/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options 业务参数，来自配置
type Options struct {
	Clock              Clock
	DownloadDailyLimit int
	PostPointsDailyCap int
	AuditRetentionDays int
	RBAC               RBACSubjects // 为空时撤销版主不清理 RBAC
}

// Services 进程内共享的业务服务集合
type Services struct {
	Clock         Clock
	Ledger        *Ledger
	Quota         *DownloadQuota
	Boards        *BoardPermissions
	Audit         *AuditTrail
	Admin         *AdminService
	Profile       *ProfileService
	Forum         *ForumService
	Resources     *ResourceService
	Notifications *NotificationService
	Sweeper       *PunishmentSweeper
}

func New(db *gorm.DB, opts Options, log *zap.Logger) *Services {
	log = orNop(log)
	limit := opts.DownloadDailyLimit
	if limit <= 0 {
		limit = DefaultDownloadDailyLimit
	}

	s := &Services{Clock: opts.Clock}
	s.Ledger = NewLedger(db, opts.Clock, log.Named("points"))
	s.Quota = NewDownloadQuota(db, opts.Clock, FlatLimit(limit))
	s.Boards = NewBoardPermissions(db)
	s.Audit = NewAuditTrail(db, opts.Clock, s.Boards, opts.AuditRetentionDays, log.Named("audit"))
	s.Notifications = NewNotificationService(db, log.Named("notify"))
	s.Admin = NewAdminService(db, opts.Clock, s.Audit, s.Boards, log.Named("admin"))
	s.Admin.subjects = opts.RBAC
	s.Profile = NewProfileService(db, opts.Clock, s.Ledger, s.Audit, log.Named("profile"))
	s.Forum = NewForumService(db, opts.Clock, s.Ledger, s.Audit, s.Boards, s.Notifications, opts.PostPointsDailyCap, log.Named("forum"))
	s.Resources = NewResourceService(db, opts.Clock, s.Quota, s.Audit, log.Named("resources"))
	s.Sweeper = NewPunishmentSweeper(db, opts.Clock, s.Audit, log.Named("sweeper"))
	return s
}

// CheckInResult 签到结果
type CheckInResult struct {
	CheckedIn bool `json:"checked_in"`
	Awarded   int  `json:"awarded"`
	Balance   int  `json:"plcoin"`
}

// CheckIn 每日签到，重复签到不是错误
func (s *Services) CheckIn(ctx context.Context, user *models.User, meta RequestMeta) (*CheckInResult, error) {
	ok, balance, err := s.Ledger.CheckIn(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	res := &CheckInResult{CheckedIn: ok, Balance: balance}
	if ok {
		res.Awarded = PointsCheckIn
		s.Audit.Write(ctx, AuditEntry{Actor: user, Action: AuditPointsCheckIn, TargetType: "user", TargetID: idStr(user.ID),
			Meta: meta, Metadata: map[string]interface{}{"awarded": PointsCheckIn, "balance": balance}})
	}
	return res, nil
}
