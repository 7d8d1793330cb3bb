package services

import (
	"context"
	"errors"
	"fmt"

	"plforum/internal/metrics"
	"plforum/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 积分动作
const (
	ActionCheckIn            = "points.checkin"
	ActionPostCreate         = "points.post_create"
	ActionFirstCommentBonus  = "points.first_comment"
	ActionFirstFavoriteBonus = "points.first_favorite"
	ActionNicknameChange     = "profile.nickname_change"
	ActionUsernameChange     = "profile.username_change"
	ActionAvatarChange       = "profile.avatar_change"
)

// 积分值
const (
	PointsCheckIn           = 2
	PointsPost              = 1
	PointsPostWithResources = 2
	PointsFirstComment      = 1
	PointsFirstFavorite     = 1

	DefaultPostPointsDailyCap = 6

	CostNicknameChange = 3
	CostUsernameChange = 10
	CostAvatarChange   = 10
)

// Ledger 每日积分账本。所有奖励都在事务内先锁当天的统计行，再改余额。
type Ledger struct {
	db    *gorm.DB
	clock Clock
	log   *zap.Logger
}

func NewLedger(db *gorm.DB, clock Clock, log *zap.Logger) *Ledger {
	return &Ledger{db: db, clock: clock, log: orNop(log)}
}

func (l *Ledger) lockToday(tx *gorm.DB, userID uint) (*models.DailyPointStat, error) {
	day := l.clock.Today()
	return lockDayRow(tx, &models.DailyPointStat{UserID: userID, Day: day}, userID, day)
}

// credit 加积分并记明细，返回变动后余额；amount 为 0 时只读余额
func credit(tx *gorm.DB, userID uint, amount int, action string) (int, error) {
	if amount > 0 {
		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			UpdateColumn("activity_score", gorm.Expr("activity_score + ?", amount)).
			Error; err != nil {
			return 0, err
		}
	}

	var u models.User
	if err := tx.Select("id", "activity_score").First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	if amount > 0 {
		entry := models.PointLog{UserID: userID, Amount: amount, Action: action, Balance: u.ActivityScore}
		if err := tx.Create(&entry).Error; err != nil {
			return 0, err
		}
	}
	return u.ActivityScore, nil
}

// awardOnce 当天标记未置位时加分并置位
func (l *Ledger) awardOnce(ctx context.Context, userID uint, amount int, action string,
	flag func(*models.DailyPointStat) *bool, column string) (bool, int, error) {
	var awarded bool
	var balance int
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stat, err := l.lockToday(tx, userID)
		if err != nil {
			return err
		}

		if *flag(stat) {
			balance, err = credit(tx, userID, 0, action)
			return err
		}

		if err := tx.Model(stat).UpdateColumn(column, true).Error; err != nil {
			return err
		}
		balance, err = credit(tx, userID, amount, action)
		awarded = err == nil
		return err
	})
	if err != nil {
		return false, 0, fmt.Errorf("%s: %w", action, err)
	}
	if awarded {
		metrics.PointsAwarded(action, amount)
	}
	return awarded, balance, nil
}

// CheckIn 每日签到，+2，每天一次
func (l *Ledger) CheckIn(ctx context.Context, userID uint) (bool, int, error) {
	return l.awardOnce(ctx, userID, PointsCheckIn, ActionCheckIn,
		func(s *models.DailyPointStat) *bool { return &s.CheckedIn }, "checked_in")
}

// AwardFirstCommentBonus 当天首条评论 +1
func (l *Ledger) AwardFirstCommentBonus(ctx context.Context, userID uint) (bool, int, error) {
	return l.awardOnce(ctx, userID, PointsFirstComment, ActionFirstCommentBonus,
		func(s *models.DailyPointStat) *bool { return &s.GotFirstCommentBonus }, "got_first_comment_bonus")
}

// AwardFirstFavoriteBonus 当天首次收藏 +1
func (l *Ledger) AwardFirstFavoriteBonus(ctx context.Context, userID uint) (bool, int, error) {
	return l.awardOnce(ctx, userID, PointsFirstFavorite, ActionFirstFavoriteBonus,
		func(s *models.DailyPointStat) *bool { return &s.GotFirstFavoriteBonus }, "got_first_favorite_bonus")
}

// AwardPostPoints 发帖积分，实际发放 min(points, cap-当天已得)，可能为 0
func (l *Ledger) AwardPostPoints(ctx context.Context, userID uint, points, cap int) (int, int, error) {
	var awarded, balance int
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stat, err := l.lockToday(tx, userID)
		if err != nil {
			return err
		}

		remaining := cap - stat.PostPointsEarned
		amount := min(points, remaining)
		if amount <= 0 {
			balance, err = credit(tx, userID, 0, ActionPostCreate)
			return err
		}

		if err := tx.Model(stat).
			UpdateColumn("post_points_earned", gorm.Expr("post_points_earned + ?", amount)).
			Error; err != nil {
			return err
		}
		balance, err = credit(tx, userID, amount, ActionPostCreate)
		if err == nil {
			awarded = amount
		}
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", ActionPostCreate, err)
	}
	metrics.PointsAwarded(ActionPostCreate, awarded)
	return awarded, balance, nil
}

// PostPointsFor 带资源链接的帖子 2 分，否则 1 分
func PostPointsFor(hasResources bool) int {
	if hasResources {
		return PointsPostWithResources
	}
	return PointsPost
}

// Spend 在调用方事务内扣积分：锁用户行，余额不足返回 ErrInsufficientBalance，
// 调用方返回该错误即整体回滚，不会出现只扣分或只改资料的情况。
func (l *Ledger) Spend(tx *gorm.DB, userID uint, cost int, action string) (int, error) {
	var u models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "activity_score").
		First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if cost <= 0 {
		return u.ActivityScore, nil
	}
	if u.ActivityScore < cost {
		return u.ActivityScore, ErrInsufficientBalance
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND activity_score >= ?", userID, cost).
		UpdateColumn("activity_score", gorm.Expr("activity_score - ?", cost))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return u.ActivityScore, ErrInsufficientBalance
	}

	balance := u.ActivityScore - cost
	entry := models.PointLog{UserID: userID, Amount: -cost, Action: action, Balance: balance}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, err
	}
	metrics.PointsSpent(action, cost)
	return balance, nil
}

// History 积分明细，按时间倒序
func (l *Ledger) History(ctx context.Context, userID uint, limit int) ([]models.PointLog, error) {
	var logs []models.PointLog
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// Today 当天积分状态，不存在时返回零值且不建行
func (l *Ledger) Today(ctx context.Context, userID uint) (models.DailyPointStat, error) {
	stat := models.DailyPointStat{UserID: userID, Day: l.clock.Today()}
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, stat.Day).
		Limit(1).
		Find(&stat).Error
	return stat, err
}

// bestEffort 内容事件触发的奖励失败只记日志，不影响主流程
func (l *Ledger) bestEffort(kind string, userID uint, fn func() error) {
	if err := fn(); err != nil {
		l.log.Warn("points award failed", zap.String("kind", kind), zap.Uint("user_id", userID), zap.Error(err))
	}
}
