package services

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"plforum/internal/metrics"
	"plforum/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 审计动作
const (
	AuditUserBan          = "user.ban"
	AuditUserUnban        = "user.unban"
	AuditUserMute         = "user.mute"
	AuditUserUnmute       = "user.unmute"
	AuditUserGrantStaff   = "user.grant_staff"
	AuditUserRevokeStaff  = "user.revoke_staff"
	AuditUserBoardPerms   = "user.board_perms"
	AuditProfileNickname  = "user.nickname.update"
	AuditProfileUsername  = "user.username.update"
	AuditProfileAvatar    = "user.avatar.update"
	AuditProfileBio       = "user.bio.update"
	AuditPasswordChange   = "user.password.change"
	AuditUserFollow       = "user.follow"
	AuditUserUnfollow     = "user.unfollow"
	AuditUserRegister     = "user.register"
	AuditPostCreate       = "post.create"
	AuditPostUpdate       = "post.update"
	AuditPostFlags        = "post.flags"
	AuditPostLike         = "post.like"
	AuditPostUnlike       = "post.unlike"
	AuditPostFavorite     = "post.favorite"
	AuditPostUnfavorite   = "post.unfavorite"
	AuditPostApprove      = "post.approve"
	AuditPostReject       = "post.reject"
	AuditPostDelete       = "post.delete"
	AuditCommentCreate    = "comment.create"
	AuditCommentDelete    = "comment.delete"
	AuditPointsCheckIn    = "points.checkin"
	AuditPointsPost       = "points.post"
	AuditPointsComment    = "points.comment.first"
	AuditPointsFavorite   = "points.favorite.first"
	AuditDownloadConsume  = "download.consume"
	AuditRBACPolicyAdd    = "rbac.policy_add"
	AuditRBACPolicyRemove = "rbac.policy_remove"
	AuditRBACRoleAdd      = "rbac.role_add"
	AuditRBACRoleRemove   = "rbac.role_remove"
	AuditPunishmentSweep  = "system.punishment_sweep"
)

const (
	auditFetchLimit  = 400
	auditResultLimit = 200
)

// AuditEntry 一条待写入的审计记录
type AuditEntry struct {
	Actor      *models.User
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]interface{}
	Meta       RequestMeta
}

// AuditTrail 审计日志：写入尽力而为，同时是年度次数限制的数据来源
type AuditTrail struct {
	db            *gorm.DB
	clock         Clock
	log           *zap.Logger
	boards        *BoardPermissions
	retentionDays int
}

func NewAuditTrail(db *gorm.DB, clock Clock, boards *BoardPermissions, retentionDays int, log *zap.Logger) *AuditTrail {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &AuditTrail{db: db, clock: clock, boards: boards, retentionDays: retentionDays, log: orNop(log)}
}

func (a *AuditTrail) newRow(e AuditEntry) *models.AuditLog {
	row := &models.AuditLog{
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		IP:         truncate(e.Meta.IP, 64),
		UserAgent:  truncate(e.Meta.UserAgent, 300),
		Metadata:   datatypes.JSONMap(e.Metadata),
		CreatedAt:  a.clock.now().UTC(),
	}
	if row.Metadata == nil {
		row.Metadata = datatypes.JSONMap{}
	}
	if e.Actor != nil && e.Actor.ID != 0 {
		id := e.Actor.ID
		row.ActorID = &id
	}
	return row
}

// Write 在主事务之外写入，失败只记录日志，不返回错误
func (a *AuditTrail) Write(ctx context.Context, e AuditEntry) {
	if err := a.db.WithContext(ctx).Omit("Actor").Create(a.newRow(e)).Error; err != nil {
		metrics.AuditWriteFailed()
		a.log.Warn("audit write failed",
			zap.String("action", e.Action),
			zap.String("target_type", e.TargetType),
			zap.String("target_id", e.TargetID),
			zap.Error(err),
		)
	}
}

// writeIn 在调用方事务内写入，用于本身就是次数计数的记录，失败时整个事务回滚
func (a *AuditTrail) writeIn(tx *gorm.DB, e AuditEntry) error {
	return tx.Omit("Actor").Create(a.newRow(e)).Error
}

// countThisYear actor 在本地时区当年执行 action 的次数，在调用方事务内查询
func (a *AuditTrail) countThisYear(db *gorm.DB, actorID uint, action string) (int64, error) {
	start, end := a.clock.YearWindow()
	var count int64
	err := db.Model(&models.AuditLog{}).
		Where("actor_id = ? AND action = ? AND created_at >= ? AND created_at < ?", actorID, action, start, end).
		Count(&count).Error
	return count, err
}

// AuditFilter 审计列表过滤条件
type AuditFilter struct {
	IncludeArchived bool
	ActorID         uint
	ActorUsername   string
	Actor           string // 用户名或数字 ID
	Action          string
}

// List 审计列表。默认只看最近 retentionDays 天，归档记录仅超级管理员可见。
// 非超级管理员只能看到自己的记录，以及能解析到其有权限板块的记录。
func (a *AuditTrail) List(ctx context.Context, viewer *models.User, f AuditFilter) ([]models.AuditLog, error) {
	if f.IncludeArchived && !viewer.IsSuperuser {
		return nil, ErrPermissionDenied
	}

	q := a.db.WithContext(ctx).Preload("Actor").Order("created_at DESC").Order("id DESC")
	if !f.IncludeArchived {
		since := a.clock.now().UTC().AddDate(0, 0, -a.retentionDays)
		q = q.Where("created_at >= ?", since)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}

	switch {
	case f.ActorID != 0:
		q = q.Where("actor_id = ?", f.ActorID)
	case f.ActorUsername != "":
		q = q.Where("actor_id IN (?)", a.db.WithContext(ctx).Model(&models.User{}).Select("id").
			Where("username = ?", models.NormalizeUsername(f.ActorUsername)))
	case f.Actor != "":
		if id, err := strconv.ParseUint(f.Actor, 10, 64); err == nil {
			q = q.Where("actor_id = ?", id)
		} else {
			q = q.Where("actor_id IN (?)", a.db.WithContext(ctx).Model(&models.User{}).Select("id").
				Where("username = ?", models.NormalizeUsername(f.Actor)))
		}
	}

	var logs []models.AuditLog
	if err := q.Limit(auditFetchLimit).Find(&logs).Error; err != nil {
		return nil, err
	}

	if !viewer.IsSuperuser {
		var err error
		logs, err = a.filterVisible(ctx, viewer, logs)
		if err != nil {
			return nil, err
		}
	}
	if len(logs) > auditResultLimit {
		logs = logs[:auditResultLimit]
	}
	return logs, nil
}

func (a *AuditTrail) filterVisible(ctx context.Context, viewer *models.User, logs []models.AuditLog) ([]models.AuditLog, error) {
	// nil 表示可见所有板块（未 scoped 的版主）
	var allowed map[uint]bool
	if IsScoped(viewer) {
		allowed = make(map[uint]bool)
		for _, action := range []BoardAction{BoardModerate, BoardDelete} {
			ids, err := a.boards.AllowedBoardIDs(ctx, viewer, action)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				allowed[id] = true
			}
		}
	} else if !viewer.IsStaff {
		allowed = map[uint]bool{}
	}

	resolve, err := a.boardResolver(ctx, logs)
	if err != nil {
		return nil, err
	}

	out := logs[:0:0]
	for _, l := range logs {
		if l.ActorID != nil && *l.ActorID == viewer.ID {
			out = append(out, l)
			continue
		}
		bid, ok := resolve(l)
		if !ok {
			continue
		}
		if allowed == nil || allowed[bid] {
			out = append(out, l)
		}
	}
	return out, nil
}

// boardResolver 批量查询帖子/评论/资源所属板块，返回单条日志的板块解析函数
func (a *AuditTrail) boardResolver(ctx context.Context, logs []models.AuditLog) (func(models.AuditLog) (uint, bool), error) {
	var postIDs, commentIDs, linkIDs []uint
	for _, l := range logs {
		if id, ok := parseID(l.TargetID); ok {
			switch l.TargetType {
			case "post":
				postIDs = append(postIDs, id)
			case "comment":
				commentIDs = append(commentIDs, id)
			case "resource":
				linkIDs = append(linkIDs, id)
			}
		}
		if id, ok := metaID(l.Metadata, "post_id"); ok {
			postIDs = append(postIDs, id)
		}
		if id, ok := metaID(l.Metadata, "resource_id"); ok {
			linkIDs = append(linkIDs, id)
		}
	}

	db := a.db.WithContext(ctx)
	type pair struct {
		ID    uint
		Owner uint
	}
	load := func(model interface{}, col string, ids []uint) (map[uint]uint, error) {
		m := make(map[uint]uint)
		if len(ids) == 0 {
			return m, nil
		}
		var rows []pair
		if err := db.Model(model).Select("id AS id, "+col+" AS owner").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			m[r.ID] = r.Owner
		}
		return m, nil
	}

	commentPost, err := load(&models.Comment{}, "post_id", commentIDs)
	if err != nil {
		return nil, err
	}
	linkPost, err := load(&models.ResourceLink{}, "post_id", linkIDs)
	if err != nil {
		return nil, err
	}
	for _, pid := range commentPost {
		postIDs = append(postIDs, pid)
	}
	for _, pid := range linkPost {
		postIDs = append(postIDs, pid)
	}
	postBoard, err := load(&models.Post{}, "board_id", postIDs)
	if err != nil {
		return nil, err
	}

	viaPost := func(pid uint, ok bool) (uint, bool) {
		if !ok {
			return 0, false
		}
		bid, found := postBoard[pid]
		return bid, found
	}

	return func(l models.AuditLog) (uint, bool) {
		if bid, ok := metaID(l.Metadata, "board_id"); ok {
			return bid, true
		}
		if id, ok := parseID(l.TargetID); ok {
			switch l.TargetType {
			case "post":
				return viaPost(id, true)
			case "comment":
				pid, found := commentPost[id]
				return viaPost(pid, found)
			case "resource":
				pid, found := linkPost[id]
				return viaPost(pid, found)
			}
		}
		if id, ok := metaID(l.Metadata, "post_id"); ok {
			return viaPost(id, true)
		}
		if id, ok := metaID(l.Metadata, "resource_id"); ok {
			pid, found := linkPost[id]
			return viaPost(pid, found)
		}
		return 0, false
	}, nil
}

func parseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// metaID 从库里读回的 JSONMap 数字是 json.Number，刚写入未落库的是 int/uint，也兼容字符串形式
func metaID(m datatypes.JSONMap, key string) (uint, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		if x <= 0 || x != float64(uint(x)) {
			return 0, false
		}
		return uint(x), true
	case int:
		if x <= 0 {
			return 0, false
		}
		return uint(x), true
	case uint:
		return x, x > 0
	case json.Number:
		n, err := x.Int64()
		if err != nil || n <= 0 {
			return 0, false
		}
		return uint(n), true
	case string:
		return parseID(x)
	}
	return 0, false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// untilISO 审计元数据中的到期时间
func untilISO(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
