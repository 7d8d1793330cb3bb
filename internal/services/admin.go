package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"plforum/internal/models"
	"plforum/internal/rbac"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RBACSubjects 撤销版主时删除该用户在 RBAC 中的直接规则与角色分配
type RBACSubjects interface {
	DeleteSubject(ctx context.Context, sub string) error
}

// AdminService 后台用户管理。所有对其他用户的修改先过等级校验。
type AdminService struct {
	db       *gorm.DB
	clock    Clock
	log      *zap.Logger
	audit    *AuditTrail
	boards   *BoardPermissions
	subjects RBACSubjects
}

func NewAdminService(db *gorm.DB, clock Clock, audit *AuditTrail, boards *BoardPermissions, log *zap.Logger) *AdminService {
	return &AdminService{db: db, clock: clock, audit: audit, boards: boards, log: orNop(log)}
}

// PunishInput 封禁/禁言参数，Days 为空表示永久
type PunishInput struct {
	Reason string `json:"reason"`
	Days   *int   `json:"days"`
}

const maxListedUsers = 200

// ListUsers 超级管理员看到全部，版主只看到普通用户
func (s *AdminService) ListUsers(ctx context.Context, viewer *models.User) ([]models.User, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(maxListedUsers)
	if !viewer.IsSuperuser {
		q = q.Where("is_staff = ? AND is_superuser = ?", false, false)
	}
	var users []models.User
	err := q.Find(&users).Error
	return users, err
}

func (s *AdminService) loadTarget(ctx context.Context, actor *models.User, targetID uint) (*models.User, error) {
	var target models.User
	if err := s.db.WithContext(ctx).First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := AssertCanManage(actor, &target); err != nil {
		return nil, err
	}
	return &target, nil
}

func (s *AdminService) until(days *int) *time.Time {
	if days == nil {
		return nil
	}
	t := s.clock.now().UTC().AddDate(0, 0, max(*days, 0))
	return &t
}

func (s *AdminService) writeUser(ctx context.Context, target *models.User, fields map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", target.ID).Updates(fields).Error
}

func (s *AdminService) reload(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *AdminService) auditUser(ctx context.Context, actor *models.User, action string, target *models.User, meta RequestMeta, extra map[string]interface{}) {
	s.audit.Write(ctx, AuditEntry{
		Actor:      actor,
		Action:     action,
		TargetType: "user",
		TargetID:   strconv.FormatUint(uint64(target.ID), 10),
		Metadata:   extra,
		Meta:       meta,
	})
}

func (s *AdminService) Ban(ctx context.Context, actor *models.User, targetID uint, in PunishInput, meta RequestMeta) (*models.User, error) {
	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	reason := truncate(in.Reason, 200)
	until := s.until(in.Days)
	if err := s.writeUser(ctx, target, map[string]interface{}{
		"is_banned":    true,
		"banned_until": until,
		"ban_reason":   reason,
	}); err != nil {
		return nil, fmt.Errorf("ban user: %w", err)
	}
	s.auditUser(ctx, actor, AuditUserBan, target, meta, map[string]interface{}{"until": untilISO(until), "reason": reason})
	return s.reload(ctx, target.ID)
}

func (s *AdminService) Unban(ctx context.Context, actor *models.User, targetID uint, meta RequestMeta) (*models.User, error) {
	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.writeUser(ctx, target, map[string]interface{}{
		"is_banned":    false,
		"banned_until": nil,
		"ban_reason":   "",
	}); err != nil {
		return nil, fmt.Errorf("unban user: %w", err)
	}
	s.auditUser(ctx, actor, AuditUserUnban, target, meta, nil)
	return s.reload(ctx, target.ID)
}

func (s *AdminService) Mute(ctx context.Context, actor *models.User, targetID uint, in PunishInput, meta RequestMeta) (*models.User, error) {
	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	reason := truncate(in.Reason, 200)
	until := s.until(in.Days)
	if err := s.writeUser(ctx, target, map[string]interface{}{
		"is_muted":    true,
		"muted_until": until,
		"mute_reason": reason,
	}); err != nil {
		return nil, fmt.Errorf("mute user: %w", err)
	}
	s.auditUser(ctx, actor, AuditUserMute, target, meta, map[string]interface{}{"until": untilISO(until), "reason": reason})
	return s.reload(ctx, target.ID)
}

func (s *AdminService) Unmute(ctx context.Context, actor *models.User, targetID uint, meta RequestMeta) (*models.User, error) {
	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.writeUser(ctx, target, map[string]interface{}{
		"is_muted":    false,
		"muted_until": nil,
		"mute_reason": "",
	}); err != nil {
		return nil, fmt.Errorf("unmute user: %w", err)
	}
	s.auditUser(ctx, actor, AuditUserUnmute, target, meta, nil)
	return s.reload(ctx, target.ID)
}

// GrantStaff 仅超级管理员
func (s *AdminService) GrantStaff(ctx context.Context, actor *models.User, targetID uint, meta RequestMeta) (*models.User, error) {
	if !actor.IsSuperuser {
		return nil, ErrPermissionDenied
	}
	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.writeUser(ctx, target, map[string]interface{}{"is_staff": true}); err != nil {
		return nil, fmt.Errorf("grant staff: %w", err)
	}
	s.auditUser(ctx, actor, AuditUserGrantStaff, target, meta, nil)
	return s.reload(ctx, target.ID)
}

// RevokeStaff 仅超级管理员；不能撤销超级管理员的版主身份。同时清除该用户的 RBAC 直接授权
func (s *AdminService) RevokeStaff(ctx context.Context, actor *models.User, targetID uint, meta RequestMeta) (*models.User, error) {
	if !actor.IsSuperuser {
		return nil, ErrPermissionDenied
	}
	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	if target.IsSuperuser {
		return nil, invalid("user", "cannot revoke staff from a superuser")
	}
	var metadata map[string]interface{}
	if s.subjects != nil {
		sub := rbac.SubjectKey(target)
		if err := s.subjects.DeleteSubject(ctx, sub); err != nil {
			return nil, fmt.Errorf("revoke staff: rbac: %w", err)
		}
		metadata = map[string]interface{}{"rbac_subject": sub}
	}
	if err := s.writeUser(ctx, target, map[string]interface{}{"is_staff": false}); err != nil {
		return nil, fmt.Errorf("revoke staff: %w", err)
	}
	s.auditUser(ctx, actor, AuditUserRevokeStaff, target, meta, metadata)
	return s.reload(ctx, target.ID)
}

// BoardPermView 某板块上的授权状态
type BoardPermView struct {
	BoardID     uint   `json:"board_id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	CanModerate bool   `json:"can_moderate"`
	CanDelete   bool   `json:"can_delete"`
}

type BoardPermsView struct {
	StaffBoardScoped bool            `json:"staff_board_scoped"`
	Permissions      []BoardPermView `json:"permissions"`
}

// GetBoardPerms 列出所有板块及目标用户在其上的权限，仅超级管理员
func (s *AdminService) GetBoardPerms(ctx context.Context, actor *models.User, targetID uint) (*BoardPermsView, error) {
	if !actor.IsSuperuser {
		return nil, ErrPermissionDenied
	}
	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	return s.boardPermsView(ctx, target)
}

func (s *AdminService) boardPermsView(ctx context.Context, target *models.User) (*BoardPermsView, error) {
	var boards []models.Board
	if err := s.db.WithContext(ctx).Order("id").Find(&boards).Error; err != nil {
		return nil, err
	}
	rows, err := s.boards.List(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	byBoard := make(map[uint]models.StaffBoardPermission, len(rows))
	for _, r := range rows {
		byBoard[r.BoardID] = r
	}

	view := &BoardPermsView{StaffBoardScoped: target.StaffBoardScoped, Permissions: make([]BoardPermView, 0, len(boards))}
	for _, b := range boards {
		p := byBoard[b.ID]
		view.Permissions = append(view.Permissions, BoardPermView{
			BoardID:     b.ID,
			Slug:        b.Slug,
			Title:       b.Title,
			CanModerate: p.CanModerate,
			CanDelete:   p.CanDelete,
		})
	}
	return view, nil
}

// PutBoardPerms 整体替换目标用户的板块权限，仅超级管理员
func (s *AdminService) PutBoardPerms(ctx context.Context, actor *models.User, targetID uint, scoped bool, grants []BoardGrant, meta RequestMeta) (*BoardPermsView, error) {
	if !actor.IsSuperuser {
		return nil, ErrPermissionDenied
	}
	target, err := s.loadTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}

	var saved []models.StaffBoardPermission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		saved, err = s.boards.Replace(tx, target.ID, scoped, grants)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save board permissions: %w", err)
	}

	items := make([]map[string]interface{}, 0, len(saved))
	for _, p := range saved {
		items = append(items, map[string]interface{}{
			"board_id":     p.BoardID,
			"can_moderate": p.CanModerate,
			"can_delete":   p.CanDelete,
		})
	}
	s.auditUser(ctx, actor, AuditUserBoardPerms, target, meta, map[string]interface{}{
		"staff_board_scoped": scoped,
		"permissions":        items,
	})

	target.StaffBoardScoped = scoped
	return s.boardPermsView(ctx, target)
}
