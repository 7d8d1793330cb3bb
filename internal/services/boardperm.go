package services

import (
	"context"
	"fmt"

	"plforum/internal/models"

	"gorm.io/gorm"
)

// BoardAction 板块级操作
type BoardAction string

const (
	BoardModerate BoardAction = "moderate"
	BoardDelete   BoardAction = "delete"
)

func (a BoardAction) column() string {
	if a == BoardDelete {
		return "can_delete"
	}
	return "can_moderate"
}

// BoardGrant 保存权限时的一项输入
type BoardGrant struct {
	BoardID     uint `json:"board_id"`
	CanModerate bool `json:"can_moderate"`
	CanDelete   bool `json:"can_delete"`
}

// BoardPermissions 版主板块权限判定。
// 超级管理员恒为 true，非版主恒为 false，未开启 scoped 的版主可管理所有板块，
// 开启后只能管理有对应授权行的板块。
type BoardPermissions struct {
	db *gorm.DB
}

func NewBoardPermissions(db *gorm.DB) *BoardPermissions {
	return &BoardPermissions{db: db}
}

func (p *BoardPermissions) CanModerate(ctx context.Context, u *models.User, boardID uint) (bool, error) {
	return p.Can(ctx, u, boardID, BoardModerate)
}

func (p *BoardPermissions) CanDelete(ctx context.Context, u *models.User, boardID uint) (bool, error) {
	return p.Can(ctx, u, boardID, BoardDelete)
}

// Can 查询出错时按拒绝处理并返回错误
func (p *BoardPermissions) Can(ctx context.Context, u *models.User, boardID uint, action BoardAction) (bool, error) {
	if u == nil || boardID == 0 {
		return false, nil
	}
	if u.IsSuperuser {
		return true, nil
	}
	if !u.IsStaff {
		return false, nil
	}
	if !u.StaffBoardScoped {
		return true, nil
	}

	var count int64
	err := p.db.WithContext(ctx).Model(&models.StaffBoardPermission{}).
		Where("user_id = ? AND board_id = ? AND "+action.column()+" = ?", u.ID, boardID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AllowedBoardIDs scoped 版主可操作的板块 ID 列表。
// 对超级管理员、非版主、未 scoped 的版主返回空，调用方应先判断 IsScoped。
func (p *BoardPermissions) AllowedBoardIDs(ctx context.Context, u *models.User, action BoardAction) ([]uint, error) {
	if !IsScoped(u) {
		return []uint{}, nil
	}
	ids := []uint{}
	err := p.db.WithContext(ctx).Model(&models.StaffBoardPermission{}).
		Where("user_id = ? AND "+action.column()+" = ?", u.ID, true).
		Order("board_id").
		Pluck("board_id", &ids).Error
	return ids, err
}

// IsScoped 是否为受板块范围限制的版主
func IsScoped(u *models.User) bool {
	return u != nil && u.IsStaff && !u.IsSuperuser && u.StaffBoardScoped
}

// List 某用户当前的授权行
func (p *BoardPermissions) List(ctx context.Context, userID uint) ([]models.StaffBoardPermission, error) {
	var rows []models.StaffBoardPermission
	err := p.db.WithContext(ctx).Where("user_id = ?", userID).Order("board_id").Find(&rows).Error
	return rows, err
}

// Replace 整体替换：同一事务内更新 scoped 标记、删除全部旧行、批量插入新行。
// 不存在的板块忽略，不授予任何权限的项不保存，重复的板块 ID 取并集。
func (p *BoardPermissions) Replace(tx *gorm.DB, userID uint, scoped bool, grants []BoardGrant) ([]models.StaffBoardPermission, error) {
	merged := make(map[uint]*BoardGrant)
	var order []uint
	for _, g := range grants {
		if g.BoardID == 0 || (!g.CanModerate && !g.CanDelete) {
			continue
		}
		if m, ok := merged[g.BoardID]; ok {
			m.CanModerate = m.CanModerate || g.CanModerate
			m.CanDelete = m.CanDelete || g.CanDelete
			continue
		}
		cp := g
		merged[g.BoardID] = &cp
		order = append(order, g.BoardID)
	}

	var existing []uint
	if len(order) > 0 {
		if err := tx.Model(&models.Board{}).Where("id IN ?", order).Pluck("id", &existing).Error; err != nil {
			return nil, err
		}
	}
	known := make(map[uint]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("staff_board_scoped", scoped).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.StaffBoardPermission{}).Error; err != nil {
		return nil, err
	}

	rows := make([]models.StaffBoardPermission, 0, len(order))
	for _, id := range order {
		if !known[id] {
			continue
		}
		g := merged[id]
		rows = append(rows, models.StaffBoardPermission{
			UserID:      userID,
			BoardID:     id,
			CanModerate: g.CanModerate,
			CanDelete:   g.CanDelete,
		})
	}
	if len(rows) > 0 {
		if err := tx.Create(&rows).Error; err != nil {
			return nil, fmt.Errorf("insert board permissions: %w", err)
		}
	}
	return rows, nil
}
