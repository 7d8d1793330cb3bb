package models

import (
	"time"
)

// 公告板块只允许版主发帖
const AnnouncementsBoardSlug = "announcements"

type Board struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Slug        string    `gorm:"uniqueIndex;size:50;not null" json:"slug"`
	Title       string    `gorm:"size:100;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StaffBoardPermission 版主的板块级权限，仅在 User.StaffBoardScoped 为 true 时生效。
// 每个 (user, board) 最多一行，不授予任何权限的行不会被保存。
type StaffBoardPermission struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_staff_board" json:"user_id"`
	User        User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	BoardID     uint      `gorm:"not null;uniqueIndex:idx_staff_board;index" json:"board_id"`
	Board       Board     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CanModerate bool      `gorm:"not null;default:false" json:"can_moderate"`
	CanDelete   bool      `gorm:"not null;default:false" json:"can_delete"`
	CreatedAt   time.Time `json:"created_at"`
}

// BoardFollow 关注板块
type BoardFollow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BoardID   uint      `gorm:"not null;uniqueIndex:idx_board_follow" json:"board_id"`
	Board     Board     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_board_follow;index" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFollow 关注用户
type UserFollow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;uniqueIndex:idx_user_follow" json:"follower_id"`
	Follower    User      `gorm:"foreignKey:FollowerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	FollowingID uint      `gorm:"not null;uniqueIndex:idx_user_follow;index" json:"following_id"`
	Following   User      `gorm:"foreignKey:FollowingID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
