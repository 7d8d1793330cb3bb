package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Pid      string `gorm:"uniqueIndex;size:8;not null" json:"pid"`       // 8 位数字公开 ID，可含前导 0
	Username string `gorm:"uniqueIndex;size:21;not null" json:"username"` // @handle，统一小写存储
	Password string `gorm:"not null" json:"-"`                            // bcrypt hash
	Nickname string `gorm:"size:20;not null;default:''" json:"nickname"`  // 展示名，可重复
	Bio      string `gorm:"size:200;not null;default:''" json:"bio"`      // 个人简介
	Avatar   string `gorm:"size:500;not null;default:''" json:"avatar"`   // 头像地址，首次设置免费

	// 积分余额（PLCoin），永不为负
	ActivityScore int `gorm:"not null;default:0;check:activity_score >= 0" json:"activity_score"`

	IsStaff     bool `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser bool `gorm:"not null;default:false" json:"is_superuser"`

	// 封禁：标记 + 可选到期时间，过期后不会自动清除，读取时惰性判断
	IsBanned    bool       `gorm:"not null;default:false" json:"is_banned"`
	BannedUntil *time.Time `json:"banned_until"`
	BanReason   string     `gorm:"size:200;not null;default:''" json:"ban_reason"`

	// 禁言：可以浏览，不能发帖/评论/上传资源
	IsMuted    bool       `gorm:"not null;default:false" json:"is_muted"`
	MutedUntil *time.Time `json:"muted_until"`
	MuteReason string     `gorm:"size:200;not null;default:''" json:"mute_reason"`

	// false: 版主沿用旧行为，可管理所有板块；true: 只能管理被显式授权的板块
	StaffBoardScoped bool `gorm:"not null;default:false" json:"staff_board_scoped"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether a flag with an optional expiry is in effect at now.
func IsActive(flag bool, until *time.Time, now time.Time) bool {
	if !flag {
		return false
	}
	return until == nil || until.After(now)
}

// IsCurrentlyBanned 封禁是否生效
func (u *User) IsCurrentlyBanned(now time.Time) bool {
	return IsActive(u.IsBanned, u.BannedUntil, now)
}

// IsCurrentlyMuted 禁言是否生效
func (u *User) IsCurrentlyMuted(now time.Time) bool {
	return IsActive(u.IsMuted, u.MutedUntil, now)
}

// DisplayName 优先昵称
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

// NormalizeUsername lowercases a handle and ensures the leading '@'.
func NormalizeUsername(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s != "" && !strings.HasPrefix(s, "@") {
		s = "@" + s
	}
	return s
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Pid == "" {
		pid, err := generatePid()
		if err != nil {
			return err
		}
		u.Pid = pid
	}
	return nil
}

// BeforeSave keeps is_superuser => is_staff and the lowercase handle.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.IsSuperuser {
		u.IsStaff = true
	}
	if u.Username != "" {
		u.Username = NormalizeUsername(u.Username)
	}
	return nil
}

func generatePid() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}
