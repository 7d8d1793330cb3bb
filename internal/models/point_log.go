package models

import (
	"time"
)

// PointLog 积分明细，与余额变动在同一事务内写入
type PointLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Amount    int       `gorm:"not null" json:"amount"`          // 正数为增加，负数为扣除
	Action    string    `gorm:"size:100;not null" json:"action"` // 动作标识，如 points.checkin
	Balance   int       `gorm:"not null" json:"balance"`         // 变动后余额
	CreatedAt time.Time `json:"created_at"`
}
