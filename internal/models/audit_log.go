package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrAuditLogImmutable = errors.New("audit logs are append-only")

// AuditLog 特权操作审计记录，只追加不修改。
// 用户被删除时 ActorID 置空，记录保留。
type AuditLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    *uint             `gorm:"index:idx_audit_actor_action,priority:1" json:"actor_id"`
	Actor      *User             `gorm:"foreignKey:ActorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"actor,omitempty"`
	Action     string            `gorm:"size:80;not null;index:idx_audit_actor_action,priority:2;index:idx_audit_action_created,priority:1" json:"action"`
	TargetType string            `gorm:"size:80;not null;default:'';index:idx_audit_target,priority:1" json:"target_type"`
	TargetID   string            `gorm:"size:80;not null;default:'';index:idx_audit_target,priority:2" json:"target_id"`
	IP         string            `gorm:"size:64;not null;default:''" json:"ip"`
	UserAgent  string            `gorm:"size:300;not null;default:''" json:"user_agent"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	CreatedAt  time.Time         `gorm:"not null;index;index:idx_audit_action_created,priority:2" json:"created_at"`
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditLogImmutable
}
