package models

import (
	"time"
)

type PostStatus string

const (
	PostStatusPending   PostStatus = "pending"
	PostStatusPublished PostStatus = "published"
	PostStatusRejected  PostStatus = "rejected"
)

type Post struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	UserID   uint       `gorm:"not null;index" json:"user_id"`
	User     User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	BoardID  uint       `gorm:"not null;index" json:"board_id"`
	Board    Board      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"board"`
	Title    string     `gorm:"size:200;not null" json:"title"`
	Content  string     `gorm:"type:text" json:"content"`
	Status   PostStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	IsLocked bool       `gorm:"not null;default:false" json:"is_locked"` // 锁定后不能评论
	IsPinned bool       `gorm:"not null;default:false" json:"is_pinned"`

	// 审核信息
	ReviewedByID *uint      `json:"reviewed_by_id"`
	ReviewedBy   *User      `gorm:"foreignKey:ReviewedByID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	ReviewedAt   *time.Time `json:"reviewed_at"`
	RejectReason string     `gorm:"size:200;not null;default:''" json:"reject_reason"`

	// 软删除：评论、资源链接、下载记录都保留
	IsDeleted   bool       `gorm:"not null;default:false;index" json:"-"`
	DeletedAt   *time.Time `json:"-"`
	DeletedByID *uint      `json:"-"`
	DeletedBy   *User      `gorm:"foreignKey:DeletedByID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`

	Views     int       `gorm:"default:0" json:"views"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 非数据库字段，用于查询时填充
	CommentCount  int    `gorm:"-" json:"comment_count"`
	LikeCount     int    `gorm:"-" json:"like_count"`
	FavoriteCount int    `gorm:"-" json:"favorite_count"`
	ContentHTML   string `gorm:"-" json:"content_html,omitempty"`
}

func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// PostRevision 发帖和每次编辑各存一份快照，序号在帖子内从 1 递增
type PostRevision struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_revision_post_seq" json:"post_id"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	EditorID  *uint     `json:"editor_id"`
	Editor    *User     `gorm:"foreignKey:EditorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	Sequence  int       `gorm:"not null;uniqueIndex:idx_revision_post_seq" json:"sequence"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
