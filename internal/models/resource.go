package models

import (
	"time"
)

// ResourceLink 帖子附带的资源链接（网盘地址等），随帖子一起审核发布
type ResourceLink struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Title     string    `gorm:"size:200;not null;default:''" json:"title"`
	URL       string    `gorm:"size:1000;not null" json:"-"` // 仅下载接口返回
	Code      string    `gorm:"size:50;not null;default:''" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// DownloadEvent 每次成功获取资源地址记一条
type DownloadEvent struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	UserID    uint         `gorm:"not null;index" json:"user_id"`
	User      User         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	LinkID    uint         `gorm:"not null;index" json:"link_id"`
	Link      ResourceLink `gorm:"foreignKey:LinkID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	IP        string       `gorm:"size:64;not null;default:''" json:"ip"`
	CreatedAt time.Time    `json:"created_at"`
}
