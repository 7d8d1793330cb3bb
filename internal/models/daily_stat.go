package models

import (
	"time"
)

// 每用户每天一行，首次访问时惰性创建，永不删除。
// Day 为配置时区下的日历日期，格式 2006-01-02。

// DailyPointStat 每日积分状态：标记当天内一旦置为 true 不会回退，计数不超过上限
type DailyPointStat struct {
	ID                    uint   `gorm:"primaryKey" json:"id"`
	UserID                uint   `gorm:"not null;uniqueIndex:idx_point_user_day" json:"user_id"`
	User                  User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Day                   string `gorm:"size:10;not null;uniqueIndex:idx_point_user_day" json:"day"`
	PostPointsEarned      int    `gorm:"not null" json:"post_points_earned"`
	CheckedIn             bool   `gorm:"not null" json:"checked_in"`
	GotFirstCommentBonus  bool   `gorm:"not null" json:"got_first_comment_bonus"`
	GotFirstFavoriteBonus bool   `gorm:"not null" json:"got_first_favorite_bonus"`
}

// DailyDownloadStat 每日下载计数
type DailyDownloadStat struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"not null;uniqueIndex:idx_download_user_day" json:"user_id"`
	User   User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Day    string `gorm:"size:10;not null;uniqueIndex:idx_download_user_day" json:"day"`
	Count  int    `gorm:"not null" json:"count"`
}

// DailyLoginStat 登录日记录，用于累计登录天数
type DailyLoginStat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_login_user_day" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Day       string    `gorm:"size:10;not null;uniqueIndex:idx_login_user_day" json:"day"`
	CreatedAt time.Time `json:"created_at"`
}
