package services

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockDayRow 取 (user, day) 统计行并加行锁：不存在先插入（冲突忽略），再在锁下重新读取。
// 同一用户同一天的并发请求在这里串行化。
func lockDayRow[T any](tx *gorm.DB, seed *T, userID uint, day string) (*T, error) {
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoNothing: true,
	}).Create(seed).Error; err != nil {
		return nil, err
	}

	var row T
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND day = ?", userID, day).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
