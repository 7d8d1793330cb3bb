package utils

import (
	"time"
)

// GetUserLevel 根据积分余额返回等级，100 分以下为 0 级
func GetUserLevel(score int) int {
	switch {
	case score >= 5000:
		return 6
	case score >= 2000:
		return 5
	case score >= 800:
		return 4
	case score >= 300:
		return 3
	case score >= 100:
		return 2
	default:
		return 0
	}
}

// GetDaysSinceJoined 计算注册天数
func GetDaysSinceJoined(createdAt, now time.Time) int {
	return int(now.Sub(createdAt).Hours() / 24)
}
