package utils

import (
	"fmt"
	"math"
)

type RankConfig struct {
	ViewsPerPoint  int // 每 100 次浏览计 1 分
	WeightLike     int // 2
	WeightFavorite int // 3
	WeightComment  int // 2
	DefaultDays    int // 热门窗口默认 7 天
	MaxDays        int // 最长 30 天
	ScaleFactor    int // 排行榜归一化上限 (100)
}

var DefaultRankConfig = RankConfig{
	ViewsPerPoint:  100,
	WeightLike:     2,
	WeightFavorite: 3,
	WeightComment:  2,
	DefaultDays:    7,
	MaxDays:        30,
	ScaleFactor:    100,
}

// WindowDays 把请求的天数夹到 [1, MaxDays]，0 表示默认
func (c RankConfig) WindowDays(days int) int {
	if days == 0 {
		return c.DefaultDays
	}
	return ClampInt(days, 1, c.MaxDays)
}

// ScoreSQL 热度分的 SQL 表达式。浏览数是累计值，互动数只算窗口内的。
// 参数是各计数的 SQL 子表达式
func (c RankConfig) ScoreSQL(views, likes, favorites, comments string) string {
	return fmt.Sprintf("((%s) / %d + %d * (%s) + %d * (%s) + %d * (%s))",
		views, c.ViewsPerPoint,
		c.WeightLike, likes,
		c.WeightFavorite, favorites,
		c.WeightComment, comments)
}

// HotScore 与 ScoreSQL 同一公式
func (c RankConfig) HotScore(views, likes, favorites, comments int) int {
	return views/c.ViewsPerPoint + c.WeightLike*likes + c.WeightFavorite*favorites + c.WeightComment*comments
}

// Normalize 以本组最高分为 ScaleFactor 线性缩放，负数按 0 处理
func (c RankConfig) Normalize(raw []int) []int {
	top := 0
	for _, v := range raw {
		top = max(top, v)
	}
	out := make([]int, len(raw))
	if top == 0 {
		return out
	}
	for i, v := range raw {
		v = max(v, 0)
		out[i] = ClampInt(int(math.Round(float64(c.ScaleFactor)*float64(v)/float64(top))), 0, c.ScaleFactor)
	}
	return out
}
