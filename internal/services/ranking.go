package services

import (
	"context"
	"strings"
	"time"

	"plforum/internal/models"

	"gorm.io/gorm"
)

const (
	RankingWeek  = "week"
	RankingMonth = "month"
)

var rankingWindows = map[string]int{RankingWeek: 7, RankingMonth: 30}

// HotPost 热门/排行条目。HotScore100 仅排行榜返回
type HotPost struct {
	*models.Post
	HotScore    int  `json:"hot_score"`
	HotScore100 *int `json:"hot_score_100,omitempty"`
}

type HotFilter struct {
	Days     int // 1-30，默认 7
	Page     int
	PageSize int
}

type RankingFilter struct {
	Range     string // week | month
	BoardSlug string
	End       time.Time // 窗口结束时间，默认当前
	Page      int
	PageSize  int
}

// HotPosts 近 N 天互动热度排序的已发布帖子
func (s *ForumService) HotPosts(ctx context.Context, f HotFilter) ([]HotPost, int64, error) {
	since := s.clock.now().UTC().AddDate(0, 0, -s.rank.WindowDays(f.Days))
	return s.ranked(ctx, s.rankable(ctx), since, f.Page, f.PageSize)
}

// Rankings 周榜/月榜，可按板块过滤；分数按本页最高分归一化到 0-100
func (s *ForumService) Rankings(ctx context.Context, f RankingFilter) ([]HotPost, int64, error) {
	key := strings.ToLower(strings.TrimSpace(f.Range))
	if key == "" {
		key = RankingWeek
	}
	days, ok := rankingWindows[key]
	if !ok {
		return nil, 0, invalid("range", "must be week or month")
	}
	end := f.End
	if end.IsZero() {
		end = s.clock.now()
	}
	since := end.UTC().AddDate(0, 0, -days)

	q := s.rankable(ctx)
	if slug := strings.TrimSpace(f.BoardSlug); slug != "" {
		q = q.Where("board_id IN (?)", s.db.WithContext(ctx).Model(&models.Board{}).Select("id").Where("slug = ?", slug))
	}
	items, total, err := s.ranked(ctx, q, since, f.Page, f.PageSize)
	if err != nil {
		return nil, 0, err
	}
	raw := make([]int, len(items))
	for i := range items {
		raw[i] = items[i].HotScore
	}
	for i, v := range s.rank.Normalize(raw) {
		items[i].HotScore100 = &v
	}
	return items, total, nil
}

func (s *ForumService) rankable(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Post{}).
		Where("status = ? AND is_deleted = ?", models.PostStatusPublished, false)
}

// ranked 互动只统计 since 之后的点赞、收藏、未删除评论；浏览数用累计值
func (s *ForumService) ranked(ctx context.Context, q *gorm.DB, since time.Time, page, pageSize int) ([]HotPost, int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	inner := q.Select("posts.id, posts.views, posts.created_at, "+
		"(SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id AND post_likes.created_at >= ?) AS hot_likes, "+
		"(SELECT COUNT(*) FROM post_favorites WHERE post_favorites.post_id = posts.id AND post_favorites.created_at >= ?) AS hot_favorites, "+
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_deleted = false AND comments.created_at >= ?) AS hot_comments",
		since, since, since)

	type scoreRow struct {
		ID           uint
		Views        int
		HotLikes     int
		HotFavorites int
		HotComments  int
	}
	offset, limit := paging(page, pageSize)
	var rows []scoreRow
	err := s.db.WithContext(ctx).Table("(?) AS ranked", inner).
		Order(s.rank.ScoreSQL("views", "hot_likes", "hot_favorites", "hot_comments") + " DESC").
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return []HotPost{}, total, nil
	}

	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var posts []models.Post
	if err := s.db.WithContext(ctx).Preload("User").Preload("Board").Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	byID := make(map[uint]*models.Post, len(posts))
	for i := range posts {
		byID[posts[i].ID] = &posts[i]
	}

	items := make([]HotPost, 0, len(rows))
	ptrs := make([]*models.Post, 0, len(rows))
	for _, r := range rows {
		p, ok := byID[r.ID]
		if !ok {
			continue
		}
		items = append(items, HotPost{Post: p, HotScore: s.rank.HotScore(r.Views, r.HotLikes, r.HotFavorites, r.HotComments)})
		ptrs = append(ptrs, p)
	}
	if err := s.fillCounts(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
