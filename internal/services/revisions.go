package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plforum/internal/models"

	"github.com/pmezard/go-difflib/difflib"
	"gorm.io/gorm"
)

// addRevision 在调用方事务内追加快照。编辑时帖子行已被 UPDATE 锁住，序号不会并发重复
func addRevision(tx *gorm.DB, p *models.Post, editorID uint) error {
	var last int
	if err := tx.Model(&models.PostRevision{}).Where("post_id = ?", p.ID).
		Select("COALESCE(MAX(sequence), 0)").Scan(&last).Error; err != nil {
		return err
	}
	rev := models.PostRevision{
		PostID:   p.ID,
		EditorID: &editorID,
		Sequence: last + 1,
		Title:    p.Title,
		Content:  p.Content,
	}
	return tx.Omit("Post", "Editor").Create(&rev).Error
}

// moderatable 版主且对帖子所在板块有审核权限
func (s *ForumService) moderatable(ctx context.Context, user *models.User, postID uint) (*models.Post, error) {
	if user == nil || !user.IsStaff {
		return nil, ErrPermissionDenied
	}
	p, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := s.boards.CanModerate(ctx, user, p.BoardID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	return p, nil
}

type RevisionSummary struct {
	ID             uint      `json:"id"`
	Sequence       int       `json:"sequence"`
	EditorUsername string    `json:"editor_username"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListRevisions 版本列表，按序号升序
func (s *ForumService) ListRevisions(ctx context.Context, user *models.User, postID uint) ([]RevisionSummary, error) {
	p, err := s.moderatable(ctx, user, postID)
	if err != nil {
		return nil, err
	}
	var revs []models.PostRevision
	if err := s.db.WithContext(ctx).Preload("Editor").Where("post_id = ?", p.ID).
		Order("sequence").Find(&revs).Error; err != nil {
		return nil, err
	}
	out := make([]RevisionSummary, 0, len(revs))
	for _, r := range revs {
		sum := RevisionSummary{ID: r.ID, Sequence: r.Sequence, CreatedAt: r.CreatedAt}
		if r.Editor != nil {
			sum.EditorUsername = r.Editor.Username
		}
		out = append(out, sum)
	}
	return out, nil
}

type RevisionDiff struct {
	FromRevisionID *uint  `json:"from_revision_id"`
	ToRevisionID   uint   `json:"to_revision_id"`
	TitleDiff      string `json:"title_diff"`
	BodyDiff       string `json:"body_diff"`
}

// RevisionDiff 与上一版本的 unified diff；第一个版本与空内容比较
func (s *ForumService) RevisionDiff(ctx context.Context, user *models.User, postID, revID uint) (*RevisionDiff, error) {
	p, err := s.moderatable(ctx, user, postID)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var rev models.PostRevision
	if err := db.Where("id = ? AND post_id = ?", revID, p.ID).First(&rev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var prev models.PostRevision
	err = db.Where("post_id = ? AND sequence < ?", p.ID, rev.Sequence).Order("sequence DESC").First(&prev).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	out := &RevisionDiff{ToRevisionID: rev.ID}
	if prev.ID != 0 {
		out.FromRevisionID = &prev.ID
	}
	to := fmt.Sprintf("rev %d", rev.Sequence)
	if out.TitleDiff, err = unifiedDiff(prev.Title, rev.Title, "title(prev)", "title("+to+")"); err != nil {
		return nil, err
	}
	if out.BodyDiff, err = unifiedDiff(prev.Content, rev.Content, "body(prev)", "body("+to+")"); err != nil {
		return nil, err
	}
	return out, nil
}

func unifiedDiff(a, b, from, to string) (string, error) {
	split := func(s string) []string {
		if s == "" {
			return nil
		}
		return difflib.SplitLines(s)
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        split(a),
		B:        split(b),
		FromFile: from,
		ToFile:   to,
		Context:  3,
	})
}
