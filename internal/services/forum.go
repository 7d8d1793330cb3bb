package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"plforum/internal/models"
	"plforum/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	boardsCacheKey = "boards:active"
	boardsCacheTTL = 5 * time.Minute

	maxTitleLen     = 200
	maxCommentLen   = 5000
	maxLinksPerPost = 10
)

// ForumService 板块、帖子、评论、点赞收藏、关注与审核
type ForumService struct {
	db            *gorm.DB
	clock         Clock
	log           *zap.Logger
	ledger        *Ledger
	audit         *AuditTrail
	boards        *BoardPermissions
	notifications *NotificationService
	postPointsCap int
	rank          utils.RankConfig
}

func NewForumService(db *gorm.DB, clock Clock, ledger *Ledger, audit *AuditTrail, boards *BoardPermissions,
	notifications *NotificationService, postPointsCap int, log *zap.Logger) *ForumService {
	if postPointsCap <= 0 {
		postPointsCap = DefaultPostPointsDailyCap
	}
	return &ForumService{
		db:            db,
		clock:         clock,
		log:           orNop(log),
		ledger:        ledger,
		audit:         audit,
		boards:        boards,
		notifications: notifications,
		postPointsCap: postPointsCap,
		rank:          utils.DefaultRankConfig,
	}
}

// assertCanWrite 被封禁或禁言的用户不能发帖、评论
func (s *ForumService) assertCanWrite(u *models.User) error {
	now := s.clock.now()
	if u.IsCurrentlyBanned(now) {
		return ErrBanned
	}
	if u.IsCurrentlyMuted(now) {
		return ErrMuted
	}
	return nil
}

func idStr(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ListBoards 启用的板块，按排序值
func (s *ForumService) ListBoards(ctx context.Context) ([]models.Board, error) {
	return utils.Remember(utils.GetCache(), boardsCacheKey, boardsCacheTTL, func() ([]models.Board, error) {
		var boards []models.Board
		err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("sort_order").Order("id").Find(&boards).Error
		return boards, err
	})
}

func (s *ForumService) loadBoard(ctx context.Context, id uint) (*models.Board, error) {
	var b models.Board
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("board_id", "unknown board")
		}
		return nil, err
	}
	return &b, nil
}

// ---------- 帖子 ----------

type LinkInput struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Code  string `json:"code"`
}

type PostInput struct {
	BoardID       uint        `json:"board_id"`
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	ResourceLinks []LinkInput `json:"resource_links"`
}

// PostCreated 发帖结果，附带本次积分
type PostCreated struct {
	Post          *models.Post `json:"post"`
	PointsAwarded int          `json:"points_awarded"`
	Balance       int          `json:"plcoin"`
}

func cleanLinks(in []LinkInput) ([]LinkInput, error) {
	out := make([]LinkInput, 0, len(in))
	for _, l := range in {
		l.URL = strings.TrimSpace(l.URL)
		if l.URL == "" {
			continue
		}
		if !strings.HasPrefix(l.URL, "http://") && !strings.HasPrefix(l.URL, "https://") {
			return nil, invalid("resource_links", "url must be http(s)")
		}
		l.Title = truncate(strings.TrimSpace(l.Title), 200)
		l.Code = truncate(strings.TrimSpace(l.Code), 50)
		out = append(out, l)
	}
	if len(out) > maxLinksPerPost {
		return nil, invalid("resource_links", "too many links")
	}
	return out, nil
}

func validatePostText(title, content string) (string, string, error) {
	title = strings.TrimSpace(utils.StripTags(title))
	content = strings.TrimSpace(content)
	if title == "" {
		return "", "", invalid("title", "required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", "", invalid("title", "must be at most 200 characters")
	}
	if content == "" {
		return "", "", invalid("content", "required")
	}
	return title, content, nil
}

// CreatePost 版主发帖直接发布，普通用户进入待审核；公告板块仅版主可发。
// 发帖积分在帖子提交后单独发放，失败不影响发帖。
func (s *ForumService) CreatePost(ctx context.Context, user *models.User, in PostInput, meta RequestMeta) (*PostCreated, error) {
	if err := s.assertCanWrite(user); err != nil {
		return nil, err
	}
	board, err := s.loadBoard(ctx, in.BoardID)
	if err != nil {
		return nil, err
	}
	if board.Slug == models.AnnouncementsBoardSlug && !user.IsStaff {
		return nil, ErrPermissionDenied
	}
	title, content, err := validatePostText(in.Title, in.Content)
	if err != nil {
		return nil, err
	}
	links, err := cleanLinks(in.ResourceLinks)
	if err != nil {
		return nil, err
	}

	post := models.Post{
		UserID:  user.ID,
		BoardID: board.ID,
		Title:   title,
		Content: content,
		Status:  models.PostStatusPending,
	}
	if user.IsStaff {
		post.Status = models.PostStatusPublished
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User", "Board", "ReviewedBy", "DeletedBy").Create(&post).Error; err != nil {
			return err
		}
		if err := addRevision(tx, &post, user.ID); err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		rows := make([]models.ResourceLink, 0, len(links))
		for _, l := range links {
			rows = append(rows, models.ResourceLink{PostID: post.ID, Title: l.Title, URL: l.URL, Code: l.Code})
		}
		return tx.Omit("Post").Create(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditPostCreate, TargetType: "post", TargetID: idStr(post.ID),
		Meta: meta, Metadata: map[string]interface{}{"board_id": board.ID}})

	res := &PostCreated{Post: &post}
	hasResources := len(links) > 0
	s.ledger.bestEffort(ActionPostCreate, user.ID, func() error {
		awarded, balance, err := s.ledger.AwardPostPoints(ctx, user.ID, PostPointsFor(hasResources), s.postPointsCap)
		if err != nil {
			return err
		}
		res.PointsAwarded, res.Balance = awarded, balance
		if awarded > 0 {
			s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditPointsPost, TargetType: "post", TargetID: idStr(post.ID),
				Meta: meta, Metadata: map[string]interface{}{"awarded": awarded, "balance": balance, "has_resource_links": hasResources}})
		}
		return nil
	})
	return res, nil
}

// canView 已发布对所有人可见；未发布仅作者和版主可见
func canView(viewer *models.User, p *models.Post) bool {
	if p.IsPublished() {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.IsStaff || viewer.ID == p.UserID
}

func (s *ForumService) loadPost(ctx context.Context, id uint) (*models.Post, error) {
	var p models.Post
	if err := s.db.WithContext(ctx).Preload("User").Preload("Board").
		Where("is_deleted = ?", false).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// visiblePost 不可见的帖子按不存在处理
func (s *ForumService) visiblePost(ctx context.Context, viewer *models.User, id uint) (*models.Post, error) {
	p, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(viewer, p) {
		return nil, ErrNotFound
	}
	return p, nil
}

// GetPost 详情，浏览数 +1，正文渲染为 HTML
func (s *ForumService) GetPost(ctx context.Context, viewer *models.User, id uint) (*models.Post, error) {
	p, err := s.visiblePost(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", p.ID).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error; err != nil {
		s.log.Warn("increment views failed", zap.Uint("post_id", p.ID), zap.Error(err))
	} else {
		p.Views++
	}
	p.ContentHTML = utils.RenderMarkdown(p.Content)
	if err := s.fillCounts(ctx, []*models.Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

type PostFilter struct {
	BoardID   uint
	AuthorID  uint
	Query     string
	Following bool // 仅看关注的作者和板块
	Page      int
	PageSize  int
}

// ListPosts 置顶优先，按时间倒序
func (s *ForumService) ListPosts(ctx context.Context, viewer *models.User, f PostFilter) ([]models.Post, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Post{}).Where("is_deleted = ?", false)
	switch {
	case viewer != nil && viewer.IsStaff:
	case viewer != nil:
		q = q.Where("status = ? OR user_id = ?", models.PostStatusPublished, viewer.ID)
	default:
		q = q.Where("status = ?", models.PostStatusPublished)
	}
	if f.BoardID != 0 {
		q = q.Where("board_id = ?", f.BoardID)
	}
	if f.AuthorID != 0 {
		q = q.Where("user_id = ?", f.AuthorID)
	}
	if kw := strings.TrimSpace(f.Query); kw != "" {
		kw = "%" + truncate(kw, 100) + "%"
		q = q.Where("title LIKE ? OR content LIKE ?", kw, kw)
	}
	if f.Following {
		if viewer == nil {
			return nil, 0, ErrPermissionDenied
		}
		db := s.db.WithContext(ctx)
		q = q.Where("user_id IN (?) OR board_id IN (?)",
			db.Model(&models.UserFollow{}).Select("following_id").Where("follower_id = ?", viewer.ID),
			db.Model(&models.BoardFollow{}).Select("board_id").Where("user_id = ?", viewer.ID))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paging(f.Page, f.PageSize)
	var posts []models.Post
	err := q.Preload("User").Preload("Board").
		Order("is_pinned DESC").Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	ptrs := make([]*models.Post, len(posts))
	for i := range posts {
		ptrs[i] = &posts[i]
	}
	if err := s.fillCounts(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// paging 页码从 1 开始，默认每页 20，最多 100
func paging(page, pageSize int) (offset, limit int) {
	limit = utils.ClampInt(pageSize, 1, 100)
	if pageSize == 0 {
		limit = 20
	}
	return (max(page, 1) - 1) * limit, limit
}

func (s *ForumService) fillCounts(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	type row struct {
		PostID uint
		N      int
	}
	count := func(model interface{}, extra string) (map[uint]int, error) {
		q := s.db.WithContext(ctx).Model(model).Select("post_id, COUNT(*) AS n").Where("post_id IN ?", ids)
		if extra != "" {
			q = q.Where(extra)
		}
		var rows []row
		if err := q.Group("post_id").Scan(&rows).Error; err != nil {
			return nil, err
		}
		m := make(map[uint]int, len(rows))
		for _, r := range rows {
			m[r.PostID] = r.N
		}
		return m, nil
	}

	comments, err := count(&models.Comment{}, "is_deleted = false")
	if err != nil {
		return err
	}
	likes, err := count(&models.PostLike{}, "")
	if err != nil {
		return err
	}
	favs, err := count(&models.PostFavorite{}, "")
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.CommentCount = comments[p.ID]
		p.LikeCount = likes[p.ID]
		p.FavoriteCount = favs[p.ID]
	}
	return nil
}

// UpdatePost 仅作者；锁定帖仅版主可改；非版主修改后重新进入审核。每次修改记一个版本
func (s *ForumService) UpdatePost(ctx context.Context, user *models.User, id uint, in PostInput) (*models.Post, error) {
	if err := s.assertCanWrite(user); err != nil {
		return nil, err
	}
	p, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != user.ID {
		return nil, ErrPermissionDenied
	}
	if p.IsLocked && !user.IsStaff {
		return nil, ErrPermissionDenied
	}
	title, content, err := validatePostText(in.Title, in.Content)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{"title": title, "content": content}
	if !user.IsStaff && p.Status != models.PostStatusPending {
		fields["status"] = models.PostStatusPending
		fields["reviewed_by_id"] = nil
		fields["reviewed_at"] = nil
		fields["reject_reason"] = ""
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("id = ?", p.ID).Updates(fields).Error; err != nil {
			return err
		}
		p.Title, p.Content = title, content
		return addRevision(tx, p, user.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditPostUpdate, TargetType: "post", TargetID: idStr(p.ID),
		Metadata: map[string]interface{}{"board_id": p.BoardID}})
	return s.loadPost(ctx, p.ID)
}

// DeletePost 作者或有该板块删除权限的版主。软删除，评论和下载记录保留
func (s *ForumService) DeletePost(ctx context.Context, user *models.User, id uint, meta RequestMeta) error {
	p, err := s.loadPost(ctx, id)
	if err != nil {
		return err
	}
	if p.UserID != user.ID {
		ok, err := s.boards.CanDelete(ctx, user, p.BoardID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPermissionDenied
		}
	}
	now := s.clock.now().UTC()
	deletedBy := user.ID
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ? AND is_deleted = ?", p.ID, false).
		Updates(map[string]interface{}{
			"is_deleted":    true,
			"deleted_at":    now,
			"deleted_by_id": deletedBy,
			"is_pinned":     false,
		}).Error; err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditPostDelete, TargetType: "post", TargetID: idStr(p.ID),
		Meta: meta, Metadata: map[string]interface{}{"board_id": p.BoardID, "title": p.Title}})
	return nil
}

// SetPostFlags 置顶/锁定，需要该板块的审核权限
func (s *ForumService) SetPostFlags(ctx context.Context, user *models.User, id uint, pinned, locked *bool, meta RequestMeta) (*models.Post, error) {
	p, err := s.loadPost(ctx, id)
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
	fields := map[string]interface{}{}
	if pinned != nil {
		fields["is_pinned"] = *pinned
	}
	if locked != nil {
		fields["is_locked"] = *locked
	}
	if len(fields) == 0 {
		return p, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", p.ID).Updates(fields).Error; err != nil {
		return nil, err
	}
	s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditPostFlags, TargetType: "post", TargetID: idStr(p.ID),
		Meta: meta, Metadata: map[string]interface{}{"board_id": p.BoardID, "is_pinned": pinned, "is_locked": locked}})
	return s.loadPost(ctx, p.ID)
}

// ---------- 审核 ----------

// PendingQueue 待审核帖子；scoped 版主只看到有审核权限的板块
func (s *ForumService) PendingQueue(ctx context.Context, user *models.User) ([]models.Post, error) {
	if !user.IsStaff {
		return nil, ErrPermissionDenied
	}
	q := s.db.WithContext(ctx).Preload("User").Preload("Board").
		Where("status = ? AND is_deleted = ?", models.PostStatusPending, false)
	if IsScoped(user) {
		allowed, err := s.boards.AllowedBoardIDs(ctx, user, BoardModerate)
		if err != nil {
			return nil, err
		}
		if len(allowed) == 0 {
			return []models.Post{}, nil
		}
		q = q.Where("board_id IN ?", allowed)
	}
	var posts []models.Post
	err := q.Order("created_at DESC").Order("id DESC").Find(&posts).Error
	return posts, err
}

func (s *ForumService) review(ctx context.Context, user *models.User, id uint, status models.PostStatus, reason string, meta RequestMeta) (*models.Post, error) {
	p, err := s.moderatable(ctx, user, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.now().UTC()
	reviewer := user.ID
	reason = truncate(reason, 200)
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"status":         status,
		"reviewed_by_id": reviewer,
		"reviewed_at":    now,
		"reject_reason":  reason,
	}).Error; err != nil {
		return nil, err
	}

	action := AuditPostApprove
	metadata := map[string]interface{}{"board_id": p.BoardID}
	if status == models.PostStatusRejected {
		action = AuditPostReject
		metadata["reason"] = reason
	}
	s.audit.Write(ctx, AuditEntry{Actor: user, Action: action, TargetType: "post", TargetID: idStr(p.ID), Meta: meta, Metadata: metadata})
	return s.loadPost(ctx, p.ID)
}

func (s *ForumService) Approve(ctx context.Context, user *models.User, id uint, meta RequestMeta) (*models.Post, error) {
	return s.review(ctx, user, id, models.PostStatusPublished, "", meta)
}

func (s *ForumService) Reject(ctx context.Context, user *models.User, id uint, reason string, meta RequestMeta) (*models.Post, error) {
	return s.review(ctx, user, id, models.PostStatusRejected, reason, meta)
}

// ---------- 评论 ----------

func (s *ForumService) ListComments(ctx context.Context, viewer *models.User, postID uint) ([]models.Comment, error) {
	if _, err := s.visiblePost(ctx, viewer, postID); err != nil {
		return nil, err
	}
	var comments []models.Comment
	err := s.db.WithContext(ctx).Preload("User").Where("post_id = ?", postID).
		Order("created_at").Order("id").Find(&comments).Error
	for i := range comments {
		comments[i].Content = comments[i].VisibleContent()
	}
	return comments, err
}

type CommentCreated struct {
	Comment      *models.Comment `json:"comment"`
	BonusAwarded bool            `json:"bonus_awarded"`
}

// CreateComment 锁定帖仅版主可评论；当天首条评论 +1；通知帖子作者或被回复者
func (s *ForumService) CreateComment(ctx context.Context, user *models.User, postID uint, parentID *uint, body string, meta RequestMeta) (*CommentCreated, error) {
	if err := s.assertCanWrite(user); err != nil {
		return nil, err
	}
	p, err := s.visiblePost(ctx, user, postID)
	if err != nil {
		return nil, err
	}
	if p.IsLocked && !user.IsStaff {
		return nil, ErrPermissionDenied
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, invalid("content", "required")
	}
	if utf8.RuneCountInString(body) > maxCommentLen {
		return nil, invalid("content", "too long")
	}

	var parent *models.Comment
	if parentID != nil && *parentID != 0 {
		var c models.Comment
		if err := s.db.WithContext(ctx).Where("id = ? AND post_id = ?", *parentID, p.ID).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, invalid("parent_id", "parent comment not found on this post")
			}
			return nil, err
		}
		parent = &c
	}

	comment := models.Comment{PostID: p.ID, UserID: user.ID, Content: body}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if err := s.db.WithContext(ctx).Omit("Post", "User", "Parent").Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	res := &CommentCreated{Comment: &comment}
	s.ledger.bestEffort(ActionFirstCommentBonus, user.ID, func() error {
		awarded, balance, err := s.ledger.AwardFirstCommentBonus(ctx, user.ID)
		if err != nil {
			return err
		}
		res.BonusAwarded = awarded
		if awarded {
			s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditPointsComment, TargetType: "comment",
				TargetID: idStr(comment.ID), Meta: meta,
				Metadata: map[string]interface{}{"awarded": PointsFirstComment, "balance": balance, "post_id": p.ID}})
		}
		return nil
	})

	actorID := user.ID
	commentID := comment.ID
	n := models.Notification{
		ActorID:   &actorID,
		PostID:    &p.ID,
		CommentID: &commentID,
		Reason:    utils.Excerpt(body, 80),
	}
	if parent != nil {
		n.UserID, n.Type = parent.UserID, models.NotificationTypeReplyComment
	} else {
		n.UserID, n.Type = p.UserID, models.NotificationTypeCommentPost
	}
	s.notifications.Notify(ctx, n)

	var parentMeta interface{}
	if parent != nil {
		parentMeta = parent.ID
	}
	s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditCommentCreate, TargetType: "comment", TargetID: idStr(comment.ID),
		Meta: meta, Metadata: map[string]interface{}{"post_id": p.ID, "parent_id": parentMeta}})
	return res, nil
}

// DeleteComment 软删除：作者本人或有该板块删除权限的版主
func (s *ForumService) DeleteComment(ctx context.Context, user *models.User, id uint, meta RequestMeta) error {
	var c models.Comment
	if err := s.db.WithContext(ctx).Preload("Post").First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if c.UserID != user.ID {
		ok, err := s.boards.CanDelete(ctx, user, c.Post.BoardID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPermissionDenied
		}
	}
	if c.IsDeleted {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", c.ID).
		Updates(map[string]interface{}{"is_deleted": true, "content": ""}).Error; err != nil {
		return err
	}
	s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditCommentDelete, TargetType: "comment", TargetID: idStr(c.ID),
		Meta: meta, Metadata: map[string]interface{}{"post_id": c.PostID}})
	return nil
}

// ---------- 点赞 / 收藏 ----------

type ToggleResult struct {
	Active       bool  `json:"active"`
	Count        int64 `json:"count"`
	BonusAwarded bool  `json:"bonus_awarded,omitempty"`
}

// toggle 存在则删除，否则创建；返回切换后的状态
func (s *ForumService) toggle(ctx context.Context, model interface{}, create interface{}, where string, args ...interface{}) (bool, error) {
	var active bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where(where, args...).Delete(model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		active = true
		return tx.Create(create).Error
	})
	return active, err
}

func (s *ForumService) reactable(ctx context.Context, user *models.User, postID uint) (*models.Post, error) {
	if user.IsCurrentlyBanned(s.clock.now()) {
		return nil, ErrBanned
	}
	return s.visiblePost(ctx, user, postID)
}

func (s *ForumService) ToggleLike(ctx context.Context, user *models.User, postID uint, meta RequestMeta) (*ToggleResult, error) {
	p, err := s.reactable(ctx, user, postID)
	if err != nil {
		return nil, err
	}
	liked, err := s.toggle(ctx, &models.PostLike{}, &models.PostLike{UserID: user.ID, PostID: p.ID},
		"user_id = ? AND post_id = ?", user.ID, p.ID)
	if err != nil {
		return nil, err
	}
	action := AuditPostUnlike
	if liked {
		action = AuditPostLike
	}
	s.audit.Write(ctx, AuditEntry{Actor: user, Action: action, TargetType: "post", TargetID: idStr(p.ID), Meta: meta})

	res := &ToggleResult{Active: liked}
	err = s.db.WithContext(ctx).Model(&models.PostLike{}).Where("post_id = ?", p.ID).Count(&res.Count).Error
	return res, err
}

// ToggleFavorite 收藏时发放当天首次收藏奖励
func (s *ForumService) ToggleFavorite(ctx context.Context, user *models.User, postID uint, meta RequestMeta) (*ToggleResult, error) {
	p, err := s.reactable(ctx, user, postID)
	if err != nil {
		return nil, err
	}
	favorited, err := s.toggle(ctx, &models.PostFavorite{}, &models.PostFavorite{UserID: user.ID, PostID: p.ID},
		"user_id = ? AND post_id = ?", user.ID, p.ID)
	if err != nil {
		return nil, err
	}

	res := &ToggleResult{Active: favorited}
	action := AuditPostUnfavorite
	if favorited {
		action = AuditPostFavorite
		s.ledger.bestEffort(ActionFirstFavoriteBonus, user.ID, func() error {
			awarded, balance, err := s.ledger.AwardFirstFavoriteBonus(ctx, user.ID)
			if err != nil {
				return err
			}
			res.BonusAwarded = awarded
			if awarded {
				s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditPointsFavorite, TargetType: "post",
					TargetID: idStr(p.ID), Meta: meta,
					Metadata: map[string]interface{}{"awarded": PointsFirstFavorite, "balance": balance}})
			}
			return nil
		})
	}
	s.audit.Write(ctx, AuditEntry{Actor: user, Action: action, TargetType: "post", TargetID: idStr(p.ID), Meta: meta})

	err = s.db.WithContext(ctx).Model(&models.PostFavorite{}).Where("post_id = ?", p.ID).Count(&res.Count).Error
	return res, err
}

// Favorites 我的收藏
func (s *ForumService) Favorites(ctx context.Context, userID uint, limit int) ([]models.PostFavorite, error) {
	var favs []models.PostFavorite
	err := s.db.WithContext(ctx).Preload("Post").Preload("Post.Board").
		Where("user_id = ? AND post_id IN (?)", userID,
			s.db.WithContext(ctx).Model(&models.Post{}).Select("id").Where("is_deleted = ?", false)).
		Order("id DESC").Limit(limit).Find(&favs).Error
	return favs, err
}

// ---------- 关注 ----------

func (s *ForumService) ToggleBoardFollow(ctx context.Context, user *models.User, boardID uint) (*ToggleResult, error) {
	if _, err := s.loadBoard(ctx, boardID); err != nil {
		return nil, err
	}
	following, err := s.toggle(ctx, &models.BoardFollow{}, &models.BoardFollow{UserID: user.ID, BoardID: boardID},
		"user_id = ? AND board_id = ?", user.ID, boardID)
	if err != nil {
		return nil, err
	}
	res := &ToggleResult{Active: following}
	err = s.db.WithContext(ctx).Model(&models.BoardFollow{}).Where("board_id = ?", boardID).Count(&res.Count).Error
	return res, err
}

// ToggleUserFollow 关注时通知对方
func (s *ForumService) ToggleUserFollow(ctx context.Context, user *models.User, targetID uint, meta RequestMeta) (*ToggleResult, error) {
	if user.IsCurrentlyBanned(s.clock.now()) {
		return nil, ErrBanned
	}
	if targetID == user.ID {
		return nil, invalid("user_id", "cannot follow yourself")
	}
	var target models.User
	if err := s.db.WithContext(ctx).Select("id").First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	following, err := s.toggle(ctx, &models.UserFollow{}, &models.UserFollow{FollowerID: user.ID, FollowingID: target.ID},
		"follower_id = ? AND following_id = ?", user.ID, target.ID)
	if err != nil {
		return nil, err
	}

	action := AuditUserUnfollow
	if following {
		action = AuditUserFollow
		actorID := user.ID
		s.notifications.Notify(ctx, models.Notification{
			UserID:  target.ID,
			ActorID: &actorID,
			Type:    models.NotificationTypeFollow,
			Reason:  user.DisplayName(),
		})
	}
	s.audit.Write(ctx, AuditEntry{Actor: user, Action: action, TargetType: "user", TargetID: idStr(target.ID), Meta: meta})

	res := &ToggleResult{Active: following}
	err = s.db.WithContext(ctx).Model(&models.UserFollow{}).Where("following_id = ?", target.ID).Count(&res.Count).Error
	return res, err
}
