package services

import (
	"testing"
	"time"

	"plforum/internal/models"
	"plforum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type forumFixture struct {
	db  *gorm.DB
	clk *fakeClock
	svc *Services
}

func newForumFixture(t *testing.T) forumFixture {
	db := testutil.NewDB(t)
	clk := newFakeClock(2025, time.May, 4, 10, 0)
	return forumFixture{db: db, clk: clk, svc: New(db, Options{Clock: clk.Clock()}, nil)}
}

func (f forumFixture) post(t *testing.T, author *models.User, slug string, links ...LinkInput) *models.Post {
	t.Helper()
	res, err := f.svc.Forum.CreatePost(bg, author, PostInput{
		BoardID:       testutil.Board(t, f.db, slug).ID,
		Title:         "标题",
		Content:       "正文 **bold**",
		ResourceLinks: links,
	}, RequestMeta{})
	require.NoError(t, err)
	return res.Post
}

func (f forumFixture) count(t *testing.T, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func TestCreatePostStatusAndPoints(t *testing.T) {
	f := newForumFixture(t)
	user := testutil.CreateUser(t, f.db, "writer")
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)

	res, err := f.svc.Forum.CreatePost(bg, user, PostInput{
		BoardID: testutil.Board(t, f.db, "games").ID,
		Title:   "  <b>新游戏</b>  ",
		Content: "内容",
		ResourceLinks: []LinkInput{
			{Title: "网盘", URL: "https://pan.example.com/s/1", Code: "abcd"},
			{URL: "  "},
		},
	}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPending, res.Post.Status)
	assert.Equal(t, "新游戏", res.Post.Title)
	assert.Equal(t, PointsPostWithResources, res.PointsAwarded)
	assert.Equal(t, 2, res.Balance)
	assert.EqualValues(t, 1, f.count(t, &models.ResourceLink{}, "post_id = ?", res.Post.ID))

	plain := f.post(t, mod, "games")
	assert.Equal(t, models.PostStatusPublished, plain.Status)
	assert.Equal(t, PointsPost, testutil.Reload(t, f.db, mod).ActivityScore)

	assert.EqualValues(t, 1, f.count(t, &models.AuditLog{}, "action = ? AND actor_id = ?", AuditPointsPost, user.ID))
}

func TestCreatePostRejectsBadInput(t *testing.T) {
	f := newForumFixture(t)
	user := testutil.CreateUser(t, f.db, "writer")
	games := testutil.Board(t, f.db, "games").ID

	_, err := f.svc.Forum.CreatePost(bg, user, PostInput{BoardID: games, Title: "", Content: "x"}, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Forum.CreatePost(bg, user, PostInput{BoardID: 9999, Title: "t", Content: "x"}, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Forum.CreatePost(bg, user, PostInput{BoardID: games, Title: "t", Content: "x",
		ResourceLinks: []LinkInput{{URL: "ftp://old.example.com"}}}, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Forum.CreatePost(bg, user, PostInput{BoardID: testutil.Board(t, f.db, "announcements").ID,
		Title: "t", Content: "x"}, RequestMeta{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestMutedAndBannedCannotWrite(t *testing.T) {
	f := newForumFixture(t)
	until := f.clk.now.Add(time.Hour).UTC()
	muted := testutil.CreateUser(t, f.db, "muted", func(u *models.User) { u.IsMuted, u.MutedUntil = true, &until })
	banned := testutil.CreateUser(t, f.db, "banned", func(u *models.User) { u.IsBanned = true })
	games := testutil.Board(t, f.db, "games").ID

	_, err := f.svc.Forum.CreatePost(bg, muted, PostInput{BoardID: games, Title: "t", Content: "x"}, RequestMeta{})
	assert.ErrorIs(t, err, ErrMuted)
	_, err = f.svc.Forum.CreatePost(bg, banned, PostInput{BoardID: games, Title: "t", Content: "x"}, RequestMeta{})
	assert.ErrorIs(t, err, ErrBanned)

	// 禁言到期后恢复
	f.clk.Advance(2 * time.Hour)
	_, err = f.svc.Forum.CreatePost(bg, muted, PostInput{BoardID: games, Title: "t", Content: "x"}, RequestMeta{})
	assert.NoError(t, err)
}

func TestPendingPostVisibility(t *testing.T) {
	f := newForumFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	other := testutil.CreateUser(t, f.db, "other")
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)
	p := f.post(t, author, "games")

	_, err := f.svc.Forum.GetPost(bg, nil, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Forum.GetPost(bg, other, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.svc.Forum.GetPost(bg, author, p.ID)
	require.NoError(t, err)
	assert.Contains(t, got.ContentHTML, "<strong>bold</strong>")
	assert.Equal(t, 1, got.Views)

	_, err = f.svc.Forum.GetPost(bg, mod, p.ID)
	require.NoError(t, err)

	posts, total, err := f.svc.Forum.ListPosts(bg, other, PostFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, posts)

	_, err = f.svc.Forum.Approve(bg, mod, p.ID, RequestMeta{})
	require.NoError(t, err)
	posts, total, err = f.svc.Forum.ListPosts(bg, nil, PostFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, posts, 1)
	assert.Equal(t, p.ID, posts[0].ID)
}

func TestListPostsPinnedFirstAndFollowing(t *testing.T) {
	f := newForumFixture(t)
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)
	star := testutil.CreateUser(t, f.db, "star", testutil.Staff)
	fan := testutil.CreateUser(t, f.db, "fan")

	first := f.post(t, mod, "games")
	f.post(t, mod, "tech")
	starPost := f.post(t, star, "games")

	pinned := true
	_, err := f.svc.Forum.SetPostFlags(bg, mod, first.ID, &pinned, nil, RequestMeta{})
	require.NoError(t, err)

	posts, total, err := f.svc.Forum.ListPosts(bg, nil, PostFilter{BoardID: testutil.Board(t, f.db, "games").ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, first.ID, posts[0].ID)

	_, _, err = f.svc.Forum.ListPosts(bg, nil, PostFilter{Following: true})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.Forum.ToggleUserFollow(bg, fan, star.ID, RequestMeta{})
	require.NoError(t, err)
	posts, _, err = f.svc.Forum.ListPosts(bg, fan, PostFilter{Following: true})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, starPost.ID, posts[0].ID)
}

func TestUpdatePostResetsReview(t *testing.T) {
	f := newForumFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	other := testutil.CreateUser(t, f.db, "other")
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)
	p := f.post(t, author, "games")
	_, err := f.svc.Forum.Approve(bg, mod, p.ID, RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.Forum.UpdatePost(bg, other, p.ID, PostInput{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	updated, err := f.svc.Forum.UpdatePost(bg, author, p.ID, PostInput{Title: "新标题", Content: "新内容"})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPending, updated.Status)
	assert.Nil(t, updated.ReviewedByID)

	locked := true
	_, err = f.svc.Forum.SetPostFlags(bg, mod, p.ID, nil, &locked, RequestMeta{})
	require.NoError(t, err)
	_, err = f.svc.Forum.UpdatePost(bg, author, p.ID, PostInput{Title: "a", Content: "b"})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestReviewRecordsReviewer(t *testing.T) {
	f := newForumFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)
	p := f.post(t, author, "games")

	_, err := f.svc.Forum.Reject(bg, author, p.ID, "no", RequestMeta{})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	rejected, err := f.svc.Forum.Reject(bg, mod, p.ID, "重复内容", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusRejected, rejected.Status)
	assert.Equal(t, "重复内容", rejected.RejectReason)
	require.NotNil(t, rejected.ReviewedByID)
	assert.Equal(t, mod.ID, *rejected.ReviewedByID)
	require.NotNil(t, rejected.ReviewedAt)
	assert.WithinDuration(t, f.clk.now, *rejected.ReviewedAt, time.Second)

	var log models.AuditLog
	require.NoError(t, f.db.Where("action = ?", AuditPostReject).First(&log).Error)
	assert.Equal(t, "重复内容", log.Metadata["reason"])
}

func TestScopedStaffPendingQueue(t *testing.T) {
	f := newForumFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	scoped := testutil.CreateUser(t, f.db, "scoped", testutil.Scoped)
	unscoped := testutil.CreateUser(t, f.db, "global", testutil.Staff)
	games := testutil.Board(t, f.db, "games")
	require.NoError(t, f.db.Create(&models.StaffBoardPermission{UserID: scoped.ID, BoardID: games.ID, CanModerate: true}).Error)

	gamePost := f.post(t, author, "games")
	techPost := f.post(t, author, "tech")

	queue, err := f.svc.Forum.PendingQueue(bg, scoped)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, gamePost.ID, queue[0].ID)

	queue, err = f.svc.Forum.PendingQueue(bg, unscoped)
	require.NoError(t, err)
	assert.Len(t, queue, 2)

	_, err = f.svc.Forum.PendingQueue(bg, author)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.Forum.Approve(bg, scoped, techPost.ID, RequestMeta{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.Forum.Approve(bg, scoped, gamePost.ID, RequestMeta{})
	assert.NoError(t, err)
}

func TestDeletePostPermissions(t *testing.T) {
	f := newForumFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	other := testutil.CreateUser(t, f.db, "other")
	scoped := testutil.CreateUser(t, f.db, "scoped", testutil.Scoped)
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)

	p := f.post(t, author, "games")
	assert.ErrorIs(t, f.svc.Forum.DeletePost(bg, other, p.ID, RequestMeta{}), ErrPermissionDenied)
	assert.ErrorIs(t, f.svc.Forum.DeletePost(bg, scoped, p.ID, RequestMeta{}), ErrPermissionDenied)
	require.NoError(t, f.svc.Forum.DeletePost(bg, mod, p.ID, RequestMeta{}))
	assert.ErrorIs(t, f.svc.Forum.DeletePost(bg, mod, p.ID, RequestMeta{}), ErrNotFound)

	own := f.post(t, author, "games")
	require.NoError(t, f.svc.Forum.DeletePost(bg, author, own.ID, RequestMeta{}))
}

func TestCreateCommentBonusAndNotifications(t *testing.T) {
	f := newForumFixture(t)
	author := testutil.CreateUser(t, f.db, "author", testutil.Staff)
	reader := testutil.CreateUser(t, f.db, "reader")
	p := f.post(t, author, "games")

	first, err := f.svc.Forum.CreateComment(bg, reader, p.ID, nil, "沙发", RequestMeta{})
	require.NoError(t, err)
	assert.True(t, first.BonusAwarded)

	second, err := f.svc.Forum.CreateComment(bg, reader, p.ID, nil, "再来", RequestMeta{})
	require.NoError(t, err)
	assert.False(t, second.BonusAwarded)
	assert.Equal(t, PointsFirstComment, testutil.Reload(t, f.db, reader).ActivityScore)

	notes, err := f.svc.Notifications.List(bg, author.ID, true, 10)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotificationTypeCommentPost, notes[0].Type)

	reply, err := f.svc.Forum.CreateComment(bg, author, p.ID, &first.Comment.ID, "谢谢", RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, reply.Comment.ParentID)

	notes, err = f.svc.Notifications.List(bg, reader.ID, true, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationTypeReplyComment, notes[0].Type)
	assert.Equal(t, "谢谢", notes[0].Reason)

	// 回复别的帖子的评论
	otherPost := f.post(t, author, "tech")
	_, err = f.svc.Forum.CreateComment(bg, reader, otherPost.ID, &first.Comment.ID, "x", RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLockedPostComments(t *testing.T) {
	f := newForumFixture(t)
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)
	reader := testutil.CreateUser(t, f.db, "reader")
	p := f.post(t, mod, "games")
	locked := true
	_, err := f.svc.Forum.SetPostFlags(bg, reader, p.ID, nil, &locked, RequestMeta{})
	require.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.Forum.SetPostFlags(bg, mod, p.ID, nil, &locked, RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.Forum.CreateComment(bg, reader, p.ID, nil, "hi", RequestMeta{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.Forum.CreateComment(bg, mod, p.ID, nil, "staff note", RequestMeta{})
	assert.NoError(t, err)
}

func TestDeleteCommentLeavesPlaceholder(t *testing.T) {
	f := newForumFixture(t)
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)
	reader := testutil.CreateUser(t, f.db, "reader")
	other := testutil.CreateUser(t, f.db, "other")
	p := f.post(t, mod, "games")

	c, err := f.svc.Forum.CreateComment(bg, reader, p.ID, nil, "要删除的评论", RequestMeta{})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Forum.DeleteComment(bg, other, c.Comment.ID, RequestMeta{}), ErrPermissionDenied)
	require.NoError(t, f.svc.Forum.DeleteComment(bg, reader, c.Comment.ID, RequestMeta{}))

	comments, err := f.svc.Forum.ListComments(bg, nil, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, models.DeletedCommentPlaceholder, comments[0].Content)

	got, err := f.svc.Forum.GetPost(bg, nil, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CommentCount)
}

func TestToggleLikeAndFavorite(t *testing.T) {
	f := newForumFixture(t)
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)
	reader := testutil.CreateUser(t, f.db, "reader")
	banned := testutil.CreateUser(t, f.db, "banned", func(u *models.User) { u.IsBanned = true })
	p := f.post(t, mod, "games")

	res, err := f.svc.Forum.ToggleLike(bg, reader, p.ID, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.EqualValues(t, 1, res.Count)

	res, err = f.svc.Forum.ToggleLike(bg, reader, p.ID, RequestMeta{})
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Zero(t, res.Count)

	_, err = f.svc.Forum.ToggleLike(bg, banned, p.ID, RequestMeta{})
	assert.ErrorIs(t, err, ErrBanned)

	fav, err := f.svc.Forum.ToggleFavorite(bg, reader, p.ID, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, fav.Active)
	assert.True(t, fav.BonusAwarded)

	// 取消后再次收藏，当天奖励不重复
	_, err = f.svc.Forum.ToggleFavorite(bg, reader, p.ID, RequestMeta{})
	require.NoError(t, err)
	fav, err = f.svc.Forum.ToggleFavorite(bg, reader, p.ID, RequestMeta{})
	require.NoError(t, err)
	assert.False(t, fav.BonusAwarded)
	assert.Equal(t, PointsFirstFavorite, testutil.Reload(t, f.db, reader).ActivityScore)

	favs, err := f.svc.Forum.Favorites(bg, reader.ID, 10)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, p.ID, favs[0].Post.ID)
}

func TestToggleFollow(t *testing.T) {
	f := newForumFixture(t)
	a := testutil.CreateUser(t, f.db, "a")
	b := testutil.CreateUser(t, f.db, "b")

	_, err := f.svc.Forum.ToggleUserFollow(bg, a, a.ID, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Forum.ToggleUserFollow(bg, a, 9999, RequestMeta{})
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := f.svc.Forum.ToggleUserFollow(bg, a, b.ID, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.EqualValues(t, 1, res.Count)

	unread, err := f.svc.Notifications.UnreadCount(bg, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	board := testutil.Board(t, f.db, "tech")
	follow, err := f.svc.Forum.ToggleBoardFollow(bg, a, board.ID)
	require.NoError(t, err)
	assert.True(t, follow.Active)
	follow, err = f.svc.Forum.ToggleBoardFollow(bg, a, board.ID)
	require.NoError(t, err)
	assert.False(t, follow.Active)
}

func TestDeletePostKeepsHistory(t *testing.T) {
	f := newForumFixture(t)
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)
	scoped := testutil.CreateUser(t, f.db, "scoped", testutil.Scoped)
	reader := testutil.CreateUser(t, f.db, "reader")
	games := testutil.Board(t, f.db, "games")
	require.NoError(t, f.db.Create(&models.StaffBoardPermission{UserID: scoped.ID, BoardID: games.ID, CanModerate: true}).Error)

	p := f.post(t, mod, "games", LinkInput{Title: "网盘", URL: "https://pan.example.com/s/keep"})
	links, err := f.svc.Resources.Links(bg, reader, p.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	_, err = f.svc.Resources.Download(bg, reader, p.ID, links[0].ID, RequestMeta{})
	require.NoError(t, err)
	_, err = f.svc.Forum.CreateComment(bg, reader, p.ID, nil, "沙发", RequestMeta{})
	require.NoError(t, err)
	_, err = f.svc.Forum.ToggleFavorite(bg, reader, p.ID, RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Forum.DeletePost(bg, mod, p.ID, RequestMeta{}))

	var row models.Post
	require.NoError(t, f.db.First(&row, p.ID).Error)
	assert.True(t, row.IsDeleted)
	require.NotNil(t, row.DeletedAt)
	require.NotNil(t, row.DeletedByID)
	assert.Equal(t, mod.ID, *row.DeletedByID)

	assert.EqualValues(t, 1, f.count(t, &models.Comment{}, "post_id = ?", p.ID))
	assert.EqualValues(t, 1, f.count(t, &models.ResourceLink{}, "post_id = ?", p.ID))
	assert.EqualValues(t, 1, f.count(t, &models.DownloadEvent{}, "user_id = ?", reader.ID))

	_, err = f.svc.Forum.GetPost(bg, mod, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Resources.Download(bg, reader, p.ID, links[0].ID, RequestMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
	posts, total, err := f.svc.Forum.ListPosts(bg, mod, PostFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, posts)
	favs, err := f.svc.Forum.Favorites(bg, reader.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, favs)

	// 评论与积分记录仍能通过帖子解析到板块
	logs, err := f.svc.Audit.List(bg, scoped, AuditFilter{Action: AuditCommentCreate})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	logs, err = f.svc.Audit.List(bg, scoped, AuditFilter{Action: AuditPostDelete})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestDeletedPendingPostLeavesQueue(t *testing.T) {
	f := newForumFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)
	p := f.post(t, author, "games")

	require.NoError(t, f.svc.Forum.DeletePost(bg, author, p.ID, RequestMeta{}))
	queue, err := f.svc.Forum.PendingQueue(bg, mod)
	require.NoError(t, err)
	assert.Empty(t, queue)
	_, err = f.svc.Forum.Approve(bg, mod, p.ID, RequestMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFollowingFeedIncludesFollowedBoards(t *testing.T) {
	f := newForumFixture(t)
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)
	star := testutil.CreateUser(t, f.db, "star", testutil.Staff)
	reader := testutil.CreateUser(t, f.db, "reader")

	gamePost := f.post(t, mod, "games")
	f.post(t, mod, "tech")
	starPost := f.post(t, star, "daily")

	_, err := f.svc.Forum.ToggleBoardFollow(bg, reader, testutil.Board(t, f.db, "games").ID)
	require.NoError(t, err)
	posts, total, err := f.svc.Forum.ListPosts(bg, reader, PostFilter{Following: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, posts, 1)
	assert.Equal(t, gamePost.ID, posts[0].ID)

	_, err = f.svc.Forum.ToggleUserFollow(bg, reader, star.ID, RequestMeta{})
	require.NoError(t, err)
	posts, total, err = f.svc.Forum.ListPosts(bg, reader, PostFilter{Following: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	ids := []uint{posts[0].ID, posts[1].ID}
	assert.ElementsMatch(t, []uint{gamePost.ID, starPost.ID}, ids)

	// 其他过滤条件仍然生效
	posts, _, err = f.svc.Forum.ListPosts(bg, reader, PostFilter{Following: true, BoardID: testutil.Board(t, f.db, "daily").ID})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, starPost.ID, posts[0].ID)
}
