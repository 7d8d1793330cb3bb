package services

import (
	"testing"

	"plforum/internal/models"
	"plforum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRevisionsRecorded(t *testing.T) {
	f := newForumFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	mod := testutil.CreateUser(t, f.db, "mod", testutil.Staff)
	p := f.post(t, author, "games")

	_, err := f.svc.Forum.UpdatePost(bg, author, p.ID, PostInput{Title: "第二版", Content: "正文 **bold**\n新增一行"})
	require.NoError(t, err)
	_, err = f.svc.Forum.UpdatePost(bg, author, p.ID, PostInput{Title: "第二版", Content: "全部重写"})
	require.NoError(t, err)

	revs, err := f.svc.Forum.ListRevisions(bg, mod, p.ID)
	require.NoError(t, err)
	require.Len(t, revs, 3)
	for i, r := range revs {
		assert.Equal(t, i+1, r.Sequence)
		assert.Equal(t, author.Username, r.EditorUsername)
	}

	first, err := f.svc.Forum.RevisionDiff(bg, mod, p.ID, revs[0].ID)
	require.NoError(t, err)
	assert.Nil(t, first.FromRevisionID)
	assert.Contains(t, first.TitleDiff, "+标题")
	assert.Contains(t, first.BodyDiff, "+正文 **bold**")

	second, err := f.svc.Forum.RevisionDiff(bg, mod, p.ID, revs[1].ID)
	require.NoError(t, err)
	require.NotNil(t, second.FromRevisionID)
	assert.Equal(t, revs[0].ID, *second.FromRevisionID)
	assert.Contains(t, second.TitleDiff, "-标题")
	assert.Contains(t, second.TitleDiff, "+第二版")
	assert.Contains(t, second.BodyDiff, "+新增一行")
	assert.NotContains(t, second.BodyDiff, "-正文")

	// 标题未变时没有 diff
	third, err := f.svc.Forum.RevisionDiff(bg, mod, p.ID, revs[2].ID)
	require.NoError(t, err)
	assert.Empty(t, third.TitleDiff)
	assert.Contains(t, third.BodyDiff, "+全部重写")

	_, err = f.svc.Forum.RevisionDiff(bg, mod, p.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostRevisionsRequireModeration(t *testing.T) {
	f := newForumFixture(t)
	author := testutil.CreateUser(t, f.db, "author")
	scoped := testutil.CreateUser(t, f.db, "scoped", testutil.Scoped)
	deleter := testutil.CreateUser(t, f.db, "deleter", testutil.Scoped)
	games := testutil.Board(t, f.db, "games")
	require.NoError(t, f.db.Create(&models.StaffBoardPermission{UserID: scoped.ID, BoardID: games.ID, CanModerate: true}).Error)
	require.NoError(t, f.db.Create(&models.StaffBoardPermission{UserID: deleter.ID, BoardID: games.ID, CanDelete: true}).Error)

	gamePost := f.post(t, author, "games")
	techPost := f.post(t, author, "tech")

	_, err := f.svc.Forum.ListRevisions(bg, author, gamePost.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.Forum.ListRevisions(bg, scoped, techPost.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.Forum.ListRevisions(bg, deleter, gamePost.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	revs, err := f.svc.Forum.ListRevisions(bg, scoped, gamePost.ID)
	require.NoError(t, err)
	require.Len(t, revs, 1)

	// 其他帖子的版本号不能拿来比较
	other, err := f.svc.Forum.ListRevisions(bg, testutil.CreateUser(t, f.db, "root", testutil.Staff, testutil.Superuser), techPost.ID)
	require.NoError(t, err)
	_, err = f.svc.Forum.RevisionDiff(bg, scoped, gamePost.ID, other[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
