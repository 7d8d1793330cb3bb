package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"plforum/internal/middleware"
	"plforum/internal/models"
	"plforum/internal/rbac"
	"plforum/internal/services"
	"plforum/internal/testutil"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type apiFixture struct {
	db  *gorm.DB
	svc *services.Services
	r   *gin.Engine
}

func newAPI(t *testing.T) apiFixture {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	enforcer, err := rbac.NewEnforcer(db, nil)
	require.NoError(t, err)
	svc := services.New(db, services.Options{Clock: services.NewClock(time.UTC), RBAC: enforcer}, nil)

	r := gin.New()
	r.Use(middleware.RequestLogger(zap.NewNop()))
	r.Use(sessions.Sessions("plforum_session", cookie.NewStore([]byte("0123456789abcdef0123456789abcdef"))))
	RegisterRoutes(r, Deps{
		DB:          db,
		Services:    svc,
		Enforcer:    enforcer,
		JWTSecret:   "test-secret",
		JWTTTL:      time.Hour,
		RateLimiter: middleware.NewRateLimiter(100, 100),
	})
	return apiFixture{db: db, svc: svc, r: r}
}

func (f apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (f apiFixture) login(t *testing.T, username, password string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func TestRegisterLoginMe(t *testing.T) {
	f := newAPI(t)

	w := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"username": "@newbie", "password": "password1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"username": "@newbie", "password": "password1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "username", decode(t, w)["field"])

	w = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "@newbie", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := f.login(t, "@newbie", "password1")

	w = f.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)
	assert.EqualValues(t, 1, me["login_days"])
	assert.Equal(t, "@newbie", me["user"].(map[string]interface{})["username"])

	w = f.do(t, http.MethodPost, "/api/me/checkin", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["checked_in"])
	w = f.do(t, http.MethodPost, "/api/me/checkin", token, nil)
	assert.Equal(t, false, decode(t, w)["checked_in"])
}

func TestAdminRoutesRequirePolicy(t *testing.T) {
	f := newAPI(t)
	_, err := f.svc.Profile.Register(bg(), "@plain", "password1", "", services.RequestMeta{})
	require.NoError(t, err)
	mod, err := f.svc.Profile.Register(bg(), "@mod", "password1", "", services.RequestMeta{})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", mod.ID).Update("is_staff", true).Error)

	plain := f.login(t, "@plain", "password1")
	staff := f.login(t, "@mod", "password1")

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/admin/users", plain, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/admin/users", staff, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/admin/rbac", staff, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/moderation/pending", plain, nil).Code)

	target := testutil.CreateUser(t, f.db, "target")
	w := f.do(t, http.MethodPost, "/api/admin/users/"+idPath(target.ID)+"/ban", staff, gin.H{"reason": "spam", "days": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, testutil.Reload(t, f.db, target).IsBanned)

	w = f.do(t, http.MethodPost, "/api/admin/users/"+idPath(mod.ID)+"/ban", staff, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/admin/audit?action=user.ban", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["logs"], 1)
}

func TestPostFlowOverHTTP(t *testing.T) {
	f := newAPI(t)
	_, err := f.svc.Profile.Register(bg(), "@writer", "password1", "", services.RequestMeta{})
	require.NoError(t, err)
	token := f.login(t, "@writer", "password1")
	games := testutil.Board(t, f.db, "games")

	w := f.do(t, http.MethodPost, "/api/posts", token, gin.H{
		"board_id": games.ID, "title": "分享", "content": "内容",
		"resource_links": []gin.H{{"url": "https://pan.example.com/s/1"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.EqualValues(t, 2, created["points_awarded"])
	postID := idPath(uint(created["post"].(map[string]interface{})["id"].(float64)))

	// 待审核帖子对匿名不可见
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/posts/"+postID, "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/posts/"+postID, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/posts/abc", token, nil).Code)

	w = f.do(t, http.MethodPost, "/api/posts", token, gin.H{"board_id": games.ID, "title": "", "content": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "title", decode(t, w)["field"])

	var link models.ResourceLink
	require.NoError(t, f.db.First(&link).Error)
	path := "/api/resources/" + postID + "/links/" + idPath(link.ID) + "/download"
	for i := 0; i < services.DefaultDownloadDailyLimit; i++ {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, path, token, nil).Code)
	}
	w = f.do(t, http.MethodPost, path, token, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	quota := decode(t, w)["quota"].(map[string]interface{})
	assert.EqualValues(t, 0, quota["remaining_today"])
}

func TestRBACPolicyAPI(t *testing.T) {
	f := newAPI(t)
	root, err := f.svc.Profile.Register(bg(), "@root", "password1", "", services.RequestMeta{})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", root.ID).
		Updates(map[string]interface{}{"is_superuser": true, "is_staff": true}).Error)
	helper, err := f.svc.Profile.Register(bg(), "@helper", "password1", "", services.RequestMeta{})
	require.NoError(t, err)

	rootToken := f.login(t, "@root", "password1")
	helperToken := f.login(t, "@helper", "password1")

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/admin/audit", helperToken, nil).Code)

	grant := gin.H{"sub": helper.Pid, "obj": "admin.audit", "act": "read"}
	w := f.do(t, http.MethodPost, "/api/admin/rbac/policies", rootToken, grant)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["changed"])
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/admin/audit", helperToken, nil).Code)

	w = f.do(t, http.MethodPost, "/api/admin/rbac/policies", rootToken, grant)
	assert.Equal(t, false, decode(t, w)["changed"])

	w = f.do(t, http.MethodDelete, "/api/admin/rbac/policies", rootToken, grant)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/admin/audit", helperToken, nil).Code)

	var n int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).
		Where("action IN ?", []string{services.AuditRBACPolicyAdd, services.AuditRBACPolicyRemove}).Count(&n).Error)
	assert.EqualValues(t, 2, n)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/admin/rbac/policies", rootToken, gin.H{"sub": "x"}).Code)
}

func TestFeedsAndRevisionsOverHTTP(t *testing.T) {
	f := newAPI(t)
	mod, err := f.svc.Profile.Register(bg(), "@mod", "password1", "", services.RequestMeta{})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", mod.ID).Update("is_staff", true).Error)
	_, err = f.svc.Profile.Register(bg(), "@reader", "password1", "", services.RequestMeta{})
	require.NoError(t, err)
	modToken := f.login(t, "@mod", "password1")
	readerToken := f.login(t, "@reader", "password1")
	games := testutil.Board(t, f.db, "games")

	w := f.do(t, http.MethodPost, "/api/posts", modToken, gin.H{"board_id": games.ID, "title": "热帖", "content": "第一版"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	postID := idPath(uint(decode(t, w)["post"].(map[string]interface{})["id"].(float64)))
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/posts/"+postID+"/like", readerToken, nil).Code)

	w = f.do(t, http.MethodGet, "/api/posts/hot", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	hot := decode(t, w)
	assert.EqualValues(t, 1, hot["total"])
	assert.EqualValues(t, 2, hot["posts"].([]interface{})[0].(map[string]interface{})["hot_score"])

	w = f.do(t, http.MethodGet, "/api/posts/rankings?range=month&board_slug=games", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ranked := decode(t, w)["posts"].([]interface{})
	require.Len(t, ranked, 1)
	assert.EqualValues(t, 100, ranked[0].(map[string]interface{})["hot_score_100"])
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/posts/rankings?range=year", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/posts/rankings?end=yesterday", "", nil).Code)

	w = f.do(t, http.MethodPut, "/api/posts/"+postID, modToken, gin.H{"title": "热帖", "content": "第二版"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/moderation/posts/"+postID+"/revisions", readerToken, nil).Code)
	w = f.do(t, http.MethodGet, "/api/moderation/posts/"+postID+"/revisions", modToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	revs := decode(t, w)["revisions"].([]interface{})
	require.Len(t, revs, 2)
	revID := idPath(uint(revs[1].(map[string]interface{})["id"].(float64)))

	w = f.do(t, http.MethodGet, "/api/moderation/posts/"+postID+"/revisions/"+revID+"/diff", modToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	diff := decode(t, w)
	assert.Contains(t, diff["body_diff"], "+第二版")
	assert.Empty(t, diff["title_diff"])
}
