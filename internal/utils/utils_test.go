package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := RenderMarkdown("**hi** <script>alert(1)</script> [link](https://example.com)")
	assert.Contains(t, out, "<strong>hi</strong>")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `target="_blank"`)
}

func TestStripTagsAndExcerpt(t *testing.T) {
	assert.Equal(t, "bold", StripTags("<b>bold</b>"))
	assert.Equal(t, "a b", Excerpt("<p>a</p>\n<p>b</p>", 10))
	assert.Equal(t, "你好…", Excerpt("你好世界", 2))
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Now()
	tok, err := IssueToken("secret", 42, time.Hour, now)
	require.NoError(t, err)

	id, err := ParseToken("secret", tok)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	_, err = ParseToken("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := IssueToken("secret", 42, time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("password1")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("password1", hash))
	assert.False(t, CheckPasswordHash("password2", hash))
}

func TestRemember(t *testing.T) {
	c := GetCache()
	calls := 0
	load := func() (int, error) {
		calls++
		return 7, nil
	}
	for i := 0; i < 3; i++ {
		v, err := Remember(c, "test:remember", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	}
	assert.Equal(t, 1, calls)

	c.Delete("test:failing")
	_, err := Remember(c, "test:failing", time.Minute, func() (int, error) { return 0, errors.New("boom") })
	assert.Error(t, err)
	assert.Nil(t, c.Get("test:failing"))
}

func TestClampAndLevel(t *testing.T) {
	assert.Equal(t, 1, ClampInt(-5, 1, 100))
	assert.Equal(t, 100, ClampInt(500, 1, 100))
	assert.Equal(t, 0, StringToInt("abc"))
	assert.EqualValues(t, 12, StringToUint("12"))
	assert.GreaterOrEqual(t, GetUserLevel(1000), GetUserLevel(0))
}

func TestRankConfig(t *testing.T) {
	c := DefaultRankConfig
	assert.Equal(t, 7, c.WindowDays(0))
	assert.Equal(t, 1, c.WindowDays(-3))
	assert.Equal(t, 30, c.WindowDays(45))
	assert.Equal(t, 14, c.WindowDays(14))

	// 250 次浏览只计 2 分
	assert.Equal(t, 2+2+3+2, c.HotScore(250, 1, 1, 1))
	assert.Equal(t, "((views) / 100 + 2 * (l) + 3 * (f) + 2 * (c))", c.ScoreSQL("views", "l", "f", "c"))

	assert.Equal(t, []int{100, 80, 40}, c.Normalize([]int{5, 4, 2}))
	assert.Equal(t, []int{0, 0}, c.Normalize([]int{0, 0}))
	assert.Equal(t, []int{100, 0}, c.Normalize([]int{3, -1}))
	assert.Empty(t, c.Normalize(nil))
}
