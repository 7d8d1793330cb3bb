package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRateLimited         = errors.New("rate limited")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrBanned              = errors.New("account banned")
	ErrMuted               = errors.New("account muted")
	ErrConflict            = errors.New("conflict")
)

// ValidationError 字段级校验失败，errors.Is(err, ErrInvalidInput) 为 true
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// Clock 业务时钟：日期与年度窗口按配置时区计算
type Clock struct {
	Loc *time.Location
	Now func() time.Time
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Loc: loc, Now: time.Now}
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Clock) loc() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// Current 当前时刻（本地时区）
func (c Clock) Current() time.Time {
	return c.now().In(c.loc())
}

// Today 本地日历日期，作为每日统计行的 day 键
func (c Clock) Today() string {
	return c.Current().Format("2006-01-02")
}

// YearWindow 本地时区当年 [1 月 1 日, 次年 1 月 1 日)，以 UTC 返回
func (c Clock) YearWindow() (time.Time, time.Time) {
	now := c.Current()
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, c.loc())
	return start.UTC(), start.AddDate(1, 0, 0).UTC()
}

// RequestMeta 请求来源信息，写入审计日志
type RequestMeta struct {
	IP        string
	UserAgent string
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
