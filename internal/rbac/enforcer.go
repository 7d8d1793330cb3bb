package rbac

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"plforum/internal/metrics"
	"plforum/internal/models"

	"github.com/casbin/casbin/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type decisionKey struct {
	gen                int64
	sub, dom, obj, act string
}

// Enforcer 缓存已加载的 casbin 模型。每次判定前比较库中版本号，
// 过期则重新加载，所以任何写入路径都不需要手动失效缓存。
type Enforcer struct {
	db  *gorm.DB
	log *zap.Logger

	mu        sync.Mutex
	ce        *casbin.Enforcer
	loadedGen int64

	decisions *lru.Cache[decisionKey, bool]
}

func NewEnforcer(db *gorm.DB, log *zap.Logger) (*Enforcer, error) {
	m, err := newModel()
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	ce, err := casbin.NewEnforcer(m, NewAdapter(db))
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	// 写入统一走 Adapter，casbin 自身只负责判定
	ce.EnableAutoSave(false)

	decisions, err := lru.New[decisionKey, bool](4096)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Enforcer{
		db:        db,
		log:       log,
		ce:        ce,
		loadedGen: -1,
		decisions: decisions,
	}, nil
}

// SubjectKey 优先使用公开 pid，否则使用内部 ID
func SubjectKey(u *models.User) string {
	if u.Pid != "" {
		return u.Pid
	}
	return strconv.FormatUint(uint64(u.ID), 10)
}

// Enforce 判定 user 能否在 dom 上对 obj 执行 act。
// 超级管理员直接放行，匿名直接拒绝；直接规则不命中时 is_staff 用户再以 role:staff 判定。
func (e *Enforcer) Enforce(ctx context.Context, user *models.User, dom, obj, act string) (bool, error) {
	if user == nil || user.ID == 0 {
		metrics.RBACDecision(false, "anonymous")
		return false, nil
	}
	if user.IsSuperuser {
		metrics.RBACDecision(true, "superuser")
		return true, nil
	}

	ok, err := e.evaluate(ctx, SubjectKey(user), dom, obj, act)
	if err != nil {
		return false, err
	}
	if ok {
		metrics.RBACDecision(true, "direct")
		return true, nil
	}

	if user.IsStaff {
		ok, err = e.evaluate(ctx, RoleStaff, dom, obj, act)
		if err != nil {
			return false, err
		}
		metrics.RBACDecision(ok, "role")
		return ok, nil
	}

	metrics.RBACDecision(false, "direct")
	return false, nil
}

func (e *Enforcer) evaluate(ctx context.Context, sub, dom, obj, act string) (bool, error) {
	gen, err := e.refresh(ctx)
	if err != nil {
		return false, err
	}

	key := decisionKey{gen: gen, sub: sub, dom: dom, obj: obj, act: act}
	if v, ok := e.decisions.Get(key); ok {
		return v, nil
	}

	e.mu.Lock()
	ok, err := e.ce.Enforce(sub, dom, obj, act)
	e.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("rbac enforce: %w", err)
	}
	e.decisions.Add(key, ok)
	return ok, nil
}

// refresh 先读版本号再加载规则：加载期间若有新写入，版本号更大，下次判定会再次加载
func (e *Enforcer) refresh(ctx context.Context) (int64, error) {
	gen, err := currentGeneration(e.db.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("rbac generation: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen == e.loadedGen {
		return gen, nil
	}
	if err := e.ce.LoadPolicy(); err != nil {
		return 0, fmt.Errorf("rbac load policy: %w", err)
	}
	e.loadedGen = gen
	e.decisions.Purge()
	metrics.RBACReload()
	e.log.Debug("rbac policy reloaded", zap.Int64("generation", gen))
	return gen, nil
}

func (e *Enforcer) invalidate() {
	e.mu.Lock()
	e.loadedGen = -1
	e.mu.Unlock()
	e.decisions.Purge()
}

// Policy 一条 p 规则
type Policy struct {
	Sub string `json:"sub" binding:"required"`
	Dom string `json:"dom"`
	Obj string `json:"obj" binding:"required"`
	Act string `json:"act" binding:"required"`
}

// Assignment 一条 g 规则：用户在域内拥有角色
type Assignment struct {
	User string `json:"user" binding:"required"`
	Role string `json:"role" binding:"required"`
	Dom  string `json:"dom"`
}

func orAny(dom string) string {
	if dom == "" {
		return AnyDomain
	}
	return dom
}

// AddPolicy 返回是否实际新增，重复规则返回 false
func (e *Enforcer) AddPolicy(ctx context.Context, p Policy) (bool, error) {
	added, err := e.adapterFor(ctx).addPolicy("p", []string{p.Sub, orAny(p.Dom), p.Obj, p.Act})
	e.invalidate()
	return added, err
}

func (e *Enforcer) RemovePolicy(ctx context.Context, p Policy) (bool, error) {
	removed, err := e.adapterFor(ctx).removePolicy("p", []string{p.Sub, orAny(p.Dom), p.Obj, p.Act})
	e.invalidate()
	return removed, err
}

func (e *Enforcer) AddRoleForUser(ctx context.Context, a Assignment) (bool, error) {
	added, err := e.adapterFor(ctx).addPolicy("g", []string{a.User, a.Role, orAny(a.Dom)})
	e.invalidate()
	return added, err
}

func (e *Enforcer) DeleteRoleForUser(ctx context.Context, a Assignment) (bool, error) {
	removed, err := e.adapterFor(ctx).removePolicy("g", []string{a.User, a.Role, orAny(a.Dom)})
	e.invalidate()
	return removed, err
}

// DeleteSubject 删除某主体的全部直接规则与角色分配
func (e *Enforcer) DeleteSubject(ctx context.Context, sub string) error {
	a := e.adapterFor(ctx)
	defer e.invalidate()
	if err := a.RemoveFilteredPolicy("p", "p", 0, sub); err != nil {
		return err
	}
	return a.RemoveFilteredPolicy("g", "g", 0, sub)
}

// Policies 直接读库，不经过缓存
func (e *Enforcer) Policies(ctx context.Context) ([]Policy, error) {
	var rows []models.CasbinRule
	if err := e.db.WithContext(ctx).Where("ptype = ?", "p").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Policy, 0, len(rows))
	for _, r := range rows {
		out = append(out, Policy{Sub: r.V0, Dom: r.V1, Obj: r.V2, Act: r.V3})
	}
	return out, nil
}

func (e *Enforcer) Assignments(ctx context.Context) ([]Assignment, error) {
	var rows []models.CasbinRule
	if err := e.db.WithContext(ctx).Where("ptype = ?", "g").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Assignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, Assignment{User: r.V0, Role: r.V1, Dom: orAny(r.V2)})
	}
	return out, nil
}

func (e *Enforcer) adapterFor(ctx context.Context) *Adapter {
	return NewAdapter(e.db.WithContext(ctx))
}
