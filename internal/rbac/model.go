// Package rbac evaluates (subject, domain, object, action) policies with casbin,
// backed by the casbin_rules table and a persisted generation counter.
package rbac

import (
	"github.com/casbin/casbin/v2/model"
)

// RoleStaff 所有 is_staff 用户在直接规则不命中时回退使用的主体
const RoleStaff = "role:staff"

// AnyDomain 匹配任意域
const AnyDomain = "*"

// 域通配 * 匹配任意请求域；g 的第三个参数为域，* 表示角色在所有域生效
const modelText = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (r.sub == p.sub || g(r.sub, p.sub, r.dom) || g(r.sub, p.sub, "*")) && (p.dom == "*" || r.dom == p.dom) && r.obj == p.obj && r.act == p.act
`

func newModel() (model.Model, error) {
	return model.NewModelFromString(modelText)
}
