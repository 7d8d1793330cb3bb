package models

import "strings"

// CasbinRule 策略规则存储。ptype 为 p 时 v0..v3 = sub, dom, obj, act；
// 为 g 时 v0..v2 = user, role, dom。整行元组唯一。
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Ptype string `gorm:"size:8;not null;uniqueIndex:uniq_casbin_rule;index:idx_casbin_ptype_v0,priority:1" json:"ptype"`
	V0    string `gorm:"size:255;not null;default:'';uniqueIndex:uniq_casbin_rule;index:idx_casbin_ptype_v0,priority:2" json:"v0"`
	V1    string `gorm:"size:255;not null;default:'';uniqueIndex:uniq_casbin_rule" json:"v1"`
	V2    string `gorm:"size:255;not null;default:'';uniqueIndex:uniq_casbin_rule" json:"v2"`
	V3    string `gorm:"size:255;not null;default:'';uniqueIndex:uniq_casbin_rule" json:"v3"`
	V4    string `gorm:"size:255;not null;default:'';uniqueIndex:uniq_casbin_rule" json:"v4"`
	V5    string `gorm:"size:255;not null;default:'';uniqueIndex:uniq_casbin_rule" json:"v5"`
}

func (r CasbinRule) String() string {
	parts := []string{r.Ptype, r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// PolicyVersion 单行表，策略每次变更时递增 Generation，
// 进程内缓存据此判断是否需要重新加载。
type PolicyVersion struct {
	ID         uint  `gorm:"primaryKey" json:"id"`
	Generation int64 `gorm:"not null;default:0" json:"generation"`
}
