package rbac

import (
	"strings"

	"plforum/internal/models"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ruleArity = 6

// Adapter 把 casbin 规则存到 casbin_rules 表。
// 每次写规则都在同一事务内递增 rbac 版本号，其他进程据此发现变更。
type Adapter struct {
	db *gorm.DB
}

var _ persist.Adapter = (*Adapter)(nil)

func NewAdapter(db *gorm.DB) *Adapter {
	return &Adapter{db: db}
}

// padRule 不足补空串，超出截断，保证固定 6 列
func padRule(rule []string) [ruleArity]string {
	var v [ruleArity]string
	for i := 0; i < len(rule) && i < ruleArity; i++ {
		v[i] = strings.TrimSpace(rule[i])
	}
	return v
}

func toRow(ptype string, rule []string) models.CasbinRule {
	v := padRule(rule)
	return models.CasbinRule{Ptype: ptype, V0: v[0], V1: v[1], V2: v[2], V3: v[3], V4: v[4], V5: v[5]}
}

// values 去掉末尾空列
func values(r models.CasbinRule) []string {
	vals := []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	n := len(vals)
	for n > 0 && vals[n-1] == "" {
		n--
	}
	return vals[:n]
}

func (a *Adapter) LoadPolicy(m model.Model) error {
	var rules []models.CasbinRule
	if err := a.db.Order("id").Find(&rules).Error; err != nil {
		return err
	}
	for _, r := range rules {
		line := append([]string{r.Ptype}, values(r)...)
		if err := persist.LoadPolicyArray(line, m); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) SavePolicy(m model.Model) error {
	var rows []models.CasbinRule
	for _, sec := range []string{"p", "g"} {
		for ptype, ast := range m[sec] {
			for _, rule := range ast.Policy {
				rows = append(rows, toRow(ptype, rule))
			}
		}
	}

	return a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.CasbinRule{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return err
			}
		}
		return bumpGeneration(tx)
	})
}

// AddPolicy 重复插入是空操作
func (a *Adapter) AddPolicy(sec string, ptype string, rule []string) error {
	_, err := a.addPolicy(ptype, rule)
	return err
}

func (a *Adapter) addPolicy(ptype string, rule []string) (bool, error) {
	row := toRow(ptype, rule)
	var added bool
	err := a.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected > 0
		if !added {
			return nil
		}
		return bumpGeneration(tx)
	})
	return added, err
}

func (a *Adapter) RemovePolicy(sec string, ptype string, rule []string) error {
	_, err := a.removePolicy(ptype, rule)
	return err
}

func (a *Adapter) removePolicy(ptype string, rule []string) (bool, error) {
	row := toRow(ptype, rule)
	var removed bool
	err := a.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where(
			"ptype = ? AND v0 = ? AND v1 = ? AND v2 = ? AND v3 = ? AND v4 = ? AND v5 = ?",
			row.Ptype, row.V0, row.V1, row.V2, row.V3, row.V4, row.V5,
		).Delete(&models.CasbinRule{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		if !removed {
			return nil
		}
		return bumpGeneration(tx)
	})
	return removed, err
}

// RemoveFilteredPolicy 从 fieldIndex 开始按非空字段过滤删除
func (a *Adapter) RemoveFilteredPolicy(sec string, ptype string, fieldIndex int, fieldValues ...string) error {
	columns := []string{"v0", "v1", "v2", "v3", "v4", "v5"}
	return a.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Where("ptype = ?", ptype)
		for i, v := range fieldValues {
			idx := fieldIndex + i
			if v == "" || idx >= len(columns) {
				continue
			}
			q = q.Where(columns[idx]+" = ?", v)
		}
		res := q.Delete(&models.CasbinRule{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return bumpGeneration(tx)
	})
}

func bumpGeneration(tx *gorm.DB) error {
	res := tx.Model(&models.PolicyVersion{}).
		Where("id = ?", 1).
		UpdateColumn("generation", gorm.Expr("generation + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PolicyVersion{ID: 1, Generation: 1}).Error
	}
	return nil
}

func currentGeneration(db *gorm.DB) (int64, error) {
	var v models.PolicyVersion
	err := db.Where("id = ?", 1).Limit(1).Find(&v).Error
	return v.Generation, err
}
