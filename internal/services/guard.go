package services

import "plforum/internal/models"

// Rank 账号权限等级，全序
type Rank int

const (
	RankAnonymous Rank = iota
	RankRegular
	RankStaff
	RankSuperuser
)

func (r Rank) String() string {
	switch r {
	case RankSuperuser:
		return "superuser"
	case RankStaff:
		return "staff"
	case RankRegular:
		return "user"
	default:
		return "anonymous"
	}
}

// RankOf 由角色字段计算等级，nil 视为匿名
func RankOf(u *models.User) Rank {
	switch {
	case u == nil || u.ID == 0:
		return RankAnonymous
	case u.IsSuperuser:
		return RankSuperuser
	case u.IsStaff:
		return RankStaff
	default:
		return RankRegular
	}
}

// AssertCanManage 只有等级严格高于目标才能管理对方，否则返回 ErrPermissionDenied
func AssertCanManage(actor, target *models.User) error {
	if RankOf(actor) > RankOf(target) {
		return nil
	}
	return ErrPermissionDenied
}
