package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"plforum/internal/models"
	"plforum/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 年度修改次数上限
const (
	NicknameChangesPerYear = 12
	UsernameChangesPerYear = 4

	maxNicknameLen = 20
	maxUsernameLen = 20
	maxBioLen      = 200
	minPasswordLen = 8
)

var usernamePattern = regexp.MustCompile(`^@[a-z0-9_]+$`)

// ProfileService 注册登录与个人资料修改
type ProfileService struct {
	db     *gorm.DB
	clock  Clock
	log    *zap.Logger
	ledger *Ledger
	audit  *AuditTrail
}

func NewProfileService(db *gorm.DB, clock Clock, ledger *Ledger, audit *AuditTrail, log *zap.Logger) *ProfileService {
	return &ProfileService{db: db, clock: clock, ledger: ledger, audit: audit, log: orNop(log)}
}

// ChangeResult 付费修改的结果
type ChangeResult struct {
	Value   string `json:"value"`
	Balance int    `json:"plcoin"`
	Used    int64  `json:"used"`
	Limit   int    `json:"limit"`
	Cost    int    `json:"cost"`
}

func rejectAngleBrackets(field, s string) error {
	if strings.ContainsAny(s, "<>") {
		return invalid(field, "must not contain < or >")
	}
	return nil
}

// ValidateUsername 规范化并校验 @handle
func ValidateUsername(raw string) (string, error) {
	username := strings.ToLower(strings.TrimSpace(raw))
	if username == "" {
		return "", invalid("username", "required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLen {
		return "", invalid("username", "must be at most 20 characters")
	}
	if !strings.HasPrefix(username, "@") {
		return "", invalid("username", "must start with @")
	}
	if !usernamePattern.MatchString(username) {
		return "", invalid("username", "only letters, digits and underscore are allowed")
	}
	return username, nil
}

func validateNickname(raw string) (string, error) {
	nickname := strings.TrimSpace(raw)
	if nickname == "" {
		return "", invalid("nickname", "required")
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLen {
		return "", invalid("nickname", "must be at most 20 characters")
	}
	if err := rejectAngleBrackets("nickname", nickname); err != nil {
		return "", err
	}
	return nickname, nil
}

func (s *ProfileService) usernameTaken(db *gorm.DB, username string, exceptID uint) (bool, error) {
	var count int64
	err := db.Model(&models.User{}).
		Where("LOWER(username) = ? AND id <> ?", username, exceptID).
		Count(&count).Error
	return count > 0, err
}

// Register 创建账号，密码 bcrypt 存储
func (s *ProfileService) Register(ctx context.Context, username, password, nickname string, meta RequestMeta) (*models.User, error) {
	username, err := ValidateUsername(username)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return nil, invalid("password", "must be at least 8 characters")
	}
	if strings.TrimSpace(nickname) != "" {
		if nickname, err = validateNickname(nickname); err != nil {
			return nil, err
		}
	}

	db := s.db.WithContext(ctx)
	taken, err := s.usernameTaken(db, username, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, invalid("username", "already taken")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{Username: username, Password: hash, Nickname: nickname}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid("username", "already taken")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.audit.Write(ctx, AuditEntry{
		Actor: &user, Action: AuditUserRegister, TargetType: "user",
		TargetID: strconv.FormatUint(uint64(user.ID), 10), Meta: meta,
	})
	return &user, nil
}

// Authenticate 支持 @handle 或 8 位 pid 登录
func (s *ProfileService) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, invalid("credentials", "required")
	}

	q := s.db.WithContext(ctx)
	var user models.User
	var err error
	if len(identifier) == 8 && isDigits(identifier) {
		err = q.Where("pid = ?", identifier).First(&user).Error
	} else {
		err = q.Where("LOWER(username) = ?", models.NormalizeUsername(identifier)).First(&user).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("credentials", "invalid username or password")
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, invalid("credentials", "invalid username or password")
	}
	return &user, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ChangePassword 修改密码
func (s *ProfileService) ChangePassword(ctx context.Context, user *models.User, current, next string, meta RequestMeta) error {
	if !utils.CheckPasswordHash(current, user.Password) {
		return invalid("current_password", "incorrect password")
	}
	if utf8.RuneCountInString(next) < minPasswordLen {
		return invalid("new_password", "must be at least 8 characters")
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		UpdateColumn("password", hash).Error; err != nil {
		return err
	}
	s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditPasswordChange, TargetType: "user",
		TargetID: strconv.FormatUint(uint64(user.ID), 10), Meta: meta})
	return nil
}

// RecordLogin 记录当天登录，重复调用无副作用
func (s *ProfileService) RecordLogin(ctx context.Context, userID uint) error {
	row := models.DailyLoginStat{UserID: userID, Day: s.clock.Today()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoNothing: true,
	}).Create(&row).Error
}

// LoginDays 累计登录天数
func (s *ProfileService) LoginDays(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.DailyLoginStat{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// UpdateBio 免费修改简介
func (s *ProfileService) UpdateBio(ctx context.Context, user *models.User, bio string, meta RequestMeta) (string, error) {
	bio = strings.TrimSpace(bio)
	if utf8.RuneCountInString(bio) > maxBioLen {
		return "", invalid("bio", "must be at most 200 characters")
	}
	if err := rejectAngleBrackets("bio", bio); err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		UpdateColumn("bio", bio).Error; err != nil {
		return "", err
	}
	s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditProfileBio, TargetType: "user",
		TargetID: strconv.FormatUint(uint64(user.ID), 10), Meta: meta})
	return bio, nil
}

// purchase 在一个事务里锁用户行、执行修改并扣积分。
// apply 返回本次费用和是否需要修改，不需要修改时不扣分。
func (s *ProfileService) purchase(ctx context.Context, userID uint, action string,
	apply func(tx *gorm.DB, current *models.User) (int, bool, error)) (balance int, cost int, changed bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var err error
		cost, changed, err = apply(tx, &current)
		if err != nil {
			return err
		}
		if !changed {
			balance = current.ActivityScore
			return nil
		}
		balance, err = s.ledger.Spend(tx, userID, cost, action)
		return err
	})
	return balance, cost, changed, err
}

// ChangeNickname 每次 3 积分，每年 12 次，与当前昵称相同时免费且不计次。
// 年度次数在用户行锁内统计，计数用的审计记录随同一事务提交
func (s *ProfileService) ChangeNickname(ctx context.Context, user *models.User, raw string, meta RequestMeta) (*ChangeResult, error) {
	nickname, err := validateNickname(raw)
	if err != nil {
		return nil, err
	}

	res := &ChangeResult{Value: nickname, Limit: NicknameChangesPerYear, Cost: CostNicknameChange}
	balance, _, changed, err := s.purchase(ctx, user.ID, ActionNicknameChange,
		func(tx *gorm.DB, current *models.User) (int, bool, error) {
			used, err := s.audit.countThisYear(tx, current.ID, AuditProfileNickname)
			if err != nil {
				return 0, false, err
			}
			res.Used = used
			if strings.TrimSpace(current.Nickname) == nickname {
				return 0, false, nil
			}
			if used >= NicknameChangesPerYear {
				return 0, false, ErrRateLimited
			}
			if err := tx.Model(&models.User{}).Where("id = ?", current.ID).UpdateColumn("nickname", nickname).Error; err != nil {
				return 0, false, err
			}
			err = s.audit.writeIn(tx, AuditEntry{Actor: user, Action: AuditProfileNickname, TargetType: "user",
				TargetID: strconv.FormatUint(uint64(user.ID), 10), Meta: meta,
				Metadata: map[string]interface{}{"cost": CostNicknameChange, "nickname": nickname}})
			return CostNicknameChange, true, err
		})
	if err != nil {
		return nil, err
	}
	res.Balance = balance
	if !changed {
		res.Cost = 0
		return res, nil
	}
	res.Used++
	return res, nil
}

// ChangeUsername 每次 10 积分，每年 4 次，大小写不敏感唯一。次数统计方式同 ChangeNickname
func (s *ProfileService) ChangeUsername(ctx context.Context, user *models.User, raw string, meta RequestMeta) (*ChangeResult, error) {
	username, err := ValidateUsername(raw)
	if err != nil {
		return nil, err
	}

	res := &ChangeResult{Value: username, Limit: UsernameChangesPerYear, Cost: CostUsernameChange}
	balance, _, changed, err := s.purchase(ctx, user.ID, ActionUsernameChange,
		func(tx *gorm.DB, current *models.User) (int, bool, error) {
			used, err := s.audit.countThisYear(tx, current.ID, AuditProfileUsername)
			if err != nil {
				return 0, false, err
			}
			res.Used = used
			if strings.ToLower(current.Username) == username {
				return 0, false, nil
			}
			taken, err := s.usernameTaken(tx, username, current.ID)
			if err != nil {
				return 0, false, err
			}
			if taken {
				return 0, false, invalid("username", "already taken")
			}
			if used >= UsernameChangesPerYear {
				return 0, false, ErrRateLimited
			}
			err = tx.Model(&models.User{}).Where("id = ?", current.ID).UpdateColumn("username", username).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return 0, false, invalid("username", "already taken")
			}
			if err != nil {
				return 0, false, err
			}
			err = s.audit.writeIn(tx, AuditEntry{Actor: user, Action: AuditProfileUsername, TargetType: "user",
				TargetID: strconv.FormatUint(uint64(user.ID), 10), Meta: meta,
				Metadata: map[string]interface{}{
					"cost":            CostUsernameChange,
					"username":        username,
					"username_before": current.Username,
					"username_after":  username,
				}})
			return CostUsernameChange, true, err
		})
	if err != nil {
		return nil, err
	}
	res.Balance = balance
	if !changed {
		res.Cost = 0
		return res, nil
	}
	res.Used++
	return res, nil
}

// AvatarCost 首次设置免费，之后每次 10 积分
func AvatarCost(u *models.User) int {
	if u.Avatar == "" {
		return 0
	}
	return CostAvatarChange
}

// ChangeAvatar 头像为外部图片地址
func (s *ProfileService) ChangeAvatar(ctx context.Context, user *models.User, rawURL string, meta RequestMeta) (*ChangeResult, error) {
	avatar := strings.TrimSpace(rawURL)
	u, err := url.Parse(avatar)
	if avatar == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid("avatar", "must be an http(s) URL")
	}
	if len(avatar) > 500 {
		return nil, invalid("avatar", "URL too long")
	}

	balance, cost, changed, err := s.purchase(ctx, user.ID, ActionAvatarChange,
		func(tx *gorm.DB, current *models.User) (int, bool, error) {
			if current.Avatar == avatar {
				return 0, false, nil
			}
			err := tx.Model(&models.User{}).Where("id = ?", current.ID).UpdateColumn("avatar", avatar).Error
			return AvatarCost(current), true, err
		})
	if err != nil {
		return nil, err
	}
	if changed {
		s.audit.Write(ctx, AuditEntry{Actor: user, Action: AuditProfileAvatar, TargetType: "user",
			TargetID: strconv.FormatUint(uint64(user.ID), 10), Meta: meta,
			Metadata: map[string]interface{}{"cost": cost}})
	}
	return &ChangeResult{Value: avatar, Balance: balance, Cost: cost}, nil
}
