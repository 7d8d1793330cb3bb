package db

import (
	_ "embed"
	"fmt"

	"plforum/internal/models"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

//go:embed seed.yaml
var seedYAML []byte

// Init 连接数据库、迁移并写入初始数据，失败直接退出
func Init(dsn string) *gorm.DB {
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}
	zap.L().Info("Database connection established")

	if err := Migrate(DB); err != nil {
		zap.L().Fatal("Failed to migrate database", zap.Error(err))
	}
	zap.L().Info("Database migration completed")

	if err := Seed(DB); err != nil {
		zap.L().Fatal("Failed to seed database", zap.Error(err))
	}
	return DB
}

// Migrate 自动迁移全部模型
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Board{},
		&models.StaffBoardPermission{},
		&models.BoardFollow{},
		&models.UserFollow{},
		&models.Post{},
		&models.PostRevision{},
		&models.Comment{},
		&models.PostLike{},
		&models.PostFavorite{},
		&models.ResourceLink{},
		&models.DownloadEvent{},
		&models.Notification{},
		// 积分与配额
		&models.PointLog{},
		&models.DailyPointStat{},
		&models.DailyDownloadStat{},
		&models.DailyLoginStat{},
		// 审计与权限
		&models.AuditLog{},
		&models.CasbinRule{},
		&models.PolicyVersion{},
	)
}

type seedData struct {
	Boards []struct {
		Slug        string `yaml:"slug"`
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		SortOrder   int    `yaml:"sort_order"`
	} `yaml:"boards"`
	Policies [][]string `yaml:"policies"`
}

// Seed 写入初始板块、默认策略和策略版本行，可重复执行
func Seed(db *gorm.DB) error {
	var data seedData
	if err := yaml.Unmarshal(seedYAML, &data); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, b := range data.Boards {
			board := models.Board{
				Slug:        b.Slug,
				Title:       b.Title,
				Description: b.Description,
				SortOrder:   b.SortOrder,
				IsActive:    true,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "slug"}},
				DoNothing: true,
			}).Create(&board).Error; err != nil {
				return fmt.Errorf("seed board %s: %w", b.Slug, err)
			}
		}

		for _, p := range data.Policies {
			if len(p) != 4 {
				return fmt.Errorf("seed policy %v: want 4 values", p)
			}
			rule := models.CasbinRule{Ptype: "p", V0: p[0], V1: p[1], V2: p[2], V3: p[3]}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rule).Error; err != nil {
				return fmt.Errorf("seed policy %v: %w", p, err)
			}
		}

		// 版本行固定 id=1，策略变更时递增
		version := models.PolicyVersion{ID: 1}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&version).Error
	})
}
