package db

import (
	"time"

	"shopadmin/internal/auth"
	"shopadmin/internal/config"
	"shopadmin/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect 负责建立到 Postgres 的连接，并带有简单的重试来等待容器就绪。
func Connect(dsn string) (*gorm.DB, error) {
	var gdb *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err == nil {
			sqlDB, err2 := gdb.DB()
			if err2 == nil {
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetMaxOpenConns(20)
				sqlDB.SetConnMaxLifetime(time.Hour)
				return gdb, nil
			}
			err = err2
		}
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}
	return nil, err
}

// Migrate 自动迁移全部表结构，并补齐四个固定角色。
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.RefreshToken{},
		&models.ChatMessage{},
		&models.AuditLog{},
	); err != nil {
		return err
	}
	for _, name := range auth.RoleNames() {
		role := models.Role{Name: name}
		if err := gdb.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
			return err
		}
	}
	return nil
}

// EnsureOwner 按配置创建初始 OWNER 账号，已存在则跳过。
func EnsureOwner(gdb *gorm.DB, cfg config.Config) error {
	if cfg.OwnerUsername == "" || cfg.OwnerPassword == "" {
		return nil
	}
	var count int64
	if err := gdb.Model(&models.User{}).Where("username = ?", cfg.OwnerUsername).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := auth.HashPassword(cfg.OwnerPassword)
	if err != nil {
		return err
	}
	var owner models.Role
	if err := gdb.Where("name = ?", string(auth.RoleOwner)).First(&owner).Error; err != nil {
		return err
	}
	user := models.User{
		Username:     cfg.OwnerUsername,
		Email:        cfg.OwnerUsername + "@local",
		PasswordHash: hash,
		Roles:        []models.Role{owner},
	}
	return gdb.Create(&user).Error
}
