package models

import "time"

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	FirstName    string `gorm:"size:64"`
	LastName     string `gorm:"size:64"`
	PasswordHash string `gorm:"not null"`
	Roles        []Role `gorm:"many2many:user_roles"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Role struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;size:32;not null"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Revoked   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
}

type ChatMessage struct {
	ID         uint   `gorm:"primaryKey"`
	SenderID   uint   `gorm:"index:idx_chat_pair;not null"`
	ReceiverID uint   `gorm:"index:idx_chat_pair;not null"`
	Body       string `gorm:"type:text;not null"`
	Read       bool   `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type AuditLog struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    uint   `gorm:"index"`
	Action    string `gorm:"size:32;not null"`
	Detail    string `gorm:"size:256"`
	CreatedAt time.Time
}
