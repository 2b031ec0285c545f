package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an operator account. Campaigns and their logs belong to the user who created them.
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Username     string     `json:"username" gorm:"type:varchar(255);not null;unique;index"`
	Email        string     `json:"email" gorm:"type:varchar(255);not null;unique;index"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255);not null"`
	IsActive     bool       `json:"is_active" gorm:"default:true;index"`
	IsAdmin      bool       `json:"is_admin" gorm:"default:false"`
	TokenVersion uint       `json:"-" gorm:"default:0"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns an id
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// Actor returns the acting identity of u
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Username: u.Username}
}
