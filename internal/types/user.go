package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleOwner UserRole = "owner"
	UserRoleUser  UserRole = "user"
)

// User is the balance/hierarchy record. Balance and CommissionEarned are held
// in minor units (paise) so arithmetic never touches floating point. ParentID
// is nil for forest roots; depth is always recomputed from the parent chain,
// never stored.
type User struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username         string     `gorm:"uniqueIndex;not null;column:username" json:"username"`
	Email            string     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Role             UserRole   `gorm:"not null;default:user;column:role" json:"role"`
	ParentID         *uuid.UUID `gorm:"type:uuid;index;column:parent_id" json:"parentId,omitempty"`
	Balance          int64      `gorm:"not null;default:0;column:balance" json:"-"`
	CommissionEarned int64      `gorm:"not null;default:0;column:commission_earned" json:"-"`
	// No column default: a default tag makes gorm omit the zero value from
	// the INSERT, silently storing false users as active.
	IsActive  bool      `gorm:"not null;column:is_active" json:"isActive"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string {
	return "user"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// UserView is the boundary representation: monetary fields as fixed-point
// decimals, level filled in from the hierarchy snapshot.
type UserView struct {
	ID               uuid.UUID       `json:"id"`
	Username         string          `json:"username"`
	Email            string          `json:"email"`
	Role             UserRole        `json:"role"`
	ParentID         *uuid.UUID      `json:"parentId,omitempty"`
	Level            int             `json:"level"`
	Balance          decimal.Decimal `json:"balance"`
	CommissionEarned decimal.Decimal `json:"commissionEarned"`
	IsActive         bool            `json:"isActive"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (u *User) View(level int) UserView {
	return UserView{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		Role:             u.Role,
		ParentID:         u.ParentID,
		Level:            level,
		Balance:          decimal.New(u.Balance, -2),
		CommissionEarned: decimal.New(u.CommissionEarned, -2),
		IsActive:         u.IsActive,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}
