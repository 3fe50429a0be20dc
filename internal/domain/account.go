package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account roles.
const (
	RoleCompany   = "company"
	RoleDeveloper = "developer"
)

// Account is a marketplace participant with its ledger wallet.
type Account struct {
	AccountID   uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey" json:"account_id"`
	Email       string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Role        string    `gorm:"column:role;type:varchar(16);not null" json:"role"`
	FirstName   string    `gorm:"column:first_name" json:"first_name"`
	LastName    string    `gorm:"column:last_name" json:"last_name"`
	LinkedInURL *string   `gorm:"column:linkedin_url" json:"linkedin_url,omitempty"`
	HomeAddress string    `gorm:"column:home_address" json:"home_address,omitempty"`
	Address     string    `gorm:"column:address;not null" json:"address"`
	Mnemonic    string    `gorm:"column:mnemonic;not null" json:"-"`
	CreatedAt   time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Account) TableName() string {
	return "Accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.AccountID == uuid.Nil {
		a.AccountID = uuid.New()
	}
	return nil
}
