package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Holding is a developer's cumulative token balance in one company's asset, kept
// off-chain as a cache of settled transfers. It only ever grows.
type Holding struct {
	HoldingID   uuid.UUID `gorm:"column:holding_id;type:uuid;primaryKey" json:"holding_id"`
	DeveloperID uuid.UUID `gorm:"column:developer_id;type:uuid;not null;uniqueIndex:idx_holding_owner" json:"developer_id"`
	CompanyID   uuid.UUID `gorm:"column:company_id;type:uuid;not null;uniqueIndex:idx_holding_owner" json:"company_id"`
	AssetID     uint64    `gorm:"column:asset_id;not null;uniqueIndex:idx_holding_owner" json:"asset_id"`
	TokensHeld  uint64    `gorm:"column:tokens_held;not null;default:0" json:"tokens_held"`
	CreatedAt   time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Holding) TableName() string {
	return "DeveloperHoldings"
}

// BeforeCreate: never insert zero UUID for primary key; generate random when not set.
func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	if h.HoldingID == uuid.Nil {
		h.HoldingID = uuid.New()
	}
	return nil
}
