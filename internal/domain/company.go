package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Defaults applied to a company row before setup.
var (
	DefaultEquityPct = decimal.RequireFromString("0.15")
	DefaultValuation = decimal.NewFromInt(1_000_000)
)

// Company is the issuer side of the marketplace. Name, supply, equity and valuation are
// fixed once both AssetID and AppID are set.
type Company struct {
	CompanyID uuid.UUID       `gorm:"column:company_id;type:uuid;primaryKey" json:"company_id"`
	AccountID uuid.UUID       `gorm:"column:account_id;type:uuid;not null;uniqueIndex" json:"account_id"`
	Account   *Account        `gorm:"foreignKey:AccountID;references:AccountID" json:"-"`
	Name      string          `gorm:"column:name;not null;default:''" json:"name"`
	UnitName  string          `gorm:"column:unit_name;type:varchar(8)" json:"unit_name"`
	AssetName string          `gorm:"column:asset_name" json:"asset_name"`
	AssetID   *uint64         `gorm:"column:asset_id" json:"asset_id"`
	AppID     *uint64         `gorm:"column:app_id" json:"app_id"`
	Supply    uint64          `gorm:"column:supply;not null;default:0" json:"supply"`
	EquityPct decimal.Decimal `gorm:"column:equity_pct;type:decimal(10,6);not null" json:"equity_pct"`
	Valuation decimal.Decimal `gorm:"column:valuation;type:decimal(20,2);not null" json:"valuation"`
	CreatedAt time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Company) TableName() string {
	return "Companies"
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.CompanyID == uuid.Nil {
		c.CompanyID = uuid.New()
	}
	if c.EquityPct.IsZero() {
		c.EquityPct = DefaultEquityPct
	}
	if c.Valuation.IsZero() {
		c.Valuation = DefaultValuation
	}
	return nil
}

// Locked reports whether the pricing fields are frozen.
func (c *Company) Locked() bool {
	return c.AssetID != nil && c.AppID != nil
}

// Onboarded reports whether the company can post jobs and take part in price refreshes.
func (c *Company) Onboarded() bool {
	return c.Name != "" && c.Locked()
}
