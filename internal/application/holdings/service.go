package holdings

import (
	"context"
	"errors"
	"math/big"

	"ventry-backend/internal/domain"
	"ventry-backend/internal/ledger"
	"ventry-backend/internal/pkg/logging"
	"ventry-backend/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrDeveloperNotFound = errors.New("developer not found")

// PriceReader serves oracle state, normally through the price cache.
type PriceReader interface {
	State(ctx context.Context, contractID uint64) (ledger.PriceState, error)
}

// Service encapsulates holdings operations.
type Service struct {
	DB     *gorm.DB
	Prices PriceReader
}

// View is one holding valued at the company's current on-chain price. When the
// price cannot be read, PriceAvailable is false and the value is zero.
type View struct {
	HoldingID      uuid.UUID       `json:"holding_id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	CompanyName    string          `json:"company_name"`
	AssetID        uint64          `json:"asset_id"`
	AppID          *uint64         `json:"app_id"`
	Tokens         uint64          `json:"tokens"`
	PriceScaled    uint64          `json:"price_scaled"`
	Price          decimal.Decimal `json:"price"`
	Value          decimal.Decimal `json:"value"`
	PriceAvailable bool            `json:"price_available"`
}

// Portfolio is a developer's holdings with their total value.
type Portfolio struct {
	DeveloperID uuid.UUID       `json:"developer_id"`
	Holdings    []View          `json:"holdings"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

type holdingRow struct {
	domain.Holding `gorm:"embedded"`
	CompanyName    string  `gorm:"column:company_name"`
	AppID          *uint64 `gorm:"column:app_id"`
}

// ForDeveloper returns a developer's holdings valued at current prices.
func (s *Service) ForDeveloper(ctx context.Context, developerID uuid.UUID) (*Portfolio, error) {
	var dev domain.Account
	if err := s.DB.WithContext(ctx).Where("account_id = ? AND role = ?", developerID, domain.RoleDeveloper).First(&dev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeveloperNotFound
		}
		return nil, err
	}

	var rows []holdingRow
	if err := s.DB.WithContext(ctx).
		Table(`"DeveloperHoldings" AS h`).
		Select("h.*, c.name AS company_name, c.app_id AS app_id").
		Joins(`JOIN "Companies" AS c ON c.company_id = h.company_id`).
		Where("h.developer_id = ?", developerID).
		Order("c.name").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := &Portfolio{DeveloperID: developerID, Holdings: make([]View, 0, len(rows)), TotalValue: decimal.Zero}
	for _, r := range rows {
		v := View{
			HoldingID:   r.HoldingID,
			CompanyID:   r.CompanyID,
			CompanyName: r.CompanyName,
			AssetID:     r.AssetID,
			AppID:       r.AppID,
			Tokens:      r.TokensHeld,
			Price:       decimal.Zero,
			Value:       decimal.Zero,
		}
		if r.AppID != nil && s.Prices != nil {
			st, err := s.Prices.State(ctx, *r.AppID)
			if err != nil {
				logging.FromContext(ctx).Warn().Err(err).Uint64("app_id", *r.AppID).Msg("holding price unavailable")
			} else {
				v.PriceAvailable = true
				v.PriceScaled = st.TokenPrice
				v.Price = pricing.Major(st.TokenPrice)
				v.Value = v.Price.Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(r.TokensHeld), 0))
			}
		}
		out.TotalValue = out.TotalValue.Add(v.Value)
		out.Holdings = append(out.Holdings, v)
	}
	return out, nil
}
