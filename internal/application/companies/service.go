package companies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ventry-backend/internal/domain"
	"ventry-backend/internal/ledger"
	"ventry-backend/internal/pkg/logging"
	"ventry-backend/internal/pkg/validation"
	"ventry-backend/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrCompanyLocked   = errors.New("company setup already completed and locked")
	ErrNotOnboarded    = errors.New("company setup not completed")
	ErrInvalidName     = errors.New("invalid company name")
	ErrInvalidSupply   = errors.New("supply must be positive")
	ErrSupplyMismatch  = errors.New("supply differs from the token already issued")
)

var hundred = decimal.NewFromInt(100)

// PriceReader serves oracle state, normally through the price cache.
type PriceReader interface {
	State(ctx context.Context, contractID uint64) (ledger.PriceState, error)
}

type Service struct {
	DB     *gorm.DB
	Ledger ledger.Client
	Prices PriceReader
}

// SetupInput configures a company's token. EquityPercent is a percentage (15 means
// 15%); zero values fall back to the company defaults.
type SetupInput struct {
	Name          string          `json:"name"`
	Supply        uint64          `json:"supply"`
	EquityPercent decimal.Decimal `json:"equity_pct"`
	Valuation     decimal.Decimal `json:"valuation"`
}

// Setup issues the company token and deploys its price oracle, then locks the
// company's pricing fields. A setup that failed after the token was issued can be
// retried with the same supply and reuses that token.
func (s *Service) Setup(ctx context.Context, companyID uuid.UUID, in SetupInput) (*domain.Company, error) {
	company, err := s.load(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company.Locked() {
		return nil, ErrCompanyLocked
	}

	name := strings.TrimSpace(in.Name)
	if !validation.IsValidCompanyName(name) {
		return nil, ErrInvalidName
	}
	if in.Supply == 0 {
		return nil, ErrInvalidSupply
	}
	if company.AssetID != nil && company.Supply != in.Supply {
		return nil, fmt.Errorf("%w: issued %d", ErrSupplyMismatch, company.Supply)
	}
	equity := domain.DefaultEquityPct
	if !in.EquityPercent.IsZero() {
		equity = in.EquityPercent.Div(hundred)
	}
	valuation := domain.DefaultValuation
	if !in.Valuation.IsZero() {
		valuation = in.Valuation
	}
	price, err := pricing.Price(valuation, in.Supply, equity)
	if err != nil {
		return nil, err
	}

	if company.Account == nil {
		return nil, fmt.Errorf("company %s has no account", companyID)
	}
	owner, err := ledger.WalletFromMnemonic(company.Account.Mnemonic)
	if err != nil {
		return nil, fmt.Errorf("restore company wallet: %w", err)
	}

	db := s.DB.WithContext(ctx)
	if company.AssetID == nil {
		unit := validation.UnitName(name)
		assetName := name + " Token"
		assetID, err := s.Ledger.CreateToken(ctx, owner, ledger.TokenSpec{
			UnitName:  unit,
			AssetName: assetName,
			Total:     in.Supply,
		})
		if err != nil {
			return nil, fmt.Errorf("create token: %w", err)
		}
		// Persist the token at once so a failed deploy does not orphan it.
		res := db.Model(company).Where("asset_id IS NULL").Updates(map[string]any{
			"asset_id":   assetID,
			"unit_name":  unit,
			"asset_name": assetName,
			"supply":     in.Supply,
		})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			logging.FromContext(ctx).Warn().Str("company_id", companyID.String()).Uint64("asset_id", assetID).
				Msg("token created by a concurrent setup, discarding")
			return nil, ErrCompanyLocked
		}
		company.AssetID = &assetID
		company.UnitName = unit
		company.AssetName = assetName
		company.Supply = in.Supply
	}

	appID, err := s.Ledger.DeployPriceContract(ctx, owner, *company.AssetID, price)
	if err != nil {
		return nil, fmt.Errorf("deploy price contract: %w", err)
	}
	res := db.Model(company).Where("app_id IS NULL").Updates(map[string]any{
		"app_id":     appID,
		"name":       name,
		"equity_pct": equity,
		"valuation":  valuation,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		logging.FromContext(ctx).Warn().Str("company_id", companyID.String()).Uint64("app_id", appID).
			Msg("company locked by a concurrent setup, discarding price contract")
		return nil, ErrCompanyLocked
	}
	company.AppID = &appID
	company.Name = name
	company.EquityPct = equity
	company.Valuation = valuation

	logging.FromContext(ctx).Info().Str("company_id", companyID.String()).Uint64("asset_id", *company.AssetID).
		Uint64("app_id", appID).Uint64("price", price).Msg("company setup completed")
	return company, nil
}

// Get returns a company by id.
func (s *Service) Get(ctx context.Context, companyID uuid.UUID) (*domain.Company, error) {
	return s.load(ctx, companyID)
}

// GetByAccount returns the company owned by an account.
func (s *Service) GetByAccount(ctx context.Context, accountID uuid.UUID) (*domain.Company, error) {
	var c domain.Company
	if err := s.DB.WithContext(ctx).Where("account_id = ?", accountID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Quote is a company's current on-chain price.
type Quote struct {
	CompanyID  uuid.UUID         `json:"company_id"`
	State      ledger.PriceState `json:"state"`
	PriceMajor decimal.Decimal   `json:"token_price_major"`
}

// Price reads the company's oracle state.
func (s *Service) Price(ctx context.Context, companyID uuid.UUID) (*Quote, error) {
	company, err := s.load(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !company.Locked() {
		return nil, ErrNotOnboarded
	}
	st, err := s.Prices.State(ctx, *company.AppID)
	if err != nil {
		return nil, err
	}
	return &Quote{CompanyID: companyID, State: st, PriceMajor: pricing.Major(st.TokenPrice)}, nil
}

func (s *Service) load(ctx context.Context, companyID uuid.UUID) (*domain.Company, error) {
	var c domain.Company
	if err := s.DB.WithContext(ctx).Preload("Account").Where("company_id = ?", companyID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return &c, nil
}
