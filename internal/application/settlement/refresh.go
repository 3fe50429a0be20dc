package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ventry-backend/internal/domain"
	"ventry-backend/internal/ledger"
	"ventry-backend/internal/pkg/logging"
	"ventry-backend/internal/pricing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CompanyRefresh is the outcome of one company's price update.
type CompanyRefresh struct {
	CompanyID uuid.UUID      `json:"company_id"`
	Name      string         `json:"name"`
	AppID     uint64         `json:"app_id"`
	Price     uint64         `json:"price"`
	TxID      string         `json:"tx_id,omitempty"`
	Outcome   ledger.Outcome `json:"outcome"`
	Error     string         `json:"error,omitempty"`
}

// RefreshReport summarises one pass of RefreshAllPrices. Err is set only when the pass
// could not run at all or was cut short.
type RefreshReport struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Updated    int              `json:"updated"`
	Failed     int              `json:"failed"`
	Results    []CompanyRefresh `json:"results"`
	Err        error            `json:"-"`
}

// RefreshAllPrices recomputes and publishes the token price of every onboarded company.
// A failure for one company is recorded and the pass moves on. RefreshAllPrices never
// panics and never returns an error; problems are reported in the RefreshReport.
func (s *Service) RefreshAllPrices(ctx context.Context) (report RefreshReport) {
	report.StartedAt = time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("price refresh panicked: %v", r)
			logging.FromContext(ctx).Error().Interface("panic", r).Msg("price refresh aborted")
		}
		report.FinishedAt = time.Now().UTC()
		s.recordRun(ctx, &report)
	}()

	var companies []domain.Company
	err := s.DB.WithContext(ctx).Preload("Account").
		Where("app_id IS NOT NULL AND asset_id IS NOT NULL AND name <> ''").
		Order("company_id").
		Find(&companies).Error
	if err != nil {
		report.Err = fmt.Errorf("list companies: %w", err)
		logging.FromContext(ctx).Error().Err(err).Msg("price refresh could not list companies")
		return report
	}

	for i := range companies {
		if err := ctx.Err(); err != nil {
			report.Err = err
			logging.FromContext(ctx).Warn().Err(err).Int("remaining", len(companies)-i).Msg("price refresh interrupted")
			break
		}
		res := s.refreshOne(ctx, &companies[i])
		if res.Outcome == ledger.OutcomeOK {
			report.Updated++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}

	logging.FromContext(ctx).Info().Int("companies", len(companies)).Int("updated", report.Updated).
		Int("failed", report.Failed).Msg("price refresh finished")
	return report
}

func (s *Service) refreshOne(ctx context.Context, c *domain.Company) CompanyRefresh {
	res := CompanyRefresh{CompanyID: c.CompanyID, Name: c.Name, AppID: *c.AppID}
	fail := func(err error) CompanyRefresh {
		res.Outcome = ledger.OutcomeFatal
		if ledger.IsKind(err, ledger.KindRejected) {
			res.Outcome = ledger.OutcomeRecoverable
		}
		res.Error = err.Error()
		logging.FromContext(ctx).Warn().Err(err).Str("company_id", c.CompanyID.String()).Uint64("app_id", res.AppID).
			Msg("price refresh skipped company")
		return res
	}

	price, err := pricing.Price(c.Valuation, c.Supply, c.EquityPct)
	if err != nil {
		return fail(err)
	}
	res.Price = price

	if c.Account == nil {
		return fail(ErrWalletUnavailable)
	}
	owner, err := ledger.WalletFromMnemonic(c.Account.Mnemonic)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrWalletUnavailable, err))
	}

	rcpt, err := s.Ledger.UpdatePrice(ctx, owner, res.AppID, price)
	if err != nil {
		return fail(err)
	}
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, res.AppID)
	}
	res.TxID = rcpt.TxID()
	res.Outcome = ledger.OutcomeOK
	return res
}

// recordRun stores the report. Failure to record is logged only.
func (s *Service) recordRun(ctx context.Context, report *RefreshReport) {
	results, err := json.Marshal(report.Results)
	if err != nil {
		results = []byte("[]")
	}
	run := domain.PriceRefreshRun{
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Updated:    report.Updated,
		Failed:     report.Failed,
		Results:    datatypes.JSON(results),
	}
	if err := s.DB.WithContext(context.WithoutCancel(ctx)).Create(&run).Error; err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("could not record price refresh run")
	}
}
