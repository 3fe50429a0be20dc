// Package settlement pays developers for verified jobs and keeps token prices current.
// The ledger is the source of truth: local rows change only after the atomic group
// has been confirmed.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ventry-backend/internal/domain"
	"ventry-backend/internal/ledger"
	"ventry-backend/internal/pkg/logging"
	"ventry-backend/internal/pricing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceCache is invalidated after every confirmed price change.
type PriceCache interface {
	Invalidate(ctx context.Context, contractID uint64)
}

// UpfrontPolicy decides the cash leg of a settlement. The zero value pays the job's
// own upfront amount.
type UpfrontPolicy struct {
	Fixed  bool
	Amount uint64
}

// CashFor returns the cash amount to pay for job.
func (p UpfrontPolicy) CashFor(job *domain.Job) uint64 {
	if p.Fixed {
		return p.Amount
	}
	return job.UpfrontAmount
}

// Service must not be copied after first use.
type Service struct {
	DB      *gorm.DB
	Ledger  ledger.Client
	Cache   PriceCache
	Upfront UpfrontPolicy

	inflight sync.Map
}

// Result describes a completed settlement.
type Result struct {
	OK           bool             `json:"ok"`
	JobID        uuid.UUID        `json:"job_id"`
	Status       domain.JobStatus `json:"status"`
	CashAmount   uint64           `json:"cash_amount"`
	HoldingDelta uint64           `json:"holding_delta"`
	TokensHeld   uint64           `json:"tokens_held"`
	TokenPrice   uint64           `json:"token_price"`
	OptIn        ledger.Outcome   `json:"opt_in"`
	Receipt      ledger.Receipt   `json:"receipt"`
}

// VerifyAndSettle verifies a job awaiting verification and settles it in one atomic
// ledger group: cash to the developer, tokens to the developer, and the recomputed
// price to the company's oracle. Nothing local changes unless the group confirms.
func (s *Service) VerifyAndSettle(ctx context.Context, jobID uuid.UUID) (*Result, error) {
	return s.settle(ctx, jobID, nil)
}

// VerifyForCompany is VerifyAndSettle restricted to jobs posted by companyID.
func (s *Service) VerifyForCompany(ctx context.Context, companyID, jobID uuid.UUID) (*Result, error) {
	return s.settle(ctx, jobID, &companyID)
}

type settleInput struct {
	job       domain.Job
	company   domain.Company
	developer domain.Account
	owner     ledger.Wallet
	devWallet ledger.Wallet
}

func (s *Service) settle(ctx context.Context, jobID uuid.UUID, companyID *uuid.UUID) (*Result, error) {
	if _, busy := s.inflight.LoadOrStore(jobID, struct{}{}); busy {
		return nil, ErrSettlementInFlight
	}
	defer s.inflight.Delete(jobID)

	in, err := s.load(ctx, jobID, companyID)
	if err != nil {
		return nil, err
	}

	price, err := pricing.Price(in.company.Valuation, in.company.Supply, in.company.EquityPct)
	if err != nil {
		return nil, fmt.Errorf("price company %s: %w", in.company.CompanyID, err)
	}

	assetID := *in.company.AssetID
	appID := *in.company.AppID

	// Opt-in is idempotent on the ledger; a failure here surfaces again, fatally,
	// in the group if the developer really cannot receive the asset.
	optErr := s.Ledger.OptIn(ctx, in.devWallet, assetID)
	optOutcome := ledger.Classify(optErr)
	if optErr != nil {
		logging.FromContext(ctx).Warn().Err(optErr).Str("job_id", jobID.String()).Uint64("asset_id", assetID).
			Str("outcome", string(optOutcome)).Msg("developer opt-in failed, continuing")
	}

	cash := s.Upfront.CashFor(&in.job)
	rcpt, err := s.Ledger.AtomicSettle(ctx, ledger.SettleRequest{
		Owner:       in.owner,
		Recipient:   in.devWallet.Address,
		ContractID:  appID,
		AssetID:     assetID,
		CashAmount:  cash,
		TokenAmount: in.job.TokenAmount,
		NewPrice:    price,
	})
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).Str("job_id", jobID.String()).Str("outcome", string(ledger.Classify(err))).
			Msg("atomic settlement failed")
		return nil, fmt.Errorf("settle job %s: %w", jobID, err)
	}

	if s.Cache != nil {
		s.Cache.Invalidate(ctx, appID)
	}

	// The ledger has moved; record it even if the caller has gone away.
	holding, err := s.record(context.WithoutCancel(ctx), in, cash, price, rcpt)
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).Str("job_id", jobID.String()).Str("tx_id", rcpt.TxID()).
			Msg("settlement confirmed on ledger but local record failed")
		return nil, fmt.Errorf("record settlement %s: %w", jobID, err)
	}

	logging.FromContext(ctx).Info().Str("job_id", jobID.String()).Str("group_id", rcpt.GroupID).
		Uint64("round", rcpt.ConfirmedRound).Uint64("tokens", in.job.TokenAmount).
		Uint64("price", price).Msg("job settled")

	return &Result{
		OK:           true,
		JobID:        jobID,
		Status:       domain.JobClosed,
		CashAmount:   cash,
		HoldingDelta: in.job.TokenAmount,
		TokensHeld:   holding.TokensHeld,
		TokenPrice:   price,
		OptIn:        optOutcome,
		Receipt:      rcpt,
	}, nil
}

// load runs every local precondition so a bad request never reaches the ledger.
func (s *Service) load(ctx context.Context, jobID uuid.UUID, companyID *uuid.UUID) (*settleInput, error) {
	db := s.DB.WithContext(ctx)
	in := &settleInput{}

	if err := db.Where("job_id = ?", jobID).First(&in.job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if companyID != nil && in.job.CompanyID != *companyID {
		return nil, ErrJobNotOwned
	}
	if in.job.Status != domain.JobAwaitingVerification {
		return nil, fmt.Errorf("%w: status %s", ErrInvalidJobState, in.job.Status)
	}
	if in.job.DeveloperID == nil {
		return nil, ErrNoDeveloper
	}

	if err := db.Preload("Account").Where("company_id = ?", in.job.CompanyID).First(&in.company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	if !in.company.Locked() || in.company.Account == nil {
		return nil, ErrCompanyNotOnboarded
	}

	if err := db.Where("account_id = ? AND role = ?", *in.job.DeveloperID, domain.RoleDeveloper).First(&in.developer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	var err error
	if in.owner, err = ledger.WalletFromMnemonic(in.company.Account.Mnemonic); err != nil {
		return nil, fmt.Errorf("%w: company %s: %v", ErrWalletUnavailable, in.company.CompanyID, err)
	}
	if in.devWallet, err = ledger.WalletFromMnemonic(in.developer.Mnemonic); err != nil {
		return nil, fmt.Errorf("%w: developer %s: %v", ErrWalletUnavailable, in.developer.AccountID, err)
	}
	return in, nil
}

// record closes the job, credits the holding and stores the settlement in one
// database transaction.
func (s *Service) record(ctx context.Context, in *settleInput, cash, price uint64, rcpt ledger.Receipt) (domain.Holding, error) {
	var holding domain.Holding
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Job{}).
			Where("job_id = ? AND status = ?", in.job.JobID, domain.JobAwaitingVerification).
			Update("status", domain.JobClosed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			logging.FromContext(ctx).Warn().Str("job_id", in.job.JobID.String()).Msg("job left awaiting_verification during settlement")
		}

		delta := in.job.TokenAmount
		txIDs, err := json.Marshal(rcpt.TxIDs)
		if err != nil {
			return fmt.Errorf("encode tx ids: %w", err)
		}

		// A concurrent first settlement may already have created the owner's row.
		holding = domain.Holding{
			DeveloperID: in.developer.AccountID,
			CompanyID:   in.company.CompanyID,
			AssetID:     *in.company.AssetID,
			TokensHeld:  delta,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "developer_id"}, {Name: "company_id"}, {Name: "asset_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"tokens_held": gorm.Expr(`"DeveloperHoldings".tokens_held + excluded.tokens_held`),
				"updatedAt":   time.Now(),
			}),
		}).Create(&holding).Error; err != nil {
			return err
		}
		var stored domain.Holding
		if err := tx.Where("developer_id = ? AND company_id = ? AND asset_id = ?",
			holding.DeveloperID, holding.CompanyID, holding.AssetID).First(&stored).Error; err != nil {
			return err
		}
		holding = stored

		return tx.Create(&domain.Settlement{
			JobID:          in.job.JobID,
			CompanyID:      in.company.CompanyID,
			DeveloperID:    in.developer.AccountID,
			CashAmount:     cash,
			TokenAmount:    delta,
			TokenPrice:     price,
			GroupID:        rcpt.GroupID,
			TxIDs:          datatypes.JSON(txIDs),
			ConfirmedRound: rcpt.ConfirmedRound,
		}).Error
	})
	return holding, err
}
