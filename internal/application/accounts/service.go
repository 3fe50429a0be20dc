package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ventry-backend/internal/domain"
	"ventry-backend/internal/ledger"
	"ventry-backend/internal/pkg/constants"
	"ventry-backend/internal/pkg/logging"
	"ventry-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultFundAmount is sent to every new wallet when Service.FundAmount is zero.
const DefaultFundAmount = 10_000_000

var (
	ErrInvalidEmail   = errors.New("invalid email")
	ErrInvalidRole    = errors.New("role must be company or developer")
	ErrEmailTaken     = errors.New("email already registered")
	ErrAccountMissing = errors.New("account not found")
)

type Service struct {
	DB         *gorm.DB
	Faucet     ledger.Faucet
	FundAmount uint64
}

type CreateInput struct {
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	LinkedInURL *string `json:"linkedin_url"`
	HomeAddress string  `json:"home_address"`
}

// Created is the result of Create. Funding reports the best-effort faucet step.
type Created struct {
	Account domain.Account  `json:"account"`
	Company *domain.Company `json:"company,omitempty"`
	Funding ledger.Outcome  `json:"funding"`
	FundTx  string          `json:"fund_tx,omitempty"`
}

// Create registers an account with a fresh wallet. Company accounts also get an
// unconfigured company row. Funding failures are logged and never fail the call.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Created, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !constants.IsValidRole(in.Role) {
		return nil, ErrInvalidRole
	}
	linkedIn := in.LinkedInURL
	if in.Role != constants.Developer {
		linkedIn = nil
	}

	wallet, words, err := ledger.NewWallet()
	if err != nil {
		return nil, fmt.Errorf("generate wallet: %w", err)
	}

	out := &Created{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}

		out.Account = domain.Account{
			Email:       email,
			Role:        in.Role,
			FirstName:   strings.TrimSpace(in.FirstName),
			LastName:    strings.TrimSpace(in.LastName),
			LinkedInURL: linkedIn,
			HomeAddress: strings.TrimSpace(in.HomeAddress),
			Address:     wallet.Address,
			Mnemonic:    words,
		}
		if err := tx.Create(&out.Account).Error; err != nil {
			return err
		}
		if in.Role != constants.Company {
			return nil
		}
		out.Company = &domain.Company{AccountID: out.Account.AccountID}
		return tx.Create(out.Company).Error
	})
	if err != nil {
		return nil, err
	}

	out.Funding, out.FundTx = s.fund(ctx, wallet.Address)
	logging.FromContext(ctx).Info().Str("account_id", out.Account.AccountID.String()).Str("role", in.Role).
		Str("funding", string(out.Funding)).Msg("account created")
	return out, nil
}

func (s *Service) fund(ctx context.Context, address string) (ledger.Outcome, string) {
	if s.Faucet == nil {
		return ledger.OutcomeRecoverable, ""
	}
	amount := s.FundAmount
	if amount == 0 {
		amount = DefaultFundAmount
	}
	rcpt, err := s.Faucet.Fund(ctx, address, amount)
	if err != nil {
		outcome := ledger.Classify(err)
		logging.FromContext(ctx).Warn().Err(err).Str("address", address).Str("outcome", string(outcome)).Msg("wallet funding failed")
		return outcome, ""
	}
	return ledger.OutcomeOK, rcpt.TxID()
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var acct domain.Account
	if err := s.DB.WithContext(ctx).Where("account_id = ?", id).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountMissing
		}
		return nil, err
	}
	return &acct, nil
}
