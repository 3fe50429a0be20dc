// Package testutil builds databases, Redis instances and marketplace fixtures for tests.
package testutil

import (
	"context"
	"testing"

	"ventry-backend/internal/domain"
	"ventry-backend/internal/infrastructure/database"
	"ventry-backend/internal/ledger"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// StartingBalance is credited to every fixture account.
const StartingBalance = 10_000_000

// OpenDB returns a migrated in-memory SQLite database. The pool is capped at one
// connection so every query sees the same in-memory database.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Redis starts a miniredis server and returns a client for it.
func Redis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

// CreateAccount inserts an account with a fresh, funded wallet.
func CreateAccount(t *testing.T, db *gorm.DB, mem *ledger.Memory, role string) (domain.Account, ledger.Wallet) {
	t.Helper()
	w, words, err := ledger.NewWallet()
	require.NoError(t, err)
	if mem != nil {
		mem.Credit(w.Address, StartingBalance)
	}
	acct := domain.Account{
		Email:    uuid.NewString() + "@example.com",
		Role:     role,
		Address:  w.Address,
		Mnemonic: words,
	}
	require.NoError(t, db.Create(&acct).Error)
	return acct, w
}

// CompanyOpts configures CreateOnboardedCompany.
type CompanyOpts struct {
	Name         string
	Supply       uint64
	EquityPct    string
	Valuation    string
	InitialPrice uint64
}

// CreateOnboardedCompany creates a company account, issues its token and deploys its
// price oracle on mem, and stores the locked company row.
func CreateOnboardedCompany(t *testing.T, db *gorm.DB, mem *ledger.Memory, opts CompanyOpts) (domain.Company, ledger.Wallet) {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "Acme"
	}
	if opts.Supply == 0 {
		opts.Supply = 10_000
	}
	if opts.EquityPct == "" {
		opts.EquityPct = "0.15"
	}
	if opts.Valuation == "" {
		opts.Valuation = "1000000"
	}
	acct, w := CreateAccount(t, db, mem, domain.RoleCompany)

	ctx := context.Background()
	assetID, err := mem.CreateToken(ctx, w, ledger.TokenSpec{UnitName: "ACME", AssetName: opts.Name + " Token", Total: opts.Supply})
	require.NoError(t, err)
	appID, err := mem.DeployPriceContract(ctx, w, assetID, opts.InitialPrice)
	require.NoError(t, err)

	company := domain.Company{
		AccountID: acct.AccountID,
		Name:      opts.Name,
		UnitName:  "ACME",
		AssetName: opts.Name + " Token",
		AssetID:   &assetID,
		AppID:     &appID,
		Supply:    opts.Supply,
		EquityPct: decimal.RequireFromString(opts.EquityPct),
		Valuation: decimal.RequireFromString(opts.Valuation),
	}
	require.NoError(t, db.Create(&company).Error)
	company.Account = &acct
	return company, w
}

// CreateJob inserts a job in the given status, assigned to developer when non-nil.
func CreateJob(t *testing.T, db *gorm.DB, company domain.Company, developer *domain.Account, status domain.JobStatus, upfront, tokens uint64) domain.Job {
	t.Helper()
	job := domain.Job{
		CompanyID:     company.CompanyID,
		Title:         "Fix the build",
		UpfrontAmount: upfront,
		TokenAmount:   tokens,
		Status:        status,
	}
	if developer != nil {
		id := developer.AccountID
		job.DeveloperID = &id
	}
	require.NoError(t, db.Create(&job).Error)
	return job
}
