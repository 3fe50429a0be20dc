package settlement

import (
	"context"
	"errors"
	"testing"

	"ventry-backend/internal/domain"
	"ventry-backend/internal/ledger"
	"ventry-backend/internal/pricing"
	"ventry-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingCache struct {
	invalidated []uint64
}

func (c *recordingCache) Invalidate(ctx context.Context, contractID uint64) {
	c.invalidated = append(c.invalidated, contractID)
}

type fixture struct {
	db        *gorm.DB
	mem       *ledger.Memory
	cache     *recordingCache
	svc       *Service
	company   domain.Company
	owner     ledger.Wallet
	developer domain.Account
	devWallet ledger.Wallet
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: testutil.OpenDB(t), mem: ledger.NewMemory(), cache: &recordingCache{}}
	f.company, f.owner = testutil.CreateOnboardedCompany(t, f.db, f.mem, testutil.CompanyOpts{InitialPrice: 1})
	f.developer, f.devWallet = testutil.CreateAccount(t, f.db, f.mem, domain.RoleDeveloper)
	f.svc = &Service{DB: f.db, Ledger: f.mem, Cache: f.cache}
	return f
}

func (f *fixture) job(t *testing.T, status domain.JobStatus, upfront, tokens uint64) domain.Job {
	return testutil.CreateJob(t, f.db, f.company, &f.developer, status, upfront, tokens)
}

func (f *fixture) expectedPrice(t *testing.T) uint64 {
	p, err := pricing.Price(f.company.Valuation, f.company.Supply, f.company.EquityPct)
	require.NoError(t, err)
	return p
}

func TestVerifyAndSettle_Success(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	job := f.job(t, domain.JobAwaitingVerification, 25_000, 50)
	devBefore := f.mem.Balance(f.devWallet.Address)
	ownerBefore := f.mem.Balance(f.owner.Address)

	res, err := f.svc.VerifyAndSettle(ctx, job.JobID)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, domain.JobClosed, res.Status)
	assert.Equal(t, uint64(50), res.HoldingDelta)
	assert.Equal(t, uint64(50), res.TokensHeld)
	assert.Equal(t, uint64(25_000), res.CashAmount)
	assert.Equal(t, ledger.OutcomeOK, res.OptIn)
	assert.Len(t, res.Receipt.TxIDs, 3)
	assert.NotEmpty(t, res.Receipt.GroupID)

	// Developer pays the opt-in fee; the company pays the three group fees.
	assert.Equal(t, devBefore+25_000-ledger.MinFee, f.mem.Balance(f.devWallet.Address))
	assert.Equal(t, ownerBefore-25_000-3*ledger.MinFee, f.mem.Balance(f.owner.Address))
	tokens, opted := f.mem.AssetBalance(f.devWallet.Address, *f.company.AssetID)
	assert.True(t, opted)
	assert.Equal(t, uint64(50), tokens)

	st, err := f.mem.ReadState(ctx, *f.company.AppID)
	require.NoError(t, err)
	assert.Equal(t, f.expectedPrice(t), st.TokenPrice)
	assert.Equal(t, res.TokenPrice, st.TokenPrice)
	assert.Equal(t, []uint64{*f.company.AppID}, f.cache.invalidated)

	var stored domain.Job
	require.NoError(t, f.db.First(&stored, "job_id = ?", job.JobID).Error)
	assert.Equal(t, domain.JobClosed, stored.Status)

	var settlements []domain.Settlement
	require.NoError(t, f.db.Find(&settlements).Error)
	require.Len(t, settlements, 1)
	assert.Equal(t, job.JobID, settlements[0].JobID)
	assert.Equal(t, res.Receipt.GroupID, settlements[0].GroupID)
	assert.Equal(t, res.Receipt.ConfirmedRound, settlements[0].ConfirmedRound)
}

func TestVerifyAndSettle_HoldingsAccumulate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first := f.job(t, domain.JobAwaitingVerification, 100, 50)
	second := f.job(t, domain.JobAwaitingVerification, 100, 50)

	_, err := f.svc.VerifyAndSettle(ctx, first.JobID)
	require.NoError(t, err)
	res, err := f.svc.VerifyAndSettle(ctx, second.JobID)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.TokensHeld)

	var holdings []domain.Holding
	require.NoError(t, f.db.Where("developer_id = ?", f.developer.AccountID).Find(&holdings).Error)
	require.Len(t, holdings, 1)
	assert.Equal(t, uint64(100), holdings[0].TokensHeld)
	assert.Equal(t, *f.company.AssetID, holdings[0].AssetID)

	onChain, _ := f.mem.AssetBalance(f.devWallet.Address, *f.company.AssetID)
	assert.Equal(t, holdings[0].TokensHeld, onChain)
}

func TestVerifyAndSettle_HoldingCreatedConcurrently(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	job := f.job(t, domain.JobAwaitingVerification, 100, 50)

	// Another settlement for the same developer and company commits its holding row
	// while this one is recording.
	inserted := false
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:concurrent_holding", func(tx *gorm.DB) {
		if inserted || tx.Statement.Table != "DeveloperHoldings" {
			return
		}
		inserted = true
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Exec(
			`INSERT INTO "DeveloperHoldings" (holding_id, developer_id, company_id, asset_id, tokens_held) VALUES (?, ?, ?, ?, ?)`,
			uuid.New(), f.developer.AccountID, f.company.CompanyID, *f.company.AssetID, 30,
		).Error)
	}))

	res, err := f.svc.VerifyAndSettle(ctx, job.JobID)
	require.NoError(t, err)
	require.True(t, inserted)
	assert.Equal(t, uint64(80), res.TokensHeld)

	var stored domain.Job
	require.NoError(t, f.db.First(&stored, "job_id = ?", job.JobID).Error)
	assert.Equal(t, domain.JobClosed, stored.Status)

	var holdings []domain.Holding
	require.NoError(t, f.db.Where("developer_id = ?", f.developer.AccountID).Find(&holdings).Error)
	require.Len(t, holdings, 1)
	assert.Equal(t, uint64(80), holdings[0].TokensHeld)

	var settlements int64
	require.NoError(t, f.db.Model(&domain.Settlement{}).Where("job_id = ?", job.JobID).Count(&settlements).Error)
	assert.Equal(t, int64(1), settlements)
}

func TestVerifyAndSettle_LedgerFaultLeavesNoTrace(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	job := f.job(t, domain.JobAwaitingVerification, 25_000, 50)

	// Opt in first so the only ledger activity under test is the group.
	require.NoError(t, f.mem.OptIn(ctx, f.devWallet, *f.company.AssetID))
	devBefore := f.mem.Balance(f.devWallet.Address)
	ownerBefore := f.mem.Balance(f.owner.Address)
	f.mem.FailNext(ledger.OpAppCall, errors.New("logic eval error"))

	res, err := f.svc.VerifyAndSettle(ctx, job.JobID)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, ledger.IsKind(err, ledger.KindRejected))

	var stored domain.Job
	require.NoError(t, f.db.First(&stored, "job_id = ?", job.JobID).Error)
	assert.Equal(t, domain.JobAwaitingVerification, stored.Status)

	var count int64
	require.NoError(t, f.db.Model(&domain.Holding{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, f.db.Model(&domain.Settlement{}).Count(&count).Error)
	assert.Zero(t, count)

	// The opt-in before the group costs the developer a fee; the group itself moved nothing.
	assert.Equal(t, devBefore-ledger.MinFee, f.mem.Balance(f.devWallet.Address))
	assert.Equal(t, ownerBefore, f.mem.Balance(f.owner.Address))
	tokens, _ := f.mem.AssetBalance(f.devWallet.Address, *f.company.AssetID)
	assert.Zero(t, tokens)
	st, err := f.mem.ReadState(ctx, *f.company.AppID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.TokenPrice)
	assert.Empty(t, f.cache.invalidated)

	// The job can be settled once the ledger recovers.
	_, err = f.svc.VerifyAndSettle(ctx, job.JobID)
	require.NoError(t, err)
}

func TestVerifyAndSettle_RejectsBeforeLedger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	before, err := f.mem.Status(ctx)
	require.NoError(t, err)

	for _, status := range []domain.JobStatus{domain.JobOpen, domain.JobPicked, domain.JobClosed} {
		job := f.job(t, status, 100, 10)
		_, err := f.svc.VerifyAndSettle(ctx, job.JobID)
		assert.ErrorIs(t, err, ErrInvalidJobState, "status %s", status)
	}

	_, err = f.svc.VerifyAndSettle(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrJobNotFound)

	unassigned := testutil.CreateJob(t, f.db, f.company, nil, domain.JobAwaitingVerification, 100, 10)
	_, err = f.svc.VerifyAndSettle(ctx, unassigned.JobID)
	assert.ErrorIs(t, err, ErrNoDeveloper)

	after, err := f.mem.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.LastRound, after.LastRound, "no ledger transaction should have been sent")
}

func TestVerifyAndSettle_CompanyNotOnboarded(t *testing.T) {
	f := setup(t)
	acct, _ := testutil.CreateAccount(t, f.db, f.mem, domain.RoleCompany)
	bare := domain.Company{AccountID: acct.AccountID}
	require.NoError(t, f.db.Create(&bare).Error)
	job := testutil.CreateJob(t, f.db, bare, &f.developer, domain.JobAwaitingVerification, 100, 10)

	_, err := f.svc.VerifyAndSettle(context.Background(), job.JobID)
	assert.ErrorIs(t, err, ErrCompanyNotOnboarded)
}

func TestVerifyForCompany_WrongCompany(t *testing.T) {
	f := setup(t)
	job := f.job(t, domain.JobAwaitingVerification, 100, 10)

	_, err := f.svc.VerifyForCompany(context.Background(), uuid.New(), job.JobID)
	assert.ErrorIs(t, err, ErrJobNotOwned)

	res, err := f.svc.VerifyForCompany(context.Background(), f.company.CompanyID, job.JobID)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestVerifyAndSettle_FixedUpfront(t *testing.T) {
	f := setup(t)
	f.svc.Upfront = UpfrontPolicy{Fixed: true, Amount: 500_000}
	job := f.job(t, domain.JobAwaitingVerification, 25_000, 10)
	devBefore := f.mem.Balance(f.devWallet.Address)

	res, err := f.svc.VerifyAndSettle(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), res.CashAmount)
	assert.Equal(t, devBefore+500_000-ledger.MinFee, f.mem.Balance(f.devWallet.Address))
}

func TestVerifyAndSettle_OptInFailureTolerated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.mem.OptIn(ctx, f.devWallet, *f.company.AssetID))
	f.mem.FailNext(ledger.OpOptIn, errors.New("already opted in"))
	job := f.job(t, domain.JobAwaitingVerification, 100, 10)

	res, err := f.svc.VerifyAndSettle(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeRecoverable, res.OptIn)
	assert.Equal(t, uint64(10), res.TokensHeld)
}

func TestVerifyAndSettle_InFlight(t *testing.T) {
	f := setup(t)
	job := f.job(t, domain.JobAwaitingVerification, 100, 10)

	f.svc.inflight.Store(job.JobID, struct{}{})
	_, err := f.svc.VerifyAndSettle(context.Background(), job.JobID)
	assert.ErrorIs(t, err, ErrSettlementInFlight)

	f.svc.inflight.Delete(job.JobID)
	_, err = f.svc.VerifyAndSettle(context.Background(), job.JobID)
	require.NoError(t, err)
}

func TestUpfrontPolicy_CashFor(t *testing.T) {
	job := &domain.Job{UpfrontAmount: 1234}
	assert.Equal(t, uint64(1234), UpfrontPolicy{}.CashFor(job))
	assert.Equal(t, uint64(500_000), UpfrontPolicy{Fixed: true, Amount: 500_000}.CashFor(job))
}

func TestRefreshAllPrices_SkipsFailures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// A second company whose stored key no longer matches the oracle owner.
	broken, _ := testutil.CreateOnboardedCompany(t, f.db, f.mem, testutil.CompanyOpts{
		Name: "Broken", Supply: 20, Valuation: "1", EquityPct: "0.5", InitialPrice: 7,
	})
	_, words, err := ledger.NewWallet()
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&domain.Account{}).Where("account_id = ?", broken.AccountID).
		Update("mnemonic", words).Error)

	// Not onboarded: skipped entirely.
	acct, _ := testutil.CreateAccount(t, f.db, f.mem, domain.RoleCompany)
	require.NoError(t, f.db.Create(&domain.Company{AccountID: acct.AccountID}).Error)

	report := f.svc.RefreshAllPrices(ctx)
	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 2)

	for _, r := range report.Results {
		switch r.CompanyID {
		case f.company.CompanyID:
			assert.Equal(t, ledger.OutcomeOK, r.Outcome)
			assert.NotEmpty(t, r.TxID)
		case broken.CompanyID:
			assert.Equal(t, ledger.OutcomeRecoverable, r.Outcome)
			assert.NotEmpty(t, r.Error)
		default:
			t.Fatalf("unexpected company %s in report", r.CompanyID)
		}
	}

	st, err := f.mem.ReadState(ctx, *f.company.AppID)
	require.NoError(t, err)
	assert.Equal(t, f.expectedPrice(t), st.TokenPrice)
	st, err = f.mem.ReadState(ctx, *broken.AppID)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), st.TokenPrice)

	var runs []domain.PriceRefreshRun
	require.NoError(t, f.db.Find(&runs).Error)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Updated)
	assert.Equal(t, 1, runs[0].Failed)
}

func TestRefreshAllPrices_PriceFromDecimalInputs(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Model(&domain.Company{}).Where("company_id = ?", f.company.CompanyID).
		Updates(map[string]any{"valuation": decimal.NewFromInt(2_000_000), "supply": 20_000}).Error)

	report := f.svc.RefreshAllPrices(context.Background())
	require.NoError(t, report.Err)
	require.Len(t, report.Results, 1)
	// 2,000,000 * 0.15 * 100 / 20,000
	assert.Equal(t, uint64(1500), report.Results[0].Price)
}

func TestRefreshAllPrices_DatabaseDown(t *testing.T) {
	f := setup(t)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	var report RefreshReport
	assert.NotPanics(t, func() { report = f.svc.RefreshAllPrices(context.Background()) })
	assert.Error(t, report.Err)
	assert.Zero(t, report.Updated)
	assert.Empty(t, report.Results)
}

func TestRefreshAllPrices_Cancelled(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := f.svc.RefreshAllPrices(ctx)
	assert.Error(t, report.Err)
	assert.Zero(t, report.Updated)
}
