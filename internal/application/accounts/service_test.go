package accounts

import (
	"context"
	"errors"
	"testing"

	"ventry-backend/internal/domain"
	"ventry-backend/internal/ledger"
	"ventry-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingFaucet struct{ err error }

func (f failingFaucet) Fund(ctx context.Context, address string, amount uint64) (ledger.Receipt, error) {
	return ledger.Receipt{}, f.err
}

func TestCreate_Developer(t *testing.T) {
	db := testutil.OpenDB(t)
	mem := ledger.NewMemory()
	svc := &Service{DB: db, Faucet: mem}
	link := "https://linkedin.com/in/dev"

	out, err := svc.Create(context.Background(), CreateInput{
		Email: "  Dev@Example.com ", Role: domain.RoleDeveloper, FirstName: "Ada", LinkedInURL: &link,
		HomeAddress: " 1 Analytical Row, London ",
	})
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", out.Account.Email)
	assert.Nil(t, out.Company)
	assert.Equal(t, ledger.OutcomeOK, out.Funding)
	assert.NotEmpty(t, out.FundTx)
	require.NotNil(t, out.Account.LinkedInURL)
	assert.Equal(t, uint64(DefaultFundAmount), mem.Balance(out.Account.Address))

	w, err := ledger.WalletFromMnemonic(out.Account.Mnemonic)
	require.NoError(t, err)
	assert.Equal(t, out.Account.Address, w.Address)

	got, err := svc.Get(context.Background(), out.Account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, out.Account.Email, got.Email)
	assert.Equal(t, "1 Analytical Row, London", got.HomeAddress)
}

func TestCreate_CompanyGetsPlaceholder(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := &Service{DB: db, Faucet: ledger.NewMemory(), FundAmount: 42}
	link := "https://linkedin.com/in/ignored"

	out, err := svc.Create(context.Background(), CreateInput{Email: "ceo@acme.io", Role: domain.RoleCompany, LinkedInURL: &link})
	require.NoError(t, err)
	assert.Nil(t, out.Account.LinkedInURL)
	require.NotNil(t, out.Company)

	var company domain.Company
	require.NoError(t, db.Where("account_id = ?", out.Account.AccountID).First(&company).Error)
	assert.Empty(t, company.Name)
	assert.False(t, company.Locked())
	assert.True(t, company.EquityPct.Equal(domain.DefaultEquityPct))
	assert.True(t, company.Valuation.Equal(domain.DefaultValuation))
}

func TestCreate_FundingFailureDoesNotFail(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := &Service{DB: db, Faucet: failingFaucet{err: errors.New("node down")}}

	out, err := svc.Create(context.Background(), CreateInput{Email: "a@b.co", Role: domain.RoleDeveloper})
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeFatal, out.Funding)
	assert.Empty(t, out.FundTx)

	var count int64
	require.NoError(t, db.Model(&domain.Account{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreate_Validation(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Email: "not-an-email", Role: domain.RoleDeveloper})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.Create(ctx, CreateInput{Email: "a@b.co", Role: "admin"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Create(ctx, CreateInput{Email: "a@b.co", Role: domain.RoleDeveloper})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Email: "A@B.co", Role: domain.RoleCompany})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAccountMissing)
}
