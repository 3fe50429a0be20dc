package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/rs/zerolog/log"
)

// AlgodConfig configures the node connection.
type AlgodConfig struct {
	Address       string
	Token         string
	ConfirmRounds uint64
	AssetURL      string
}

// Algod implements Client and Faucet against an algod node.
type Algod struct {
	client        *algod.Client
	confirmRounds uint64
	assetURL      string
	treasury      *Wallet

	mu        sync.Mutex
	approval  []byte
	clearProg []byte
}

var (
	_ Client = (*Algod)(nil)
	_ Faucet = (*Algod)(nil)
)

// NewAlgod connects to the node. treasury may be nil, in which case Fund always fails.
func NewAlgod(cfg AlgodConfig, treasury *Wallet) (*Algod, error) {
	c, err := algod.MakeClient(cfg.Address, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("algod client: %w", err)
	}
	rounds := cfg.ConfirmRounds
	if rounds == 0 {
		rounds = DefaultConfirmRounds
	}
	return &Algod{client: c, confirmRounds: rounds, assetURL: cfg.AssetURL, treasury: treasury}, nil
}

func (a *Algod) Status(ctx context.Context) (NodeStatus, error) {
	st, err := a.client.Status().Do(ctx)
	if err != nil {
		return NodeStatus{}, newError("status", KindSubmit, err)
	}
	return NodeStatus{LastRound: st.LastRound}, nil
}

func (a *Algod) Fund(ctx context.Context, address string, amount uint64) (Receipt, error) {
	const op = "fund"
	if a.treasury == nil {
		return Receipt{}, newError(op, KindInvalid, errors.New("no treasury configured"))
	}
	sp, err := a.params(ctx, op)
	if err != nil {
		return Receipt{}, err
	}
	txn, err := transaction.MakePaymentTxn(a.treasury.Address, address, amount, nil, "", sp)
	if err != nil {
		return Receipt{}, newError(op, KindInvalid, err)
	}
	_, rcpt, err := a.submit(ctx, op, *a.treasury, txn)
	return rcpt, err
}

func (a *Algod) CreateToken(ctx context.Context, owner Wallet, spec TokenSpec) (uint64, error) {
	const op = "create_token"
	sp, err := a.params(ctx, op)
	if err != nil {
		return 0, err
	}
	url := spec.URL
	if url == "" {
		url = a.assetURL
	}
	// The issuing company keeps every administrative role.
	txn, err := transaction.MakeAssetCreateTxn(owner.Address, nil, sp,
		spec.Total, spec.Decimals, false,
		owner.Address, owner.Address, owner.Address, owner.Address,
		spec.UnitName, spec.AssetName, url, "")
	if err != nil {
		return 0, newError(op, KindInvalid, err)
	}
	info, _, err := a.submit(ctx, op, owner, txn)
	if err != nil {
		return 0, err
	}
	return info.AssetIndex, nil
}

func (a *Algod) OptIn(ctx context.Context, account Wallet, assetID uint64) error {
	const op = "opt_in"
	sp, err := a.params(ctx, op)
	if err != nil {
		return err
	}
	txn, err := transaction.MakeAssetAcceptanceTxn(account.Address, nil, sp, assetID)
	if err != nil {
		return newError(op, KindInvalid, err)
	}
	_, _, err = a.submit(ctx, op, account, txn)
	return err
}

func (a *Algod) DeployPriceContract(ctx context.Context, owner Wallet, tokenID, initialPrice uint64) (uint64, error) {
	const op = "deploy_price_contract"
	approval, clearProg, err := a.programs(ctx)
	if err != nil {
		return 0, newError(op, KindSubmit, err)
	}
	sender, err := types.DecodeAddress(owner.Address)
	if err != nil {
		return 0, newError(op, KindInvalid, err)
	}
	sp, err := a.params(ctx, op)
	if err != nil {
		return 0, err
	}
	txn, err := transaction.MakeApplicationCreateTx(false, approval, clearProg,
		types.StateSchema{NumUint: oracleGlobalUints, NumByteSlice: oracleGlobalByteSl},
		types.StateSchema{},
		createArgs(tokenID, initialPrice), nil, nil, nil,
		sp, sender, nil, types.Digest{}, [32]byte{}, types.Address{})
	if err != nil {
		return 0, newError(op, KindInvalid, err)
	}
	info, _, err := a.submit(ctx, op, owner, txn)
	if err != nil {
		return 0, err
	}
	return info.ApplicationIndex, nil
}

func (a *Algod) UpdatePrice(ctx context.Context, owner Wallet, contractID, newPrice uint64) (Receipt, error) {
	const op = "update_price"
	txn, err := a.updateTxn(ctx, op, owner, contractID, newPrice)
	if err != nil {
		return Receipt{}, err
	}
	_, rcpt, err := a.submit(ctx, op, owner, txn)
	return rcpt, err
}

func (a *Algod) ReadState(ctx context.Context, contractID uint64) (PriceState, error) {
	const op = "read_state"
	app, err := a.client.GetApplicationByID(contractID).Do(ctx)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") || strings.Contains(err.Error(), "404") {
			return PriceState{}, newError(op, KindNotFound, err)
		}
		return PriceState{}, newError(op, KindSubmit, err)
	}
	values, err := decodeGlobalState(toRawKVs(app.Params.GlobalState))
	if err != nil {
		return PriceState{}, newError(op, KindInvalid, err)
	}
	return priceStateFrom(contractID, values), nil
}

// AtomicSettle submits payment, asset transfer and price update as one transaction group.
// The network applies all three or none.
func (a *Algod) AtomicSettle(ctx context.Context, req SettleRequest) (Receipt, error) {
	const op = "atomic_settle"
	sp, err := a.params(ctx, op)
	if err != nil {
		return Receipt{}, err
	}
	pay, err := transaction.MakePaymentTxn(req.Owner.Address, req.Recipient, req.CashAmount, nil, "", sp)
	if err != nil {
		return Receipt{}, newError(op, KindInvalid, err)
	}
	xfer, err := transaction.MakeAssetTransferTxn(req.Owner.Address, req.Recipient, req.TokenAmount, nil, sp, "", req.AssetID)
	if err != nil {
		return Receipt{}, newError(op, KindInvalid, err)
	}
	call, err := a.updateTxnWithParams(op, req.Owner, req.ContractID, req.NewPrice, sp)
	if err != nil {
		return Receipt{}, err
	}

	group := []types.Transaction{pay, xfer, call}
	gid, err := crypto.ComputeGroupID(group)
	if err != nil {
		return Receipt{}, newError(op, KindInvalid, err)
	}

	var (
		signed []byte
		txIDs  = make([]string, 0, len(group))
	)
	for i := range group {
		group[i].Group = gid
		txid, stx, err := crypto.SignTransaction(req.Owner.Key, group[i])
		if err != nil {
			return Receipt{}, newError(op, KindInvalid, err)
		}
		txIDs = append(txIDs, txid)
		signed = append(signed, stx...)
	}

	if _, err := a.client.SendRawTransaction(signed).Do(ctx); err != nil {
		return Receipt{}, newError(op, KindRejected, err)
	}
	info, err := transaction.WaitForConfirmation(a.client, txIDs[0], a.confirmRounds, ctx)
	if err != nil {
		return Receipt{}, newError(op, waitKind(err), err)
	}
	log.Info().Str("group_id", base64.StdEncoding.EncodeToString(gid[:])).Uint64("round", info.ConfirmedRound).Msg("settlement group confirmed")
	return Receipt{
		TxIDs:          txIDs,
		GroupID:        base64.StdEncoding.EncodeToString(gid[:]),
		ConfirmedRound: info.ConfirmedRound,
	}, nil
}

func (a *Algod) updateTxn(ctx context.Context, op string, owner Wallet, contractID, price uint64) (types.Transaction, error) {
	sp, err := a.params(ctx, op)
	if err != nil {
		return types.Transaction{}, err
	}
	return a.updateTxnWithParams(op, owner, contractID, price, sp)
}

func (a *Algod) updateTxnWithParams(op string, owner Wallet, contractID, price uint64, sp types.SuggestedParams) (types.Transaction, error) {
	sender, err := types.DecodeAddress(owner.Address)
	if err != nil {
		return types.Transaction{}, newError(op, KindInvalid, err)
	}
	txn, err := transaction.MakeApplicationNoOpTx(contractID, updateArgs(price), nil, nil, nil,
		sp, sender, nil, types.Digest{}, [32]byte{}, types.Address{})
	if err != nil {
		return types.Transaction{}, newError(op, KindInvalid, err)
	}
	return txn, nil
}

func (a *Algod) params(ctx context.Context, op string) (types.SuggestedParams, error) {
	sp, err := a.client.SuggestedParams().Do(ctx)
	if err != nil {
		return types.SuggestedParams{}, newError(op, KindSubmit, err)
	}
	return sp, nil
}

// submit signs, sends and waits for a single transaction.
func (a *Algod) submit(ctx context.Context, op string, signer Wallet, txn types.Transaction) (models.PendingTransactionInfoResponse, Receipt, error) {
	var none models.PendingTransactionInfoResponse
	txid, stx, err := crypto.SignTransaction(signer.Key, txn)
	if err != nil {
		return none, Receipt{}, newError(op, KindInvalid, err)
	}
	if _, err := a.client.SendRawTransaction(stx).Do(ctx); err != nil {
		return none, Receipt{}, newError(op, KindRejected, err)
	}
	info, err := transaction.WaitForConfirmation(a.client, txid, a.confirmRounds, ctx)
	if err != nil {
		return none, Receipt{}, newError(op, waitKind(err), err)
	}
	log.Debug().Str("op", op).Str("tx_id", txid).Uint64("round", info.ConfirmedRound).Msg("transaction confirmed")
	return info, Receipt{TxIDs: []string{txid}, ConfirmedRound: info.ConfirmedRound}, nil
}

// programs compiles the oracle once per process; failures are not cached.
func (a *Algod) programs(ctx context.Context) ([]byte, []byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.approval != nil && a.clearProg != nil {
		return a.approval, a.clearProg, nil
	}
	approval, err := a.compile(ctx, oracleApproval)
	if err != nil {
		return nil, nil, err
	}
	clearProg, err := a.compile(ctx, oracleClear)
	if err != nil {
		return nil, nil, err
	}
	a.approval, a.clearProg = approval, clearProg
	return approval, clearProg, nil
}

func (a *Algod) compile(ctx context.Context, source string) ([]byte, error) {
	res, err := a.client.TealCompile([]byte(source)).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile teal: %w", err)
	}
	return base64.StdEncoding.DecodeString(res.Result)
}

func waitKind(err error) Kind {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timed out") || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindRejected
}

func toRawKVs(gs []models.TealKeyValue) []rawKV {
	out := make([]rawKV, 0, len(gs))
	for _, kv := range gs {
		out = append(out, rawKV{Key: kv.Key, Type: kv.Value.Type, Bytes: kv.Value.Bytes, Uint: kv.Value.Uint})
	}
	return out
}
