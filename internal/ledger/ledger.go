// Package ledger is the single point of contact with the Algorand network.
//
// Callers work with typed operations (create a token, deploy the price oracle, settle a job);
// transaction construction, signing, submission and confirmation waiting stay inside the
// implementations. Algod talks to a real node; Memory is an in-process ledger with the same
// semantics, used by tests and by LEDGER_MODE=memory.
package ledger

import "context"

// DefaultConfirmRounds bounds how many rounds a mutating call waits for inclusion.
const DefaultConfirmRounds = 4

// TokenSpec describes a fungible asset issued by a company.
type TokenSpec struct {
	UnitName  string
	AssetName string
	Total     uint64
	Decimals  uint32
	URL       string
}

// PriceState is a snapshot of a price oracle's global state.
type PriceState struct {
	ContractID   uint64 `json:"contract_id"`
	OwnerAddress string `json:"owner_address"`
	TokenID      uint64 `json:"token_id"`
	TokenPrice   uint64 `json:"token_price"`
}

// SettleRequest is one job settlement: cash and tokens from Owner to Recipient plus a price
// update on ContractID, executed as a single atomic group.
type SettleRequest struct {
	Owner       Wallet
	Recipient   string
	ContractID  uint64
	AssetID     uint64
	CashAmount  uint64
	TokenAmount uint64
	NewPrice    uint64
}

// Receipt identifies a confirmed submission.
type Receipt struct {
	TxIDs          []string `json:"tx_ids"`
	GroupID        string   `json:"group_id,omitempty"`
	ConfirmedRound uint64   `json:"confirmed_round"`
}

// TxID returns the id of the first transaction in the submission.
func (r Receipt) TxID() string {
	if len(r.TxIDs) == 0 {
		return ""
	}
	return r.TxIDs[0]
}

// NodeStatus is the subset of node status used for health reporting.
type NodeStatus struct {
	LastRound uint64 `json:"last_round"`
}

// Client is the ledger surface used by the settlement core.
type Client interface {
	CreateToken(ctx context.Context, owner Wallet, spec TokenSpec) (uint64, error)
	OptIn(ctx context.Context, account Wallet, assetID uint64) error
	DeployPriceContract(ctx context.Context, owner Wallet, tokenID, initialPrice uint64) (uint64, error)
	UpdatePrice(ctx context.Context, owner Wallet, contractID, newPrice uint64) (Receipt, error)
	ReadState(ctx context.Context, contractID uint64) (PriceState, error)
	AtomicSettle(ctx context.Context, req SettleRequest) (Receipt, error)
	Status(ctx context.Context) (NodeStatus, error)
}

// Faucet funds freshly created accounts from a treasury it alone holds the key for.
type Faucet interface {
	Fund(ctx context.Context, address string, amount uint64) (Receipt, error)
}
