package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
)

// Op names a transaction type; faults are injected per type.
type Op string

const (
	OpPayment       Op = "payment"
	OpAssetCreate   Op = "asset_create"
	OpOptIn         Op = "opt_in"
	OpAssetTransfer Op = "asset_transfer"
	OpAppCreate     Op = "app_create"
	OpAppCall       Op = "app_call"
)

// MinFee is charged to the sender of every transaction applied by Memory.
const MinFee = 1000

// TreasuryAddress is the funding account of a Memory ledger.
const TreasuryAddress = "MEMORY-TREASURY"

var (
	errNoSuchObject  = errors.New("no such object")
	errOverspend     = errors.New("overspend")
	errNotOptedIn    = errors.New("receiver not opted in to asset")
	errUnauthorized  = errors.New("logic eval error: assert failed")
	errUnknownMethod = errors.New("logic eval error: err opcode executed")
)

type holdingKey struct {
	addr  string
	asset uint64
}

type memApp struct {
	creator string
	tokenID uint64
	price   uint64
}

type memState struct {
	nextID   uint64
	balances map[string]uint64
	assets   map[uint64]TokenSpec
	creators map[uint64]string
	holdings map[holdingKey]uint64
	apps     map[uint64]memApp
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:   s.nextID,
		balances: make(map[string]uint64, len(s.balances)),
		assets:   make(map[uint64]TokenSpec, len(s.assets)),
		creators: make(map[uint64]string, len(s.creators)),
		holdings: make(map[holdingKey]uint64, len(s.holdings)),
		apps:     make(map[uint64]memApp, len(s.apps)),
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.assets {
		c.assets[k] = v
	}
	for k, v := range s.creators {
		c.creators[k] = v
	}
	for k, v := range s.holdings {
		c.holdings[k] = v
	}
	for k, v := range s.apps {
		c.apps[k] = v
	}
	return c
}

func (s *memState) debit(addr string, amount uint64) error {
	if s.balances[addr] < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", errOverspend, addr, s.balances[addr], amount)
	}
	s.balances[addr] -= amount
	return nil
}

type memTxn struct {
	op     Op
	sender string
	apply  func(st *memState) error
}

// Memory is an in-process ledger. Every submission is applied to a staged copy of the
// state and committed only if all of its transactions succeed, the same all-or-nothing
// rule the network applies to groups.
type Memory struct {
	mu     sync.Mutex
	st     *memState
	round  uint64
	txSeq  uint64
	faults map[Op][]error
}

var (
	_ Client = (*Memory)(nil)
	_ Faucet = (*Memory)(nil)
)

// NewMemory returns an empty ledger whose treasury holds effectively unlimited funds.
func NewMemory() *Memory {
	st := &memState{
		nextID:   1000,
		balances: map[string]uint64{TreasuryAddress: math.MaxUint64 / 2},
		assets:   make(map[uint64]TokenSpec),
		creators: make(map[uint64]string),
		holdings: make(map[holdingKey]uint64),
		apps:     make(map[uint64]memApp),
	}
	return &Memory{st: st, round: 1, faults: make(map[Op][]error)}
}

// Credit adds funds to an account outside of any transaction.
func (m *Memory) Credit(address string, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.balances[address] += amount
}

// FailNext makes the next transaction of the given type fail with err.
func (m *Memory) FailNext(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = append(m.faults[op], err)
}

// Balance returns an account's cash balance.
func (m *Memory) Balance(address string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.balances[address]
}

// AssetBalance returns an account's holding of an asset and whether it is opted in.
func (m *Memory) AssetBalance(address string, assetID uint64) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	amt, ok := m.st.holdings[holdingKey{address, assetID}]
	return amt, ok
}

func (m *Memory) Status(ctx context.Context) (NodeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return NodeStatus{LastRound: m.round}, nil
}

func (m *Memory) Fund(ctx context.Context, address string, amount uint64) (Receipt, error) {
	return m.submit(ctx, "fund", m.payment(TreasuryAddress, address, amount))
}

func (m *Memory) CreateToken(ctx context.Context, owner Wallet, spec TokenSpec) (uint64, error) {
	var id uint64
	_, err := m.submit(ctx, "create_token", memTxn{
		op:     OpAssetCreate,
		sender: owner.Address,
		apply: func(st *memState) error {
			st.nextID++
			id = st.nextID
			st.assets[id] = spec
			st.creators[id] = owner.Address
			st.holdings[holdingKey{owner.Address, id}] = spec.Total
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (m *Memory) OptIn(ctx context.Context, account Wallet, assetID uint64) error {
	_, err := m.submit(ctx, "opt_in", memTxn{
		op:     OpOptIn,
		sender: account.Address,
		apply: func(st *memState) error {
			if _, ok := st.assets[assetID]; !ok {
				return errNoSuchObject
			}
			k := holdingKey{account.Address, assetID}
			if _, ok := st.holdings[k]; !ok {
				st.holdings[k] = 0
			}
			return nil
		},
	})
	return err
}

func (m *Memory) DeployPriceContract(ctx context.Context, owner Wallet, tokenID, initialPrice uint64) (uint64, error) {
	var id uint64
	_, err := m.submit(ctx, "deploy_price_contract", memTxn{
		op:     OpAppCreate,
		sender: owner.Address,
		apply: func(st *memState) error {
			st.nextID++
			id = st.nextID
			st.apps[id] = memApp{creator: owner.Address, tokenID: tokenID, price: initialPrice}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (m *Memory) UpdatePrice(ctx context.Context, owner Wallet, contractID, newPrice uint64) (Receipt, error) {
	return m.submit(ctx, "update_price", m.appCall(owner.Address, contractID, updateArgs(newPrice)))
}

func (m *Memory) ReadState(ctx context.Context, contractID uint64) (PriceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.st.apps[contractID]
	if !ok {
		return PriceState{}, newError("read_state", KindNotFound, fmt.Errorf("application %d: %w", contractID, errNoSuchObject))
	}
	return PriceState{
		ContractID:   contractID,
		OwnerAddress: app.creator,
		TokenID:      app.tokenID,
		TokenPrice:   app.price,
	}, nil
}

func (m *Memory) AtomicSettle(ctx context.Context, req SettleRequest) (Receipt, error) {
	owner := req.Owner.Address
	return m.submit(ctx, "atomic_settle",
		m.payment(owner, req.Recipient, req.CashAmount),
		memTxn{
			op:     OpAssetTransfer,
			sender: owner,
			apply: func(st *memState) error {
				from := holdingKey{owner, req.AssetID}
				to := holdingKey{req.Recipient, req.AssetID}
				have, ok := st.holdings[from]
				if !ok {
					return errNoSuchObject
				}
				if _, ok := st.holdings[to]; !ok {
					return errNotOptedIn
				}
				if have < req.TokenAmount {
					return fmt.Errorf("%w: asset %d", errOverspend, req.AssetID)
				}
				st.holdings[from] = have - req.TokenAmount
				st.holdings[to] += req.TokenAmount
				return nil
			},
		},
		m.appCall(owner, req.ContractID, updateArgs(req.NewPrice)),
	)
}

func (m *Memory) payment(from, to string, amount uint64) memTxn {
	return memTxn{
		op:     OpPayment,
		sender: from,
		apply: func(st *memState) error {
			if err := st.debit(from, amount); err != nil {
				return err
			}
			st.balances[to] += amount
			return nil
		},
	}
}

// appCall runs the price oracle's approval logic for a NoOp call.
func (m *Memory) appCall(sender string, contractID uint64, args [][]byte) memTxn {
	return memTxn{
		op:     OpAppCall,
		sender: sender,
		apply: func(st *memState) error {
			app, ok := st.apps[contractID]
			if !ok {
				return errNoSuchObject
			}
			if len(args) == 0 || string(args[0]) != MethodUpdateTokenPrice {
				return errUnknownMethod
			}
			if sender != app.creator {
				return errUnauthorized
			}
			if len(args) < 2 {
				return errUnknownMethod
			}
			price, err := ArgUint64(args[1])
			if err != nil {
				return err
			}
			app.price = price
			st.apps[contractID] = app
			return nil
		},
	}
}

func (m *Memory) submit(ctx context.Context, op string, txns ...memTxn) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, newError(op, KindSubmit, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.st.clone()
	for i, txn := range txns {
		if err := m.takeFault(txn.op); err != nil {
			return Receipt{}, newError(op, KindRejected, fmt.Errorf("txn %d (%s): %w", i, txn.op, err))
		}
		if err := staged.debit(txn.sender, MinFee); err != nil {
			return Receipt{}, newError(op, KindRejected, fmt.Errorf("txn %d (%s) fee: %w", i, txn.op, err))
		}
		if err := txn.apply(staged); err != nil {
			kind := KindRejected
			if errors.Is(err, errNoSuchObject) {
				kind = KindNotFound
			}
			return Receipt{}, newError(op, kind, fmt.Errorf("txn %d (%s): %w", i, txn.op, err))
		}
	}

	m.st = staged
	m.round++
	rcpt := Receipt{ConfirmedRound: m.round}
	for range txns {
		m.txSeq++
		rcpt.TxIDs = append(rcpt.TxIDs, "MEM"+strconv.FormatUint(m.txSeq, 10))
	}
	if len(txns) > 1 {
		rcpt.GroupID = "GRP" + strconv.FormatUint(m.round, 10)
	}
	return rcpt, nil
}

func (m *Memory) takeFault(op Op) error {
	q := m.faults[op]
	if len(q) == 0 {
		return nil
	}
	m.faults[op] = q[1:]
	return q[0]
}
