package ledger

import (
	"encoding/base64"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// TEAL value types as reported by algod.
const (
	tealTypeBytes uint64 = 1
	tealTypeUint  uint64 = 2
)

// rawKV is one global state entry in algod's wire form: base64 key, typed value.
type rawKV struct {
	Key   string
	Type  uint64
	Bytes string
	Uint  uint64
}

// stateValue is a decoded global state value: either Bytes or Uint is meaningful.
type stateValue struct {
	IsUint bool
	Uint   uint64
	Bytes  []byte
}

func decodeGlobalState(kvs []rawKV) (map[string]stateValue, error) {
	out := make(map[string]stateValue, len(kvs))
	for _, kv := range kvs {
		key, err := base64.StdEncoding.DecodeString(kv.Key)
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", kv.Key, err)
		}
		switch kv.Type {
		case tealTypeUint:
			out[string(key)] = stateValue{IsUint: true, Uint: kv.Uint}
		case tealTypeBytes:
			b, err := base64.StdEncoding.DecodeString(kv.Bytes)
			if err != nil {
				return nil, fmt.Errorf("decode value of %q: %w", key, err)
			}
			out[string(key)] = stateValue{Bytes: b}
		default:
			return nil, fmt.Errorf("key %q: unknown value type %d", key, kv.Type)
		}
	}
	return out, nil
}

func priceStateFrom(contractID uint64, values map[string]stateValue) PriceState {
	st := PriceState{ContractID: contractID}
	if v, ok := values[KeyTokenID]; ok && v.IsUint {
		st.TokenID = v.Uint
	}
	if v, ok := values[KeyTokenPrice]; ok && v.IsUint {
		st.TokenPrice = v.Uint
	}
	if v, ok := values[KeyCompanyAddr]; ok && !v.IsUint {
		st.OwnerAddress = encodeAddress(v.Bytes)
	}
	return st
}

// encodeAddress renders a 32-byte public key as an Algorand address; other widths are
// returned base64-encoded so nothing is silently dropped.
func encodeAddress(b []byte) string {
	var addr types.Address
	if len(b) != len(addr) {
		return base64.StdEncoding.EncodeToString(b)
	}
	copy(addr[:], b)
	return addr.String()
}
