package ledger

import (
	"encoding/base64"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint64Arg_BigEndian(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0x05, 0xdc}, Uint64Arg(1500))

	n, err := ArgUint64(Uint64Arg(1<<40 + 7))
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40+7), n)

	_, err = ArgUint64([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCallArgs(t *testing.T) {
	args := updateArgs(15)
	require.Len(t, args, 2)
	assert.Equal(t, MethodUpdateTokenPrice, string(args[0]))

	args = createArgs(77, 1500)
	require.Len(t, args, 3)
	assert.Equal(t, MethodInit, string(args[0]))
	id, _ := ArgUint64(args[1])
	price, _ := ArgUint64(args[2])
	assert.Equal(t, uint64(77), id)
	assert.Equal(t, uint64(1500), price)
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestDecodeGlobalState(t *testing.T) {
	acct := crypto.GenerateAccount()
	raw := []rawKV{
		{Key: b64(KeyTokenID), Type: tealTypeUint, Uint: 1234},
		{Key: b64(KeyTokenPrice), Type: tealTypeUint, Uint: 15},
		{Key: b64(KeyCompanyAddr), Type: tealTypeBytes, Bytes: base64.StdEncoding.EncodeToString(acct.Address[:])},
	}
	values, err := decodeGlobalState(raw)
	require.NoError(t, err)

	st := priceStateFrom(9, values)
	assert.Equal(t, uint64(9), st.ContractID)
	assert.Equal(t, uint64(1234), st.TokenID)
	assert.Equal(t, uint64(15), st.TokenPrice)
	assert.Equal(t, acct.Address.String(), st.OwnerAddress)
}

func TestDecodeGlobalState_Errors(t *testing.T) {
	_, err := decodeGlobalState([]rawKV{{Key: "%%%", Type: tealTypeUint}})
	assert.Error(t, err)

	_, err = decodeGlobalState([]rawKV{{Key: b64("x"), Type: 9}})
	assert.Error(t, err)
}

func TestPriceStateFrom_MissingKeys(t *testing.T) {
	st := priceStateFrom(3, map[string]stateValue{})
	assert.Equal(t, PriceState{ContractID: 3}, st)
}
