package ledger

import (
	"encoding/binary"
	"errors"
)

// Global state keys of the price oracle.
const (
	KeyCompanyAddr = "company_addr"
	KeyTokenID     = "token_id"
	KeyTokenPrice  = "token_price"
)

// Application call selectors.
const (
	MethodInit             = "init"
	MethodUpdateTokenPrice = "update_token_price"
)

// Oracle global schema: token_id and token_price are uints, company_addr is a byte slice.
const (
	oracleGlobalUints  = 2
	oracleGlobalByteSl = 1
)

// oracleApproval records the creator on creation and lets only the creator change the price.
// Any other call is rejected.
const oracleApproval = `#pragma version 8
txn ApplicationID
int 0
==
bnz create

txn OnCompletion
int NoOp
==
assert

txna ApplicationArgs 0
byte "update_token_price"
==
bnz update
err

create:
byte "company_addr"
txn Sender
app_global_put
byte "token_id"
txna ApplicationArgs 1
btoi
app_global_put
byte "token_price"
txna ApplicationArgs 2
btoi
app_global_put
int 1
return

update:
byte "company_addr"
app_global_get
txn Sender
==
assert
byte "token_price"
txna ApplicationArgs 1
btoi
app_global_put
int 1
return
`

const oracleClear = `#pragma version 8
int 1
return
`

var errBadArgWidth = errors.New("numeric argument must be 8 bytes")

// Uint64Arg encodes n as an 8-byte big-endian application argument.
func Uint64Arg(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// ArgUint64 decodes an 8-byte big-endian application argument.
func ArgUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errBadArgWidth
	}
	return binary.BigEndian.Uint64(b), nil
}

func createArgs(tokenID, price uint64) [][]byte {
	return [][]byte{[]byte(MethodInit), Uint64Arg(tokenID), Uint64Arg(price)}
}

func updateArgs(price uint64) [][]byte {
	return [][]byte{[]byte(MethodUpdateTokenPrice), Uint64Arg(price)}
}
