package ledger

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
)

// Wallet is an account address with its signing key.
type Wallet struct {
	Address string
	Key     ed25519.PrivateKey
}

// NewWallet generates a fresh account and returns it with its 25-word mnemonic.
func NewWallet() (Wallet, string, error) {
	acct := crypto.GenerateAccount()
	words, err := mnemonic.FromPrivateKey(acct.PrivateKey)
	if err != nil {
		return Wallet{}, "", fmt.Errorf("encode mnemonic: %w", err)
	}
	return Wallet{Address: acct.Address.String(), Key: acct.PrivateKey}, words, nil
}

// WalletFromMnemonic restores a wallet from its 25-word mnemonic.
func WalletFromMnemonic(words string) (Wallet, error) {
	if words == "" {
		return Wallet{}, errors.New("empty mnemonic")
	}
	sk, err := mnemonic.ToPrivateKey(words)
	if err != nil {
		return Wallet{}, fmt.Errorf("decode mnemonic: %w", err)
	}
	acct, err := crypto.AccountFromPrivateKey(sk)
	if err != nil {
		return Wallet{}, fmt.Errorf("derive account: %w", err)
	}
	return Wallet{Address: acct.Address.String(), Key: sk}, nil
}
