package wallet

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/tyler-smith/go-bip32"
)

// testSeed is the TREZOR BIP-39 vector seed.
func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := SeedFromMnemonic(phrase12, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	return seed
}

func testAccountKey(t *testing.T) (master, acct *HDKey) {
	t.Helper()
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}
	acct, err = master.AccountKey(0)
	if err != nil {
		t.Fatalf("AccountKey() error: %v", err)
	}
	return master, acct
}

func TestNewMasterKey_SeedLength(t *testing.T) {
	for _, n := range []int{0, 32, 128} {
		if _, err := NewMasterKey(make([]byte, n)); err == nil {
			t.Errorf("NewMasterKey(%d bytes) should fail", n)
		}
	}
	master, _ := testAccountKey(t)
	if master.Depth() != 0 || !master.IsPrivate() {
		t.Errorf("master: depth=%d private=%v", master.Depth(), master.IsPrivate())
	}
	if len(master.secret()) != 32 || len(master.PublicKeyBytes()) != 33 {
		t.Error("unexpected key sizes")
	}
}

func TestAccountKey_Path(t *testing.T) {
	master, acct := testAccountKey(t)
	if acct.Depth() != accountDepth {
		t.Fatalf("account depth = %d, want %d", acct.Depth(), accountDepth)
	}
	stepwise, err := master.Derive(PurposeBIP44)
	if err == nil {
		stepwise, err = stepwise.Derive(CoinType, bip32.FirstHardenedChild)
	}
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if stepwise.String() != acct.String() {
		t.Error("AccountKey differs from stepwise derivation")
	}
	other, _ := master.AccountKey(1)
	if other.Address() == acct.Address() {
		t.Error("accounts 0 and 1 share a key")
	}
}

func TestDerive_PublicMatchesPrivate(t *testing.T) {
	_, acct := testAccountKey(t)
	xpub := acct.Neuter()
	seen := make(map[string]KeyPath)
	for _, change := range []uint32{ChangeExternal, ChangeInternal, ChangeStaking, ChangeView} {
		path := KeyPath{Change: change, Index: 7}
		priv, err := acct.Derive(change, 7)
		if err != nil {
			t.Fatalf("private Derive(%s) error: %v", path, err)
		}
		pub, err := xpub.Derive(change, 7)
		if err != nil {
			t.Fatalf("public Derive(%s) error: %v", path, err)
		}
		if priv.Address() != pub.Address() {
			t.Errorf("%s: public derivation gives a different address", path)
		}
		if prev, dup := seen[pub.Address().Hex()]; dup {
			t.Errorf("%s collides with %s", path, prev)
		}
		seen[pub.Address().Hex()] = path
	}

	if _, err := xpub.Derive(bip32.FirstHardenedChild); err == nil {
		t.Error("hardened derivation from a public node should fail")
	}
}

func TestSigner(t *testing.T) {
	_, acct := testAccountKey(t)
	key, _ := acct.Derive(ChangeExternal, 0)

	signer, err := key.Signer()
	if err != nil {
		t.Fatalf("Signer() error: %v", err)
	}
	if !bytes.Equal(signer.PublicKey(), key.PublicKeyBytes()) {
		t.Fatal("signer public key differs from node public key")
	}
	if crypto.AddressFromPubKey(signer.PublicKey()) != key.Address() {
		t.Fatal("signer address differs from node address")
	}
	digest := crypto.Hash([]byte("spend"))
	sig, err := signer.Sign(digest[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !crypto.VerifySignature(digest[:], sig, key.PublicKeyBytes()) {
		t.Error("signature from derived key should verify")
	}

	if _, err := key.Neuter().Signer(); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("public Signer() = %v, want ErrAccountLocked", err)
	}
}

func TestParseAccountXPub(t *testing.T) {
	master, acct := testAccountKey(t)
	xpub := acct.Neuter().String()
	if !strings.HasPrefix(xpub, "xpub") {
		t.Fatalf("xpub = %q", xpub)
	}

	parsed, err := ParseAccountXPub(xpub)
	if err != nil {
		t.Fatalf("ParseAccountXPub() error: %v", err)
	}
	if parsed.IsPrivate() || !bytes.Equal(parsed.PublicKeyBytes(), acct.PublicKeyBytes()) {
		t.Error("parsed xpub does not match the account key")
	}

	for name, s := range map[string]string{
		"garbage": "not-a-key",
		"xprv":    acct.String(),
		"master":  master.Neuter().String(),
	} {
		if _, err := ParseAccountXPub(s); err == nil {
			t.Errorf("%s: ParseAccountXPub should fail", name)
		}
	}
}

func TestKeyPath_Derivation(t *testing.T) {
	if got := (KeyPath{Change: ChangeInternal, Index: 7}).Derivation(); got != "m/44'/8888'/0'/1/7" {
		t.Errorf("Derivation() = %q", got)
	}
}
