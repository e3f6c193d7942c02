package ledger

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	// ed25519Flag is the signature scheme flag of Ed25519 keys.
	ed25519Flag = 0x00

	// hardened marks a hardened derivation index.
	hardened = 0x80000000

	// coinType is the registered coin type of the Sui ledger.
	coinType = 784
)

// transactionDataTag is the domain separator of transaction digests.
const transactionDataTag = "TransactionData::"

// transactionIntent prefixes transaction data before signing:
// scope TransactionData, version V0, app Sui.
var transactionIntent = []byte{0, 0, 0}

// ErrInvalidMnemonic is returned for mnemonics with an unsupported word count.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// Keypair is an Ed25519 account key.
type Keypair struct {
	privKey ed25519.PrivateKey // privKey is the Ed25519 private key
	pubKey  ed25519.PublicKey  // pubKey is the Ed25519 public key
	address string             // address is derived from pubKey
}

// NewKeypair builds a keypair from a 32-byte Ed25519 seed.
func NewKeypair(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	return &Keypair{privKey: priv, pubKey: pub, address: AddressOf(pub)}, nil
}

// DeriveKeypair derives the key of an account from a BIP-39 mnemonic
// along m/44'/784'/{account}'/0'/0'.
func DeriveKeypair(mnemonic string, account uint32) (*Keypair, error) {
	words := strings.Fields(mnemonic)
	switch len(words) {
	case 12, 15, 18, 21, 24:
	default:
		return nil, fmt.Errorf("%w: %d words", ErrInvalidMnemonic, len(words))
	}

	seed := mnemonicSeed(strings.Join(words, " "), "")
	path := []uint32{44, coinType, account, 0, 0}

	key, _ := deriveHardened(seed, path)

	return NewKeypair(key[:])
}

// Address returns the 0x-prefixed account address.
func (k *Keypair) Address() string {
	return k.address
}

// PublicKey returns the Ed25519 public key.
func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.pubKey
}

// SignTransaction signs the intent message of txBytes and returns the
// serialized signature: base64(flag || signature || public key).
func (k *Keypair) SignTransaction(txBytes []byte) (string, error) {
	digest := intentDigest(txBytes)
	sig := ed25519.Sign(k.privKey, digest[:])

	out := make([]byte, 0, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	out = append(out, ed25519Flag)
	out = append(out, sig...)
	out = append(out, k.pubKey...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// VerifyTransaction checks a serialized signature over txBytes and returns
// the signer address.
func VerifyTransaction(txBytes []byte, serialized string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return "", fmt.Errorf("decode signature:\n%w", err)
	}

	if len(raw) != 1+ed25519.SignatureSize+ed25519.PublicKeySize || raw[0] != ed25519Flag {
		return "", fmt.Errorf("not an ed25519 signature")
	}

	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
	digest := intentDigest(txBytes)

	if !ed25519.Verify(pub, digest[:], sig) {
		return "", fmt.Errorf("signature does not verify")
	}

	return AddressOf(pub), nil
}

// AddressOf derives the account address of an Ed25519 public key:
// blake2b-256(flag || pubkey).
func AddressOf(pub ed25519.PublicKey) string {
	buf := append([]byte{ed25519Flag}, pub...)
	sum := blake2b.Sum256(buf)

	return "0x" + hex.EncodeToString(sum[:])
}

// TransactionDigest returns the base58 digest the node assigns to txBytes.
func TransactionDigest(txBytes []byte) string {
	msg := make([]byte, 0, len(transactionDataTag)+len(txBytes))
	msg = append(msg, transactionDataTag...)
	msg = append(msg, txBytes...)

	sum := blake2b.Sum256(msg)

	return base58.Encode(sum[:])
}

// intentDigest hashes the intent message of txBytes.
func intentDigest(txBytes []byte) [32]byte {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent...)
	msg = append(msg, txBytes...)

	return blake2b.Sum256(msg)
}

// mnemonicSeed computes the BIP-39 seed of a mnemonic.
func mnemonicSeed(mnemonic, passphrase string) []byte {
	password := norm.NFKD.String(mnemonic)
	salt := norm.NFKD.String("mnemonic" + passphrase)

	return pbkdf2.Key([]byte(password), []byte(salt), 2048, 64, sha512.New)
}

// deriveHardened walks a SLIP-0010 Ed25519 path, every index hardened.
// Returns the private key and chain code of the final node.
func deriveHardened(seed []byte, path []uint32) ([32]byte, [32]byte) {
	key, chain := slip10Split(hmacSHA512([]byte("ed25519 seed"), seed))

	for _, index := range path {
		data := make([]byte, 0, 37)
		data = append(data, 0x00)
		data = append(data, key[:]...)
		data = binary.BigEndian.AppendUint32(data, index|hardened)

		key, chain = slip10Split(hmacSHA512(chain[:], data))
	}

	return key, chain
}

// hmacSHA512 computes HMAC-SHA512 of data under key.
func hmacSHA512(key, data []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)

	return mac.Sum(nil)
}

// slip10Split splits an HMAC output into key and chain code.
func slip10Split(i []byte) ([32]byte, [32]byte) {
	var key, chain [32]byte
	copy(key[:], i[:32])
	copy(chain[:], i[32:])

	return key, chain
}
