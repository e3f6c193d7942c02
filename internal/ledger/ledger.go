// Package ledger is the narrow surface of the Sui network used by the
// deployment pipeline: building and executing publish transactions, reading
// finalized outcomes, and signing with an Ed25519 key.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotIndexed is returned while a digest is not yet visible to the node.
	ErrNotIndexed = errors.New("transaction not indexed yet")

	// ErrInvalidAddress is returned for malformed object ids and addresses.
	ErrInvalidAddress = errors.New("invalid address")
)

// ChangeKind classifies one object change of a transaction.
type ChangeKind string

// Object change kinds reported by the node.
const (
	ChangeCreated     ChangeKind = "created"
	ChangeMutated     ChangeKind = "mutated"
	ChangeDeleted     ChangeKind = "deleted"
	ChangePublished   ChangeKind = "published"
	ChangeTransferred ChangeKind = "transferred"
	ChangeWrapped     ChangeKind = "wrapped"
)

// Owner is the owner of an object after a transaction.
type Owner struct {
	Kind    string // Kind is AddressOwner, ObjectOwner, Shared or Immutable
	Address string // Address is the owning address or object, if any
}

// UnmarshalJSON accepts {"AddressOwner":"0x.."}, {"Shared":{...}} and "Immutable".
func (o *Owner) UnmarshalJSON(b []byte) error {
	var plain string
	if err := json.Unmarshal(b, &plain); err == nil {
		o.Kind = plain
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(b, &tagged); err != nil {
		return fmt.Errorf("decode owner:\n%w", err)
	}

	for kind, raw := range tagged {
		o.Kind = kind

		var addr string
		if json.Unmarshal(raw, &addr) == nil {
			o.Address = addr
		}
	}

	return nil
}

// MarshalJSON writes the owner back in node form.
func (o Owner) MarshalJSON() ([]byte, error) {
	if o.Address == "" {
		return json.Marshal(o.Kind)
	}

	return json.Marshal(map[string]string{o.Kind: o.Address})
}

// ObjectChange is one entry of a transaction's object changes.
type ObjectChange struct {
	Kind       ChangeKind  `json:"type"`                 // Kind is the change classification
	ObjectType string      `json:"objectType,omitempty"` // ObjectType is the fully qualified type
	ObjectID   string      `json:"objectId,omitempty"`   // ObjectID is the object id
	PackageID  string      `json:"packageId,omitempty"`  // PackageID is set on published records
	Modules    []string    `json:"modules,omitempty"`    // Modules lists published module names
	Owner      *Owner      `json:"owner,omitempty"`      // Owner is the owner after the change
	Version    json.Number `json:"version,omitempty"`    // Version is the object version
	Digest     string      `json:"digest,omitempty"`     // Digest is the object digest
}

// Status is the execution status of a finalized transaction.
type Status struct {
	Status string `json:"status"`          // Status is "success" or "failure"
	Error  string `json:"error,omitempty"` // Error is the abort reason on failure
}

// Success reports whether the transaction executed successfully.
func (s Status) Success() bool {
	return s.Status == "success"
}

// Outcome is the finalized result of a transaction.
type Outcome struct {
	Digest        string         `json:"digest"`        // Digest identifies the transaction
	Status        Status         `json:"status"`        // Status is the execution status
	ObjectChanges []ObjectChange `json:"objectChanges"` // ObjectChanges lists affected objects
}

// PublishTx describes a package publication.
type PublishTx struct {
	Sender       string   // Sender pays for gas and receives the upgrade capability
	Modules      [][]byte // Modules are the compiled module bytes
	Dependencies []string // Dependencies are package ids the modules link against
	GasBudget    uint64   // GasBudget bounds the gas spent
	GasObject    string   // GasObject selects a coin, empty lets the node choose
}

// Node is the ledger RPC surface the pipeline needs.
type Node interface {
	// BuildPublish returns the unsigned transaction bytes of a publication.
	BuildPublish(ctx context.Context, tx PublishTx) ([]byte, error)

	// Execute submits signed transaction bytes and waits for local execution.
	Execute(ctx context.Context, txBytes []byte, signatures []string) (*Outcome, error)

	// GetTransaction reads a finalized transaction; ErrNotIndexed if unknown yet.
	GetTransaction(ctx context.Context, digest string) (*Outcome, error)
}

// Signer signs transactions for one address.
type Signer interface {
	// Address returns the 0x-prefixed account address.
	Address() string

	// SignTransaction returns the serialized signature of txBytes.
	SignTransaction(txBytes []byte) (string, error)
}

// NormalizeID left-pads an id to 64 hex digits, e.g. 0x2 -> 0x000...02.
func NormalizeID(id string) (string, error) {
	hexPart := strings.ToLower(strings.TrimPrefix(id, "0x"))
	if hexPart == "" || len(hexPart) > 64 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, id)
	}

	for _, c := range hexPart {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return "", fmt.Errorf("%w: %q", ErrInvalidAddress, id)
		}
	}

	return "0x" + strings.Repeat("0", 64-len(hexPart)) + hexPart, nil
}

// ShortID strips leading zeros after 0x, e.g. 0x000...02 -> 0x2.
// Ids that are all zeros become 0x0. Anything that is not 0x-prefixed hex
// is returned unchanged.
func ShortID(id string) string {
	lower := strings.ToLower(id)
	if !strings.HasPrefix(lower, "0x") || !isHex(lower[2:]) {
		return id
	}

	hexPart := strings.TrimLeft(lower[2:], "0")
	if hexPart == "" {
		hexPart = "0"
	}

	return "0x" + hexPart
}

// isHex reports whether s is a non-empty run of lowercase hex digits.
func isHex(s string) bool {
	if s == "" {
		return false
	}

	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}

	return true
}
