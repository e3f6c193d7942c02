package ledgertest

import (
	"bytes"

	"SatVault/internal/ledger"
)

// Package and object ids used by the fixtures.
const (
	PackageID     = "0xabc"
	MetadataID    = "0x111"
	TreasuryCapID = "0x222"
	UpgradeCapID  = "0x333"
	GasCoinID     = "0x444"
)

// Signer returns a deterministic keypair.
func Signer() *ledger.Keypair {
	kp, err := ledger.NewKeypair(bytes.Repeat([]byte{0x07}, 32))
	if err != nil {
		panic(err)
	}

	return kp
}

// CoinOutcome is a successful publication of module::typ in PackageID,
// with the metadata, treasury cap and upgrade cap created.
func CoinOutcome(digest, module, typ string) *ledger.Outcome {
	subject := PackageID + "::" + module + "::" + typ

	return &ledger.Outcome{
		Digest: digest,
		Status: ledger.Status{Status: "success"},
		ObjectChanges: []ledger.ObjectChange{
			{Kind: ledger.ChangeMutated, ObjectType: "0x2::coin::Coin<0x2::sui::SUI>", ObjectID: GasCoinID},
			{Kind: ledger.ChangePublished, PackageID: PackageID, Modules: []string{module}},
			{Kind: ledger.ChangeCreated, ObjectType: "0x2::coin::CoinMetadata<" + subject + ">", ObjectID: MetadataID},
			{Kind: ledger.ChangeCreated, ObjectType: "0x2::coin::TreasuryCap<" + subject + ">", ObjectID: TreasuryCapID},
			{Kind: ledger.ChangeCreated, ObjectType: "0x2::package::UpgradeCap", ObjectID: UpgradeCapID},
		},
	}
}

// WithoutType returns a copy of o minus created records of the given type.
func WithoutType(o *ledger.Outcome, objectType string) *ledger.Outcome {
	c := *o
	c.ObjectChanges = nil

	for _, ch := range o.ObjectChanges {
		if ch.Kind == ledger.ChangeCreated && ch.ObjectType == objectType {
			continue
		}

		c.ObjectChanges = append(c.ObjectChanges, ch)
	}

	return &c
}
