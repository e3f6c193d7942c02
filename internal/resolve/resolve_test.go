package resolve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SatVault/internal/ledger"
	"SatVault/internal/ledger/ledgertest"
)

// TestFindObjects_Fixture matches by type signature and reports absence.
func TestFindObjects_Fixture(t *testing.T) {
	o := &ledger.Outcome{ObjectChanges: []ledger.ObjectChange{
		{Kind: ledger.ChangeCreated, ObjectType: "0x2::coin::TreasuryCap<PKG::x::X>", ObjectID: "A"},
		{Kind: ledger.ChangeCreated, ObjectType: "0x2::package::UpgradeCap", ObjectID: "B"},
	}}

	objs := FindObjects(o, Subject{Package: "PKG", Module: "x", Type: "X"}, CoinExpectations())

	assert.Equal(t, Objects{TreasuryCap: "A", UpgradeCap: "B"}, objs)

	_, ok := objs.Get(Metadata)
	assert.False(t, ok)
	assert.Equal(t, []string{Metadata}, objs.Missing(CoinExpectations().Names()...))

	err := objs.Err(CoinExpectations().Names()...)
	assert.True(t, errors.Is(err, ErrObjectNotFound))
	assert.ErrorContains(t, err, Metadata)
}

// TestResolve_OpaquePackageID keeps a non-hex package id as published.
func TestResolve_OpaquePackageID(t *testing.T) {
	o := &ledger.Outcome{ObjectChanges: []ledger.ObjectChange{
		{Kind: ledger.ChangePublished, PackageID: "PKG"},
		{Kind: ledger.ChangeCreated, ObjectType: "0x2::coin::TreasuryCap<PKG::x::X>", ObjectID: "A"},
		{Kind: ledger.ChangeCreated, ObjectType: "0x2::package::UpgradeCap", ObjectID: "B"},
	}}

	res, err := Resolve(o, "x", "X", CoinExpectations())
	require.NoError(t, err)

	assert.Equal(t, "PKG", res.PackageID)
	assert.Equal(t, "PKG::x::X", res.TypeName)
	assert.Equal(t, Objects{TreasuryCap: "A", UpgradeCap: "B"}, res.Objects)
	assert.Equal(t, []string{Metadata}, res.Objects.Missing(CoinExpectations().Names()...))
}

// TestFindObjects_CreatedOnly ignores mutated records and takes the first match.
func TestFindObjects_CreatedOnly(t *testing.T) {
	o := &ledger.Outcome{ObjectChanges: []ledger.ObjectChange{
		{Kind: ledger.ChangeMutated, ObjectType: "0x2::package::UpgradeCap", ObjectID: "mutated"},
		{Kind: ledger.ChangeCreated, ObjectType: "0x2::package::UpgradeCap", ObjectID: "first"},
		{Kind: ledger.ChangeCreated, ObjectType: "0x2::package::UpgradeCap", ObjectID: "second"},
	}}

	objs := FindObjects(o, Subject{}, Expectations{{Name: UpgradeCap, Type: "0x2::package::UpgradeCap"}})

	id, ok := objs.Get(UpgradeCap)
	require.True(t, ok)
	assert.Equal(t, "first", id)
}

// TestFindObjects_AddressForms matches long and short address forms.
func TestFindObjects_AddressForms(t *testing.T) {
	long := "0x0000000000000000000000000000000000000000000000000000000000000002"
	o := &ledger.Outcome{ObjectChanges: []ledger.ObjectChange{
		{Kind: ledger.ChangeCreated, ObjectType: long + "::coin::CoinMetadata<0x00abc::satxbtc::SATXBTC>", ObjectID: "M"},
	}}

	objs := FindObjects(o, Subject{Package: "0xabc", Module: "satxbtc", Type: "SATXBTC"}, CoinExpectations())

	id, ok := objs.Get(Metadata)
	require.True(t, ok)
	assert.Equal(t, "M", id)
}

// TestFindObjects_CustomExpectations resolves the core vault objects.
func TestFindObjects_CustomExpectations(t *testing.T) {
	o := &ledger.Outcome{ObjectChanges: []ledger.ObjectChange{
		{Kind: ledger.ChangeCreated, ObjectType: "0xabc::version::Version", ObjectID: "V"},
		{Kind: ledger.ChangeCreated, ObjectType: "0xabc::satlayer_pool::AdminCap", ObjectID: "A"},
	}}

	exps := Expectations{
		{Name: "AdminCap", Type: "{package}::satlayer_pool::AdminCap"},
		{Name: "VAdminCap", Type: "{package}::version::VAdminCap"},
		{Name: "Version", Type: "{package}::version::Version"},
	}

	objs := FindObjects(o, Subject{Package: "0xabc"}, exps)
	assert.Equal(t, Objects{"AdminCap": "A", "Version": "V"}, objs)
	assert.Equal(t, []string{"VAdminCap"}, objs.Missing(exps.Names()...))
}

// TestPackageID covers zero, one and several published records.
func TestPackageID(t *testing.T) {
	one := &ledger.Outcome{ObjectChanges: []ledger.ObjectChange{
		{Kind: ledger.ChangeCreated, ObjectType: "0x2::package::UpgradeCap"},
		{Kind: ledger.ChangePublished, PackageID: "0x00000abc"},
	}}

	id, err := PackageID(one)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", id)

	_, err = PackageID(&ledger.Outcome{})
	assert.True(t, errors.Is(err, ErrNoPackage))

	two := &ledger.Outcome{ObjectChanges: []ledger.ObjectChange{
		{Kind: ledger.ChangePublished, PackageID: "0xa"},
		{Kind: ledger.ChangePublished, PackageID: "0xb"},
	}}

	_, err = PackageID(two)
	assert.True(t, errors.Is(err, ErrMultiplePackages))
}

// TestResolve_Idempotent resolves the same outcome twice to equal results.
func TestResolve_Idempotent(t *testing.T) {
	o := ledgertest.CoinOutcome("D1", "satxbtc", "SATXBTC")

	first, err := Resolve(o, "satxbtc", "SATXBTC", CoinExpectations())
	require.NoError(t, err)

	second, err := Resolve(o, "satxbtc", "SATXBTC", CoinExpectations())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, ledgertest.PackageID, first.PackageID)
	assert.Equal(t, ledgertest.PackageID+"::satxbtc::SATXBTC", first.TypeName)
	assert.Equal(t, Objects{
		Metadata:    ledgertest.MetadataID,
		TreasuryCap: ledgertest.TreasuryCapID,
		UpgradeCap:  ledgertest.UpgradeCapID,
	}, first.Objects)
}

// TestExpectations_Ready reports readiness only once every object is present.
func TestExpectations_Ready(t *testing.T) {
	ready := CoinExpectations().Ready("satxbtc", "SATXBTC")

	full := ledgertest.CoinOutcome("D1", "satxbtc", "SATXBTC")
	assert.True(t, ready(full))

	partial := ledgertest.WithoutType(full, "0x2::coin::TreasuryCap<0xabc::satxbtc::SATXBTC>")
	assert.False(t, ready(partial))

	assert.False(t, ready(&ledger.Outcome{}))
}
