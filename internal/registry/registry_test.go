package registry

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/zeebo/blake3"

	"SatVault/internal/pkginfo"
	"SatVault/internal/types"
)

// newTestRegistry opens a registry in a temporary directory.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r, err := Open(filepath.Join(t.TempDir(), "registry"))
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}

	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("close registry: %v", err)
		}
	})

	return r
}

// sampleDeployment returns a fully populated record.
func sampleDeployment(digest string, at time.Time) *Deployment {
	return &Deployment{
		Digest:        digest,
		PackageID:     "0xabc",
		MetadataID:    "0x111",
		TreasuryCapID: "0x222",
		UpgradeCapID:  "0x333",
		TypeName:      "0xabc::satxbtc::SATXBTC",
		Module:        "satxbtc",
		Symbol:        "satxBTC",
		Name:          "SATXBTC",
		Decimals:      8,
		Status:        types.DeploymentStatusComplete,
		TemplateHash:  blake3.Sum256([]byte("template")),
		PublishedAt:   at,
	}
}

func TestDeploymentRoundTrip(t *testing.T) {
	r := newTestRegistry(t)

	want := sampleDeployment("D1", time.UnixMilli(1_700_000_000_123))
	want.Status = types.DeploymentStatusPartial
	want.Stage = "resolve"
	want.Error = "object not found: TreasuryCap"

	if err := r.SaveDeployment(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := r.Deployment("D1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestDeploymentNotFound(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Deployment("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := r.Module("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveDeploymentRequiresDigest(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.SaveDeployment(&Deployment{}); err == nil {
		t.Error("expected error for empty digest")
	}
}

func TestDeploymentsOrder(t *testing.T) {
	r := newTestRegistry(t)
	base := time.UnixMilli(1_700_000_000_000)

	// Digest order differs from time order.
	for i, digest := range []string{"C", "A", "B"} {
		if err := r.SaveDeployment(sampleDeployment(digest, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("save %s: %v", digest, err)
		}
	}

	// Unrelated keys are not part of the scan.
	if err := r.ArchiveModule("A", []byte{1, 2, 3}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	all, err := r.Deployments()
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var digests []string
	for _, d := range all {
		digests = append(digests, d.Digest)
	}

	if diff := cmp.Diff([]string{"C", "A", "B"}, digests); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveDeploymentOverwrite(t *testing.T) {
	r := newTestRegistry(t)
	d := sampleDeployment("D1", time.UnixMilli(1))
	d.Status = types.DeploymentStatusPartial

	if err := r.SaveDeployment(d); err != nil {
		t.Fatalf("save: %v", err)
	}

	d.Status = types.DeploymentStatusComplete
	if err := r.SaveDeployment(d); err != nil {
		t.Fatalf("resave: %v", err)
	}

	all, err := r.Deployments()
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(all) != 1 || all[0].Status != types.DeploymentStatusComplete {
		t.Errorf("expected one complete record, got %+v", all)
	}
}

func TestArchiveModule(t *testing.T) {
	r := newTestRegistry(t)

	// Large repetitive module to exercise compression.
	module := bytes.Repeat([]byte{0xA1, 0x1C, 0xEB, 0x0B, 0x06, 0x00, 0x00, 0x00}, 4096)

	if err := r.ArchiveModule("D1", module); err != nil {
		t.Fatalf("archive: %v", err)
	}

	stored, found, err := r.store.lookup(key(prefixModule, "D1"))
	if err != nil || !found {
		t.Fatalf("raw lookup: found=%v err=%v", found, err)
	}

	if len(stored) >= len(module) {
		t.Errorf("archive not compressed: %d >= %d", len(stored), len(module))
	}

	got, err := r.Module("D1")
	if err != nil {
		t.Fatalf("module: %v", err)
	}

	if !bytes.Equal(got, module) {
		t.Error("archived module differs")
	}
}

func TestDefinitionsStore(t *testing.T) {
	r := newTestRegistry(t)

	var _ pkginfo.Store = r

	p := pkginfo.NewPersister(r)
	if err := p.Persist(pkginfo.Record{PackageID: "0xabc", MetadataID: "0x111"}); err != nil {
		t.Fatalf("persist: %v", err)
	}

	// A later partial write keeps earlier values.
	if err := p.Persist(pkginfo.Record{PackageID: "0xdef"}); err != nil {
		t.Fatalf("persist: %v", err)
	}

	defs, err := r.Definitions()
	if err != nil {
		t.Fatalf("definitions: %v", err)
	}

	want := []pkginfo.Definition{
		{Name: pkginfo.NameMetadata, Value: "0x111"},
		{Name: pkginfo.NamePackageID, Value: "0xdef"},
	}

	if diff := cmp.Diff(want, defs); diff != "" {
		t.Errorf("definitions mismatch (-want +got):\n%s", diff)
	}

	if _, ok, err := r.Lookup("absent"); err != nil || ok {
		t.Errorf("absent lookup: ok=%v err=%v", ok, err)
	}

	if err := r.Upsert([]pkginfo.Definition{{Name: "bad name", Value: "x"}}); !errors.Is(err, pkginfo.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "registry")

	r, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := r.SaveDeployment(sampleDeployment("D1", time.UnixMilli(5))); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r.Close()

	if _, err := r.Deployment("D1"); err != nil {
		t.Errorf("record lost across reopen: %v", err)
	}
}

func TestCorruptRecord(t *testing.T) {
	if _, err := decodeDeployment([]byte{1}); !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	cases := []struct {
		prefix []byte
		want   []byte
	}{
		{[]byte("dep/"), []byte("dep0")},
		{[]byte{0x01, 0xFF}, []byte{0x02}},
		{[]byte{0xFF, 0xFF}, nil},
	}

	for _, c := range cases {
		if got := prefixUpperBound(c.prefix); !bytes.Equal(got, c.want) {
			t.Errorf("prefixUpperBound(%x) = %x, want %x", c.prefix, got, c.want)
		}
	}
}
