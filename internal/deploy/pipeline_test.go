package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"SatVault/internal/checker"
	"SatVault/internal/ledger"
	"SatVault/internal/ledger/ledgertest"
	"SatVault/internal/movebin"
	"SatVault/internal/movebin/movebintest"
	"SatVault/internal/pkginfo"
	"SatVault/internal/publish"
	"SatVault/internal/registry"
	"SatVault/internal/resolve"
	"SatVault/internal/template"
	"SatVault/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memHistory is an in-memory History.
type memHistory struct {
	mu          sync.Mutex
	deployments map[string]*registry.Deployment
	modules     map[string][]byte
}

func newMemHistory() *memHistory {
	return &memHistory{
		deployments: make(map[string]*registry.Deployment),
		modules:     make(map[string][]byte),
	}
}

func (h *memHistory) SaveDeployment(d *registry.Deployment) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := *d
	h.deployments[d.Digest] = &c

	return nil
}

func (h *memHistory) ArchiveModule(digest string, module []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.modules[digest] = append([]byte(nil), module...)

	return nil
}

func (h *memHistory) deployment(digest string) *registry.Deployment {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.deployments[digest]
}

func (h *memHistory) module(digest string) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.modules[digest]
}

// rejectAll is a verifier that refuses every module.
type rejectAll struct{}

func (rejectAll) Check(context.Context, []byte) error {
	return fmt.Errorf("%w: bad module", checker.ErrModuleRejected)
}

// fixture bundles a pipeline with its collaborators.
type fixture struct {
	pipeline *Pipeline
	file     *pkginfo.File
	history  *memHistory
}

// testConfig polls quickly.
func testConfig() publish.Config {
	cfg := publish.DefaultConfig()
	cfg.PollAttempts = 3
	cfg.PollInterval = time.Millisecond
	cfg.SettleInterval = time.Millisecond
	cfg.SettleTimeout = 20 * time.Millisecond

	return cfg
}

// newFixture builds a pipeline over node; edit adjusts the options.
func newFixture(t *testing.T, node ledger.Node, edit func(*Options)) *fixture {
	t.Helper()

	f := &fixture{
		file:    pkginfo.NewFile(filepath.Join(t.TempDir(), "packageInfo.ts")),
		history: newMemHistory(),
	}

	opts := Options{
		Template:  movebintest.Template(),
		Submitter: publish.NewSubmitter(node, ledgertest.Signer(), testConfig()),
		Persister: pkginfo.NewPersister(f.file),
		History:   f.history,
	}
	if edit != nil {
		edit(&opts)
	}

	p, err := New(opts)
	require.NoError(t, err)

	p.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	f.pipeline = p

	return f
}

// lookup reads a definition from the fixture file.
func (f *fixture) lookup(t *testing.T, name string) (string, bool) {
	t.Helper()

	v, ok, err := f.file.Lookup(name)
	require.NoError(t, err)

	return v, ok
}

// xbtc is the request used throughout.
func xbtc() Request {
	return Request{
		Module:      "satxbtc",
		Name:        "SATXBTC",
		Symbol:      "satxBTC",
		Description: "SatLayer XBTC",
		IconURL:     "data:image/webp;base64,AAAA",
		Decimals:    8,
	}
}

// treasuryType is the treasury cap type of the xbtc fixture outcome.
const treasuryType = "0x2::coin::TreasuryCap<0xabc::satxbtc::SATXBTC>"

func TestDeploy_Success(t *testing.T) {
	node := &ledgertest.Node{Outcome: ledgertest.CoinOutcome("D1", "satxbtc", "SATXBTC"), Pending: 1}
	f := newFixture(t, node, nil)

	res, err := f.pipeline.Deploy(context.Background(), xbtc())
	require.NoError(t, err)

	assert.Equal(t, "D1", res.Digest)
	assert.Equal(t, ledgertest.PackageID, res.PackageID)
	assert.Equal(t, ledgertest.MetadataID, res.MetadataID)
	assert.Equal(t, ledgertest.TreasuryCapID, res.TreasuryCapID)
	assert.Equal(t, ledgertest.UpgradeCapID, res.UpgradeCapID)
	assert.Equal(t, "0xabc::satxbtc::SATXBTC", res.TypeName)
	assert.True(t, res.Complete())
	assert.Empty(t, res.Warnings)

	// The published module is the patched template.
	built := node.Built()
	require.Len(t, built, 1)
	require.Len(t, built[0].Modules, 1)

	m, err := movebin.Decode(built[0].Modules[0])
	require.NoError(t, err)

	id, err := m.Self()
	require.NoError(t, err)
	assert.Equal(t, "satxbtc", id.Name)

	v, err := m.Constants[0].Value()
	require.NoError(t, err)
	assert.Equal(t, movebin.String("satxBTC"), v)

	// Identifiers are persisted.
	for name, want := range map[string]string{
		pkginfo.NamePackageID:   ledgertest.PackageID,
		pkginfo.NameMetadata:    ledgertest.MetadataID,
		pkginfo.NameTreasuryCap: ledgertest.TreasuryCapID,
		pkginfo.NameUpgradeCap:  ledgertest.UpgradeCapID,
		pkginfo.NameTypeName:    "0xabc::satxbtc::SATXBTC",
	} {
		got, ok := f.lookup(t, name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	// History holds the record and the exact published bytes.
	d := f.history.deployment("D1")
	require.NotNil(t, d)
	assert.Equal(t, types.DeploymentStatusComplete, d.Status)
	assert.Equal(t, "satxbtc", d.Module)
	assert.Equal(t, uint8(8), d.Decimals)
	assert.Equal(t, f.pipeline.hash, d.TemplateHash)
	assert.Empty(t, d.Stage)
	assert.Equal(t, built[0].Modules[0], f.history.module("D1"))
}

func TestDeploy_InvalidRequest(t *testing.T) {
	cases := map[string]func(*Request){
		"empty module":    func(r *Request) { r.Module = "" },
		"dashed module":   func(r *Request) { r.Module = "sat-xbtc" },
		"upper module":    func(r *Request) { r.Module = "SATXBTC" },
		"empty name":      func(r *Request) { r.Name = "  " },
		"empty symbol":    func(r *Request) { r.Symbol = "" },
		"invalid utf8":    func(r *Request) { r.Description = "\xff" },
		"leading digit":   func(r *Request) { r.Module = "1coin" },
		"lone underscore": func(r *Request) { r.Module = "_" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			node := &ledgertest.Node{Outcome: ledgertest.CoinOutcome("D1", "satxbtc", "SATXBTC")}
			f := newFixture(t, node, nil)

			req := xbtc()
			mutate(&req)

			res, err := f.pipeline.Deploy(context.Background(), req)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)
			assert.Empty(t, node.Built())
		})
	}
}

func TestDeploy_StructuralErrors(t *testing.T) {
	cases := map[string]struct {
		edit func(*Options)
		req  func(*Request)
		want error
	}{
		"type mismatch": {
			edit: func(o *Options) {
				o.Layout = template.DefaultLayout()
				o.Layout.Decimals.Type = movebin.KindU64
			},
			want: template.ErrConstantTypeMismatch,
		},
		"index out of range": {
			edit: func(o *Options) {
				o.Layout = template.DefaultLayout()
				o.Layout.IconURL.Index = 40
			},
			want: template.ErrConstantIndexOutOfRange,
		},
		"identifier collision": {
			req:  func(r *Request) { r.Module = "coin" },
			want: template.ErrDuplicateIdentifier,
		},
		"verifier rejects": {
			edit: func(o *Options) { o.Verifier = rejectAll{} },
			want: checker.ErrModuleRejected,
		},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			node := &ledgertest.Node{Outcome: ledgertest.CoinOutcome("D1", "satxbtc", "SATXBTC")}
			f := newFixture(t, node, c.edit)

			req := xbtc()
			if c.req != nil {
				c.req(&req)
			}

			res, err := f.pipeline.Deploy(context.Background(), req)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, c.want), "got %v", err)

			var stageErr *StageError
			assert.False(t, errors.As(err, &stageErr), "structural errors carry no stage")

			assert.Empty(t, node.Built())
			assert.Equal(t, 0, node.Executions())
		})
	}
}

func TestNew_Errors(t *testing.T) {
	sub := publish.NewSubmitter(&ledgertest.Node{}, ledgertest.Signer(), testConfig())

	_, err := New(Options{Template: movebintest.Template()})
	assert.Error(t, err)

	_, err = New(Options{Template: []byte{0xA1, 0x1C, 0xEB, 0x0B}, Submitter: sub})
	assert.True(t, errors.Is(err, movebin.ErrMalformedModule), "got %v", err)

	p, err := New(Options{Submitter: sub})
	require.NoError(t, err)

	_, err = p.Prepare(context.Background(), xbtc())
	assert.True(t, errors.Is(err, ErrNoTemplate), "got %v", err)
}

func TestDeploy_FinalityTimeoutThenRecover(t *testing.T) {
	node := &ledgertest.Node{Outcome: ledgertest.CoinOutcome("D1", "satxbtc", "SATXBTC"), Pending: 100}
	f := newFixture(t, node, nil)
	ctx := context.Background()

	res, err := f.pipeline.Deploy(ctx, xbtc())
	require.Error(t, err)
	assert.True(t, errors.Is(err, publish.ErrFinalityTimeout), "got %v", err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageSubmit, stageErr.Stage)
	assert.Equal(t, "D1", stageErr.Digest)

	require.NotNil(t, res)
	assert.Equal(t, "D1", res.Digest)
	assert.Empty(t, res.PackageID)

	_, ok := f.lookup(t, pkginfo.NamePackageID)
	assert.False(t, ok, "nothing persisted before finality")

	d := f.history.deployment("D1")
	require.NotNil(t, d)
	assert.Equal(t, types.DeploymentStatusPartial, d.Status)
	assert.Equal(t, string(StageSubmit), d.Stage)

	// The transaction becomes visible; recovery must not resubmit.
	node.Pending = 0

	res, err = f.pipeline.Recover(ctx, "D1", xbtc())
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, ledgertest.TreasuryCapID, res.TreasuryCapID)
	assert.Equal(t, 1, node.Executions())

	got, ok := f.lookup(t, pkginfo.NameTreasuryCap)
	assert.True(t, ok)
	assert.Equal(t, ledgertest.TreasuryCapID, got)

	assert.Equal(t, types.DeploymentStatusComplete, f.history.deployment("D1").Status)
}

func TestRecover_StillPending(t *testing.T) {
	node := &ledgertest.Node{Outcome: ledgertest.CoinOutcome("D1", "satxbtc", "SATXBTC"), Pending: 100}
	f := newFixture(t, node, nil)

	res, err := f.pipeline.Recover(context.Background(), "D1", xbtc())
	assert.True(t, errors.Is(err, publish.ErrFinalityTimeout), "got %v", err)
	assert.Equal(t, "D1", res.Digest)
	assert.Equal(t, 0, node.Executions())
}

func TestDeploy_MissingObject(t *testing.T) {
	outcome := ledgertest.WithoutType(ledgertest.CoinOutcome("D1", "satxbtc", "SATXBTC"), treasuryType)
	node := &ledgertest.Node{Outcome: outcome}
	f := newFixture(t, node, nil)

	// An earlier run left a treasury cap that must survive.
	require.NoError(t, f.file.Upsert([]pkginfo.Definition{{Name: pkginfo.NameTreasuryCap, Value: "0xold"}}))

	res, err := f.pipeline.Deploy(context.Background(), xbtc())
	require.Error(t, err)
	assert.True(t, errors.Is(err, resolve.ErrObjectNotFound), "got %v", err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageResolve, stageErr.Stage)
	assert.Equal(t, "D1", stageErr.Digest)

	assert.Equal(t, ledgertest.PackageID, res.PackageID)
	assert.Equal(t, ledgertest.MetadataID, res.MetadataID)
	assert.Equal(t, ledgertest.UpgradeCapID, res.UpgradeCapID)
	assert.Empty(t, res.TreasuryCapID)
	assert.Equal(t, []string{resolve.TreasuryCap}, res.Missing)
	assert.False(t, res.Complete())

	got, _ := f.lookup(t, pkginfo.NameTreasuryCap)
	assert.Equal(t, "0xold", got)

	got, _ = f.lookup(t, pkginfo.NamePackageID)
	assert.Equal(t, ledgertest.PackageID, got)

	d := f.history.deployment("D1")
	require.NotNil(t, d)
	assert.Equal(t, types.DeploymentStatusPartial, d.Status)
	assert.Contains(t, d.Error, resolve.TreasuryCap)
}

func TestDeploy_NoPackage(t *testing.T) {
	outcome := &ledger.Outcome{Digest: "D1", Status: ledger.Status{Status: "success"}}
	f := newFixture(t, &ledgertest.Node{Outcome: outcome}, nil)

	res, err := f.pipeline.Deploy(context.Background(), xbtc())
	assert.True(t, errors.Is(err, resolve.ErrNoPackage), "got %v", err)
	assert.Equal(t, "D1", res.Digest)
	assert.Empty(t, res.PackageID)
}

func TestDeploy_TransactionFailed(t *testing.T) {
	outcome := ledgertest.CoinOutcome("D1", "satxbtc", "SATXBTC")
	outcome.Status = ledger.Status{Status: "failure", Error: "InsufficientGas"}

	f := newFixture(t, &ledgertest.Node{Outcome: outcome}, nil)

	res, err := f.pipeline.Deploy(context.Background(), xbtc())
	assert.True(t, errors.Is(err, publish.ErrTransactionFailed), "got %v", err)
	assert.Equal(t, "D1", res.Digest)
	assert.Empty(t, res.PackageID)

	d := f.history.deployment("D1")
	require.NotNil(t, d)
	assert.Equal(t, types.DeploymentStatusFailed, d.Status)
	assert.Contains(t, d.Error, "InsufficientGas")
}

func TestDeploy_SubmissionRejected(t *testing.T) {
	node := &ledgertest.Node{BuildErr: errors.New("insufficient gas coins")}
	f := newFixture(t, node, nil)

	res, err := f.pipeline.Deploy(context.Background(), xbtc())
	assert.True(t, errors.Is(err, publish.ErrSubmissionRejected), "got %v", err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Empty(t, stageErr.Digest)
	assert.Empty(t, res.Digest)
	assert.Equal(t, 0, node.Executions())
	assert.Empty(t, f.history.deployments)
}

func TestDeploy_ReplyLostThenRecover(t *testing.T) {
	node := &ledgertest.Node{ExecuteErr: fmt.Errorf("execute transaction:\n%w", io.ErrUnexpectedEOF)}
	f := newFixture(t, node, nil)
	ctx := context.Background()

	res, err := f.pipeline.Deploy(ctx, xbtc())
	require.True(t, errors.Is(err, publish.ErrOutcomeUnknown), "got %v", err)
	assert.False(t, errors.Is(err, publish.ErrSubmissionRejected))

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageSubmit, stageErr.Stage)
	require.NotEmpty(t, res.Digest)
	assert.Equal(t, res.Digest, stageErr.Digest)

	digest := res.Digest
	d := f.history.deployment(digest)
	require.NotNil(t, d)
	assert.Equal(t, types.DeploymentStatusPartial, d.Status)
	assert.Equal(t, string(StageSubmit), d.Stage)

	// The node did accept the transaction.
	node.ExecuteErr = nil
	node.Outcome = ledgertest.CoinOutcome(digest, "satxbtc", "SATXBTC")

	res, err = f.pipeline.Recover(ctx, digest, xbtc())
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, ledgertest.TreasuryCapID, res.TreasuryCapID)
	assert.Equal(t, 1, node.Executions())
	assert.Equal(t, types.DeploymentStatusComplete, f.history.deployment(digest).Status)
}

// batchNode publishes any number of coins, one digest per module name.
type batchNode struct {
	inflight atomic.Int32
	overlap  atomic.Bool
	mu       sync.Mutex
	order    []string
}

func (n *batchNode) BuildPublish(_ context.Context, tx ledger.PublishTx) ([]byte, error) {
	if n.inflight.Add(1) > 1 {
		n.overlap.Store(true)
	}

	m, err := movebin.Decode(tx.Modules[0])
	if err != nil {
		return nil, err
	}

	id, err := m.Self()
	if err != nil {
		return nil, err
	}

	return []byte(id.Name), nil
}

func (n *batchNode) Execute(_ context.Context, txBytes []byte, _ []string) (*ledger.Outcome, error) {
	n.mu.Lock()
	n.order = append(n.order, string(txBytes))
	n.mu.Unlock()

	return &ledger.Outcome{Digest: "D-" + string(txBytes)}, nil
}

func (n *batchNode) GetTransaction(_ context.Context, digest string) (*ledger.Outcome, error) {
	defer n.inflight.Add(-1)

	module := strings.TrimPrefix(digest, "D-")

	return ledgertest.CoinOutcome(digest, module, strings.ToUpper(module)), nil
}

func TestDeployAll(t *testing.T) {
	node := &batchNode{}
	f := newFixture(t, node, nil)

	reqs := make([]Request, 4)
	for i := range reqs {
		reqs[i] = xbtc()
		reqs[i].Module = fmt.Sprintf("asset%d", i)
		reqs[i].Symbol = fmt.Sprintf("A%d", i)
	}

	results, err := f.pipeline.DeployAll(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))

	for i, res := range results {
		assert.Equal(t, "D-"+reqs[i].Module, res.Digest)
		assert.Equal(t, fmt.Sprintf("0xabc::asset%d::ASSET%d", i, i), res.TypeName)
		assert.True(t, res.Complete())
		assert.NotNil(t, f.history.deployment(res.Digest))
	}

	assert.Equal(t, []string{"asset0", "asset1", "asset2", "asset3"}, node.order)
	assert.False(t, node.overlap.Load(), "publications overlapped")

	// The last deployment wins the shared definition names.
	got, _ := f.lookup(t, pkginfo.NameTypeName)
	assert.Equal(t, "0xabc::asset3::ASSET3", got)
}

func TestDeployAll_StopsAtFirstFailure(t *testing.T) {
	node := &ledgertest.Node{Outcome: ledgertest.CoinOutcome("D1", "first", "FIRST"), Pending: 100}
	f := newFixture(t, node, nil)

	reqs := []Request{xbtc(), xbtc()}
	reqs[0].Module = "first"
	reqs[1].Module = "second"

	results, err := f.pipeline.DeployAll(context.Background(), reqs)
	assert.True(t, errors.Is(err, publish.ErrFinalityTimeout), "got %v", err)
	require.Len(t, results, 1)
	assert.Equal(t, "D1", results[0].Digest)
	assert.Equal(t, 1, node.Executions())
}

func TestPrepareAll(t *testing.T) {
	f := newFixture(t, &ledgertest.Node{}, nil)

	reqs := make([]Request, 16)
	for i := range reqs {
		reqs[i] = xbtc()
		reqs[i].Module = fmt.Sprintf("coin_%d", i)
		reqs[i].Decimals = uint8(i)
	}

	prepared, err := f.pipeline.PrepareAll(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, prepared, len(reqs))

	for i, prep := range prepared {
		m, err := movebin.Decode(prep.Module)
		require.NoError(t, err)

		id, err := m.Self()
		require.NoError(t, err)
		assert.Equal(t, reqs[i].Module, id.Name)

		v, err := m.Constants[4].Value()
		require.NoError(t, err)
		assert.Equal(t, movebin.U8(i), v)
	}
}

func TestPrepareAll_Errors(t *testing.T) {
	f := newFixture(t, &ledgertest.Node{}, nil)

	dup := []Request{xbtc(), xbtc()}
	_, err := f.pipeline.PrepareAll(context.Background(), dup)
	assert.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)

	bad := []Request{xbtc(), xbtc()}
	bad[1].Module = "other"
	bad[1].Symbol = ""
	_, err = f.pipeline.PrepareAll(context.Background(), bad)
	assert.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)
}

func TestPublishPackage(t *testing.T) {
	outcome := &ledger.Outcome{
		Digest: "D9",
		Status: ledger.Status{Status: "success"},
		ObjectChanges: []ledger.ObjectChange{
			{Kind: ledger.ChangePublished, PackageID: "0x00beef", Modules: []string{"vault"}},
			{Kind: ledger.ChangeCreated, ObjectType: "0xbeef::vault::AdminCap", ObjectID: "0x501"},
			{Kind: ledger.ChangeCreated, ObjectType: "0x2::package::UpgradeCap", ObjectID: "0x502"},
		},
	}
	node := &ledgertest.Node{Outcome: outcome}
	f := newFixture(t, node, nil)

	exps := resolve.Expectations{
		{Name: "AdminCap", Type: "{package}::vault::AdminCap"},
		{Name: "UpgradeCap", Type: "0x2::package::UpgradeCap"},
		{Name: "Version", Type: "{package}::vault::Version"},
	}

	modules := [][]byte{movebintest.Template(), {0x01}}

	res, err := f.pipeline.PublishPackage(context.Background(), modules, []string{"0x1", "0x2", "0x3"}, exps)
	assert.True(t, errors.Is(err, resolve.ErrObjectNotFound), "got %v", err)

	assert.Equal(t, "0xbeef", res.PackageID)
	assert.Equal(t, []string{"Version"}, res.Missing)

	id, ok := res.Objects.Get("AdminCap")
	assert.True(t, ok)
	assert.Equal(t, "0x501", id)

	built := node.Built()
	require.Len(t, built, 1)
	assert.Len(t, built[0].Dependencies, 3)
	assert.Len(t, built[0].Modules, 2)

	got, _ := f.lookup(t, pkginfo.NamePackageID)
	assert.Equal(t, "0xbeef", got)

	got, _ = f.lookup(t, "AdminCap")
	assert.Equal(t, "0x501", got)

	_, ok = f.lookup(t, "Version")
	assert.False(t, ok)

	assert.Equal(t, []byte{0x01}, f.history.module("D9/1"))
	assert.Equal(t, types.DeploymentStatusPartial, f.history.deployment("D9").Status)
}

func TestStageError(t *testing.T) {
	cause := errors.New("boom")

	err := error(&StageError{Stage: StageResolve, Digest: "D1", Err: cause})
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "resolve (digest D1)")

	err = &StageError{Stage: StageSubmit, Err: cause}
	assert.Equal(t, "submit:\nboom", err.Error())
}
