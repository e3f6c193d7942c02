// Package deploy instantiates the coin template for a request, publishes it
// and records the resulting identifiers.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"SatVault/internal/ledger"
	"SatVault/internal/logger"
	"SatVault/internal/movebin"
	"SatVault/internal/pkginfo"
	"SatVault/internal/publish"
	"SatVault/internal/registry"
	"SatVault/internal/resolve"
	"SatVault/internal/template"
	"SatVault/internal/types"
)

// Verifier inspects module bytes before they are published.
type Verifier interface {
	Check(ctx context.Context, module []byte) error
}

// History keeps a durable trace of deployments.
type History interface {
	SaveDeployment(d *registry.Deployment) error
	ArchiveModule(digest string, module []byte) error
}

// ErrNoTemplate is returned when a coin is prepared without a template.
var ErrNoTemplate = errors.New("no template configured")

// Options wires a pipeline. Submitter is required; Template is needed
// for coin deployments only.
type Options struct {
	Template     []byte               // Template is the compiled coin template
	Layout       template.Layout      // Layout defaults to template.DefaultLayout
	Submitter    *publish.Submitter   // Submitter publishes the patched module
	Expectations resolve.Expectations // Expectations default to the coin objects
	Persister    *pkginfo.Persister   // Persister receives the identifiers
	History      History              // History is optional
	Verifier     Verifier             // Verifier is optional
}

// Pipeline runs deployments against one template.
type Pipeline struct {
	template     []byte               // template is the compiled coin template
	hash         [32]byte             // hash is the blake3 hash of template
	layout       template.Layout      // layout locates the template parameters
	submitter    *publish.Submitter   // submitter publishes modules
	expectations resolve.Expectations // expectations are resolved after publishing
	persister    *pkginfo.Persister   // persister receives identifiers
	history      History              // history may be nil
	verifier     Verifier             // verifier may be nil
	now          func() time.Time     // now stamps history records
}

// Prepared is a patched module ready to publish.
type Prepared struct {
	Request  Request            // Request is the validated request
	Module   []byte             // Module is the patched module bytes
	Warnings []template.Warning // Warnings are the advisory patch warnings
}

// New creates a pipeline after checking that the template, if any, decodes.
func New(opts Options) (*Pipeline, error) {
	if opts.Submitter == nil {
		return nil, errors.New("pipeline needs a submitter")
	}

	expectations := opts.Expectations
	if len(expectations) == 0 {
		expectations = resolve.CoinExpectations()
	}

	layout := opts.Layout
	if layout == (template.Layout{}) {
		layout = template.DefaultLayout()
	}

	persister := opts.Persister
	if persister == nil {
		persister = pkginfo.NewPersister()
	}

	p := &Pipeline{
		template:     opts.Template,
		hash:         blake3.Sum256(opts.Template),
		layout:       layout,
		submitter:    opts.Submitter,
		expectations: expectations,
		persister:    persister,
		history:      opts.History,
		verifier:     opts.Verifier,
		now:          time.Now,
	}

	if len(opts.Template) == 0 {
		return p, nil
	}

	m, err := movebin.Decode(opts.Template)
	if err != nil {
		return nil, fmt.Errorf("load template:\n%w", err)
	}

	logger.Debug("template loaded",
		"constants", len(m.Constants),
		"identifiers", len(m.Identifiers),
		"hash", fmt.Sprintf("%x", p.hash[:8]),
	)

	return p, nil
}

// Prepare validates req and patches its own decoded copy of the template.
// The patched bytes are decoded again before they are returned.
func (p *Pipeline) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if len(p.template) == 0 {
		return nil, ErrNoTemplate
	}

	m, err := movebin.Decode(p.template)
	if err != nil {
		return nil, fmt.Errorf("decode template:\n%w", err)
	}

	patched, err := template.Instantiate(m, p.layout, req.Fields())
	if err != nil {
		return nil, fmt.Errorf("patch %s:\n%w", req.Module, err)
	}

	for _, w := range patched.Warnings {
		logger.Warn("template advisory mismatch", "module", req.Module, "warning", w.String())
	}

	out, err := movebin.Encode(patched.Module)
	if err != nil {
		return nil, fmt.Errorf("encode %s:\n%w", req.Module, err)
	}

	if err := confirm(out, req.Module); err != nil {
		return nil, err
	}

	if p.verifier != nil {
		if err := p.verifier.Check(ctx, out); err != nil {
			return nil, fmt.Errorf("verify %s:\n%w", req.Module, err)
		}
	}

	return &Prepared{Request: req, Module: out, Warnings: patched.Warnings}, nil
}

// Deploy prepares, publishes, resolves and records one coin.
// Preparation errors return no result. Later errors return the partial
// result together with a *StageError.
func (p *Pipeline) Deploy(ctx context.Context, req Request) (*Result, error) {
	prep, err := p.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	return p.Publish(ctx, prep)
}

// Publish submits a prepared module and finishes the deployment.
func (p *Pipeline) Publish(ctx context.Context, prep *Prepared) (*Result, error) {
	start := time.Now()
	req := prep.Request

	outcome, err := p.submitter.Submit(ctx, publish.Request{
		Modules: [][]byte{prep.Module},
		Ready:   p.expectations.Ready(req.Module, req.TypeName()),
	})
	if err != nil {
		return p.submitFailed(prep, outcome, "", err)
	}

	res, err := p.finish(prep, outcome)

	logger.Info("asset deployed",
		"module", req.Module,
		"digest", res.Digest,
		"package", res.PackageID,
		"complete", res.Complete(),
		logger.Timed(start),
	)

	return res, err
}

// Recover re-polls a digest whose finality was not observed and finishes
// the deployment of req from it. Nothing is resubmitted.
func (p *Pipeline) Recover(ctx context.Context, digest string, req Request) (*Result, error) {
	prep, err := p.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	outcome, err := p.submitter.Await(ctx, digest, p.expectations.Ready(req.Module, req.TypeName()))
	if err != nil {
		return p.submitFailed(prep, outcome, digest, err)
	}

	logger.Info("deployment recovered", "module", req.Module, "digest", digest)

	return p.finish(prep, outcome)
}

// finish resolves an outcome, persists what was found and records history.
// Missing objects are reported without stopping the later stages.
func (p *Pipeline) finish(prep *Prepared, outcome *ledger.Outcome) (*Result, error) {
	req := prep.Request
	res := &Result{Digest: outcome.Digest, Warnings: prep.Warnings}

	var stageErr *StageError

	resolution, err := resolve.Resolve(outcome, req.Module, req.TypeName(), p.expectations)
	if err != nil {
		stageErr = &StageError{Stage: StageResolve, Digest: res.Digest, Err: err}
	} else {
		res.fill(resolution, p.expectations)

		if err := resolution.Objects.Err(p.expectations.Names()...); err != nil {
			logger.Warn("objects missing after publish", "digest", res.Digest, "missing", res.Missing)
			stageErr = &StageError{Stage: StageResolve, Digest: res.Digest, Err: err}
		}
	}

	if err := p.persister.Persist(res.Record()); err != nil && stageErr == nil {
		stageErr = &StageError{Stage: StagePersist, Digest: res.Digest, Err: err}
	}

	status := types.DeploymentStatusComplete
	if stageErr != nil {
		status = types.DeploymentStatusPartial
	}

	if err := p.record(prep, res, status, stageErr); err != nil && stageErr == nil {
		stageErr = &StageError{Stage: StageArchive, Digest: res.Digest, Err: err}
	}

	if stageErr != nil {
		return res, stageErr
	}

	return res, nil
}

// submitFailed records a failed submission and wraps its error. digest is
// used when neither the outcome nor the error carries one.
func (p *Pipeline) submitFailed(prep *Prepared, outcome *ledger.Outcome, digest string, err error) (*Result, error) {
	res := &Result{Digest: digest, Warnings: prep.Warnings}

	if d := submittedDigest(outcome, err); d != "" {
		res.Digest = d
	}

	stageErr := &StageError{Stage: StageSubmit, Digest: res.Digest, Err: err}

	status := types.DeploymentStatusFailed
	if errors.Is(err, publish.ErrFinalityTimeout) || errors.Is(err, publish.ErrOutcomeUnknown) {
		status = types.DeploymentStatusPartial
	}

	if res.Digest != "" {
		if rerr := p.record(prep, res, status, stageErr); rerr != nil {
			logger.Warn("history not written", "digest", res.Digest, "error", rerr)
		}
	}

	logger.Error("publish failed", "module", prep.Request.Module, "digest", res.Digest, "error", err)

	return res, stageErr
}

// submittedDigest returns the digest a failed submission left behind, if any.
func submittedDigest(outcome *ledger.Outcome, err error) string {
	var (
		timeout *publish.FinalityTimeoutError
		unknown *publish.OutcomeUnknownError
	)

	switch {
	case outcome != nil:
		return outcome.Digest
	case errors.As(err, &timeout):
		return timeout.Digest
	case errors.As(err, &unknown):
		return unknown.Digest
	}

	return ""
}

// record archives the module and saves the history entry.
func (p *Pipeline) record(prep *Prepared, res *Result, status types.DeploymentStatus, stageErr *StageError) error {
	if p.history == nil || res.Digest == "" {
		return nil
	}

	req := prep.Request
	d := &registry.Deployment{
		Digest:        res.Digest,
		PackageID:     res.PackageID,
		MetadataID:    res.MetadataID,
		TreasuryCapID: res.TreasuryCapID,
		UpgradeCapID:  res.UpgradeCapID,
		TypeName:      res.TypeName,
		Module:        req.Module,
		Symbol:        req.Symbol,
		Name:          req.Name,
		Decimals:      req.Decimals,
		Status:        status,
		TemplateHash:  p.hash,
		PublishedAt:   p.now(),
	}

	if stageErr != nil {
		d.Stage = string(stageErr.Stage)
		d.Error = stageErr.Err.Error()
	}

	if err := p.history.ArchiveModule(res.Digest, prep.Module); err != nil {
		return err
	}

	return p.history.SaveDeployment(d)
}

// fill copies a resolution into the result.
func (r *Result) fill(res *resolve.Resolution, exps resolve.Expectations) {
	r.PackageID = res.PackageID
	r.TypeName = res.TypeName
	r.Objects = res.Objects
	r.Missing = res.Objects.Missing(exps.Names()...)
	r.MetadataID, _ = res.Objects.Get(resolve.Metadata)
	r.TreasuryCapID, _ = res.Objects.Get(resolve.TreasuryCap)
	r.UpgradeCapID, _ = res.Objects.Get(resolve.UpgradeCap)
}

// confirm decodes patched bytes and checks the module identity.
func confirm(module []byte, name string) error {
	m, err := movebin.Decode(module)
	if err != nil {
		return fmt.Errorf("re-decode %s:\n%w", name, err)
	}

	id, err := m.Self()
	if err != nil {
		return fmt.Errorf("re-decode %s:\n%w", name, err)
	}

	if id.Name != name {
		return fmt.Errorf("%w: patched module is named %q, want %q", template.ErrInvalidIdentifier, id.Name, name)
	}

	return nil
}
