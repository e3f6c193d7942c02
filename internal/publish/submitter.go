// Package publish submits publish transactions and waits for their outcome.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SatVault/internal/ledger"
	"SatVault/internal/logger"
)

var (
	// ErrSubmissionRejected is returned when the node refuses a transaction
	// before executing it. A fresh transaction may be retried.
	ErrSubmissionRejected = errors.New("submission rejected")

	// ErrFinalityTimeout matches *FinalityTimeoutError.
	ErrFinalityTimeout = errors.New("finality timeout")

	// ErrTransactionFailed is returned when a finalized transaction aborted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrOutcomeUnknown matches *OutcomeUnknownError.
	ErrOutcomeUnknown = errors.New("submission outcome unknown")
)

// FinalityTimeoutError reports a digest whose outcome is still unknown.
// The transaction may land later; query it by digest, never resubmit.
type FinalityTimeoutError struct {
	Digest   string // Digest is the submitted transaction
	Attempts int    // Attempts is the number of polls made
}

// Error implements error.
func (e *FinalityTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not finalized after %d polls", e.Digest, e.Attempts)
}

// Is matches ErrFinalityTimeout.
func (e *FinalityTimeoutError) Is(target error) bool {
	return target == ErrFinalityTimeout
}

// OutcomeUnknownError reports a submission whose reply was lost after the
// transaction was sent. The node may have accepted it; query the digest,
// never resubmit.
type OutcomeUnknownError struct {
	Digest string // Digest is computed locally from the signed bytes
	Err    error  // Err is the transport or context failure
}

// Error implements error.
func (e *OutcomeUnknownError) Error() string {
	return fmt.Sprintf("transaction %s submitted, reply lost:\n%v", e.Digest, e.Err)
}

// Is matches ErrOutcomeUnknown.
func (e *OutcomeUnknownError) Is(target error) bool {
	return target == ErrOutcomeUnknown
}

// Unwrap returns the transport error.
func (e *OutcomeUnknownError) Unwrap() error {
	return e.Err
}

// Config bounds gas and polling.
type Config struct {
	GasBudget      uint64        `yaml:"gas_budget"`      // GasBudget is the default gas budget
	Dependencies   []string      `yaml:"dependencies"`    // Dependencies are the default linked packages
	PollAttempts   int           `yaml:"poll_attempts"`   // PollAttempts bounds the finality poll
	PollInterval   time.Duration `yaml:"poll_interval"`   // PollInterval is the backoff unit
	SettleTimeout  time.Duration `yaml:"settle_timeout"`  // SettleTimeout bounds the settle poll
	SettleInterval time.Duration `yaml:"settle_interval"` // SettleInterval spaces settle polls
}

// DefaultConfig returns the limits used by the deployment scripts.
func DefaultConfig() Config {
	return Config{
		GasBudget:      100_000_000,
		Dependencies:   []string{"0x1", "0x2"},
		PollAttempts:   10,
		PollInterval:   500 * time.Millisecond,
		SettleTimeout:  5 * time.Second,
		SettleInterval: 500 * time.Millisecond,
	}
}

// Request is one package publication.
type Request struct {
	Modules      [][]byte                   // Modules are the compiled module bytes
	Dependencies []string                   // Dependencies override Config.Dependencies
	GasBudget    uint64                     // GasBudget overrides Config.GasBudget
	Ready        func(*ledger.Outcome) bool // Ready reports whether derived objects are visible
}

// Submitter builds, signs and submits publish transactions.
type Submitter struct {
	node   ledger.Node   // node is the ledger RPC surface
	signer ledger.Signer // signer pays for and owns the publication
	cfg    Config        // cfg bounds gas and polling

	sleep func(context.Context, time.Duration) error // sleep waits between polls
}

// NewSubmitter creates a submitter.
func NewSubmitter(node ledger.Node, signer ledger.Signer, cfg Config) *Submitter {
	return &Submitter{node: node, signer: signer, cfg: cfg, sleep: sleep}
}

// Submit publishes the modules and waits for the finalized outcome.
// The upgrade capability is sent to the signer. A finalized but aborted
// transaction returns its outcome together with ErrTransactionFailed. Only
// an RPC error answer to execution is ErrSubmissionRejected; a lost reply is
// an *OutcomeUnknownError carrying the locally computed digest.
func (s *Submitter) Submit(ctx context.Context, req Request) (*ledger.Outcome, error) {
	start := time.Now()

	tx, err := s.buildTx(req)
	if err != nil {
		return nil, err
	}

	txBytes, err := s.node.BuildPublish(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: build:\n%w", ErrSubmissionRejected, err)
	}

	sig, err := s.signer.SignTransaction(txBytes)
	if err != nil {
		return nil, fmt.Errorf("sign publish:\n%w", err)
	}

	digest := ledger.TransactionDigest(txBytes)

	submitted, err := s.node.Execute(ctx, txBytes, []string{sig})
	if err != nil {
		var rpcErr *ledger.RPCError
		if errors.As(err, &rpcErr) {
			return nil, fmt.Errorf("%w: execute:\n%w", ErrSubmissionRejected, err)
		}

		logger.Warn("publish reply lost", "digest", digest, "error", err)

		return nil, &OutcomeUnknownError{Digest: digest, Err: err}
	}

	if submitted != nil && submitted.Digest != "" {
		digest = submitted.Digest
	}

	logger.Info("publish submitted",
		"digest", digest,
		"modules", len(tx.Modules),
		"sender", tx.Sender,
		logger.Timed(start),
	)

	return s.Await(ctx, digest, req.Ready)
}

// Await polls an already submitted digest until it is finalized, then
// re-polls until ready reports the expected objects or the settle timeout
// elapses. A nil ready skips the settle poll.
func (s *Submitter) Await(ctx context.Context, digest string, ready func(*ledger.Outcome) bool) (*ledger.Outcome, error) {
	final, err := s.waitFinal(ctx, digest)
	if err != nil {
		return nil, err
	}

	if !final.Status.Success() {
		return final, fmt.Errorf("%w: %s: %s", ErrTransactionFailed, digest, final.Status.Error)
	}

	if ready == nil {
		return final, nil
	}

	return s.settle(ctx, final, ready), nil
}

// buildTx fills the publish transaction from the request and defaults.
func (s *Submitter) buildTx(req Request) (ledger.PublishTx, error) {
	if len(req.Modules) == 0 {
		return ledger.PublishTx{}, fmt.Errorf("%w: no modules", ErrSubmissionRejected)
	}

	deps := req.Dependencies
	if len(deps) == 0 {
		deps = s.cfg.Dependencies
	}

	normalized := make([]string, len(deps))
	for i, d := range deps {
		id, err := ledger.NormalizeID(d)
		if err != nil {
			return ledger.PublishTx{}, fmt.Errorf("dependency %d:\n%w", i, err)
		}

		normalized[i] = id
	}

	budget := req.GasBudget
	if budget == 0 {
		budget = s.cfg.GasBudget
	}

	return ledger.PublishTx{
		Sender:       s.signer.Address(),
		Modules:      req.Modules,
		Dependencies: normalized,
		GasBudget:    budget,
	}, nil
}

// waitFinal retries not-indexed reads with linear backoff.
func (s *Submitter) waitFinal(ctx context.Context, digest string) (*ledger.Outcome, error) {
	attempts := max(s.cfg.PollAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := s.node.GetTransaction(ctx, digest)
		if err == nil {
			logger.Debug("transaction finalized", "digest", digest, "attempt", attempt)
			return out, nil
		}

		if !errors.Is(err, ledger.ErrNotIndexed) {
			return nil, fmt.Errorf("poll %s:\n%w", digest, err)
		}

		if attempt == attempts {
			break
		}

		if err := s.sleep(ctx, s.cfg.PollInterval*time.Duration(attempt)); err != nil {
			return nil, fmt.Errorf("poll %s:\n%w", digest, err)
		}
	}

	return nil, &FinalityTimeoutError{Digest: digest, Attempts: attempts}
}

// settle re-polls until ready holds or the settle timeout elapses, returning
// the latest outcome either way.
func (s *Submitter) settle(ctx context.Context, last *ledger.Outcome, ready func(*ledger.Outcome) bool) *ledger.Outcome {
	deadline := time.Now().Add(s.cfg.SettleTimeout)

	for !ready(last) {
		if !time.Now().Before(deadline) {
			logger.Warn("settle timeout, resolving partial outcome", "digest", last.Digest)
			return last
		}

		if err := s.sleep(ctx, s.cfg.SettleInterval); err != nil {
			logger.Warn("settle interrupted", "digest", last.Digest, "error", err)
			return last
		}

		out, err := s.node.GetTransaction(ctx, last.Digest)
		if err != nil {
			logger.Debug("settle poll failed", "digest", last.Digest, "error", err)
			continue
		}

		last = out
	}

	return last
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
