// Package ledgertest provides an in-memory ledger node and outcome fixtures.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"SatVault/internal/ledger"
)

// Node is a scripted ledger.Node.
type Node struct {
	BuildErr   error             // BuildErr fails BuildPublish
	ExecuteErr error             // ExecuteErr fails Execute
	Submitted  *ledger.Outcome   // Submitted is returned by Execute, Outcome if nil
	Outcome    *ledger.Outcome   // Outcome is the finalized transaction
	Pending    int               // Pending polls answer ErrNotIndexed first
	Views      []*ledger.Outcome // Views are successive indexed outcomes, the last repeating
	GetErr     error             // GetErr fails every poll once indexed

	mu       sync.Mutex
	built    []ledger.PublishTx
	executed [][]string
	polls    int
}

// BuildPublish records the transaction and returns placeholder bytes.
func (n *Node) BuildPublish(_ context.Context, tx ledger.PublishTx) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.built = append(n.built, tx)
	if n.BuildErr != nil {
		return nil, n.BuildErr
	}

	return []byte(fmt.Sprintf("publish:%s:%d", tx.Sender, len(tx.Modules))), nil
}

// Execute records the signatures and returns the submitted outcome.
func (n *Node) Execute(ctx context.Context, _ []byte, signatures []string) (*ledger.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.executed = append(n.executed, signatures)
	if n.ExecuteErr != nil {
		return nil, n.ExecuteErr
	}

	if n.Submitted != nil {
		return n.Submitted, nil
	}

	return n.Outcome, nil
}

// GetTransaction answers ErrNotIndexed for the first Pending polls, then the views.
func (n *Node) GetTransaction(ctx context.Context, digest string) (*ledger.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.polls++
	if n.polls <= n.Pending || n.Outcome == nil || digest != n.Outcome.Digest {
		return nil, fmt.Errorf("%w: %s", ledger.ErrNotIndexed, digest)
	}

	if n.GetErr != nil {
		return nil, n.GetErr
	}

	if len(n.Views) == 0 {
		return n.Outcome, nil
	}

	i := min(n.polls-n.Pending-1, len(n.Views)-1)

	return n.Views[i], nil
}

// Built returns the publish transactions requested so far.
func (n *Node) Built() []ledger.PublishTx {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]ledger.PublishTx(nil), n.built...)
}

// Executions returns how many transactions were submitted.
func (n *Node) Executions() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.executed)
}

// Signatures returns the signatures of submission i.
func (n *Node) Signatures(i int) []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.executed[i]
}

// Polls returns how many times GetTransaction was called.
func (n *Node) Polls() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.polls
}
