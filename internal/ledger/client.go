package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SatVault/internal/logger"
)

// notFoundMessage is the node's reply for digests it has not indexed yet.
const notFoundMessage = "Could not find the referenced transaction"

// fullnodes maps network names to public fullnode endpoints.
var fullnodes = map[string]string{
	"mainnet":  "https://fullnode.mainnet.sui.io:443",
	"testnet":  "https://fullnode.testnet.sui.io:443",
	"devnet":   "https://fullnode.devnet.sui.io:443",
	"localnet": "http://127.0.0.1:9000",
}

// FullnodeURL returns the public fullnode endpoint of a network.
func FullnodeURL(network string) (string, error) {
	url, ok := fullnodes[network]
	if !ok {
		return "", fmt.Errorf("unknown network %q", network)
	}

	return url, nil
}

// Client talks to a Sui fullnode over JSON-RPC.
type Client struct {
	url  string       // url is the JSON-RPC endpoint
	http *http.Client // http performs the requests
}

// NewClient creates a client for the given endpoint.
func NewClient(url string) *Client {
	return &Client{url: url, http: &http.Client{Timeout: 60 * time.Second}}
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string {
	return c.url
}

// txBlockBytes is the result of unsafe_publish.
type txBlockBytes struct {
	TxBytes string `json:"txBytes"` // TxBytes is the base64 transaction data
}

// txResponse is the node's transaction block response.
type txResponse struct {
	Digest  string `json:"digest"`
	Effects *struct {
		Status Status `json:"status"`
	} `json:"effects"`
	ObjectChanges []ObjectChange `json:"objectChanges"`
}

// responseOptions requests the effects and object changes of a transaction.
var responseOptions = map[string]bool{
	"showEffects":       true,
	"showObjectChanges": true,
}

// BuildPublish asks the node to build an unsigned publish transaction.
func (c *Client) BuildPublish(ctx context.Context, tx PublishTx) ([]byte, error) {
	modules := make([]string, len(tx.Modules))
	for i, m := range tx.Modules {
		modules[i] = base64.StdEncoding.EncodeToString(m)
	}

	var gas any
	if tx.GasObject != "" {
		gas = tx.GasObject
	}

	params := []any{tx.Sender, modules, tx.Dependencies, gas, strconv.FormatUint(tx.GasBudget, 10)}

	var res txBlockBytes
	if err := postRPC(ctx, c.http, c.url, "unsafe_publish", params, &res); err != nil {
		return nil, fmt.Errorf("build publish:\n%w", err)
	}

	txBytes, err := base64.StdEncoding.DecodeString(res.TxBytes)
	if err != nil {
		return nil, fmt.Errorf("decode tx bytes:\n%w", err)
	}

	return txBytes, nil
}

// Execute submits a signed transaction and waits for local execution.
func (c *Client) Execute(ctx context.Context, txBytes []byte, signatures []string) (*Outcome, error) {
	params := []any{
		base64.StdEncoding.EncodeToString(txBytes),
		signatures,
		responseOptions,
		"WaitForLocalExecution",
	}

	var res txResponse
	if err := postRPC(ctx, c.http, c.url, "sui_executeTransactionBlock", params, &res); err != nil {
		return nil, fmt.Errorf("execute transaction:\n%w", err)
	}

	logger.Debug("transaction executed", "digest", res.Digest, "changes", len(res.ObjectChanges))

	return res.outcome(), nil
}

// GetTransaction reads a transaction with its effects and object changes.
func (c *Client) GetTransaction(ctx context.Context, digest string) (*Outcome, error) {
	var res txResponse

	err := postRPC(ctx, c.http, c.url, "sui_getTransactionBlock", []any{digest, responseOptions}, &res)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && strings.Contains(rpcErr.Message, notFoundMessage) {
			return nil, fmt.Errorf("%w: %s", ErrNotIndexed, digest)
		}

		return nil, fmt.Errorf("get transaction %s:\n%w", digest, err)
	}

	return res.outcome(), nil
}

// outcome converts the node response into an Outcome.
func (r *txResponse) outcome() *Outcome {
	o := &Outcome{Digest: r.Digest, ObjectChanges: r.ObjectChanges}
	if r.Effects != nil {
		o.Status = r.Effects.Status
	}

	return o
}
