package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"` // JSONRPC is always "2.0"
	ID      string `json:"id"`      // ID correlates the response
	Method  string `json:"method"`  // Method is the RPC method name
	Params  []any  `json:"params"`  // Params are positional parameters
}

// rpcResponse is a JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	ID     string          `json:"id"`     // ID echoes the request id
	Result json.RawMessage `json:"result"` // Result is set on success
	Error  *RPCError       `json:"error"`  // Error is set on failure
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`    // Code is the JSON-RPC error code
	Message string `json:"message"` // Message is the node's description
}

// Error implements error.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// postRPC performs one JSON-RPC call and decodes the result into result.
func postRPC(ctx context.Context, hc *http.Client, url, method string, params []any, result any) error {
	req := rpcRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params}

	jsonBytes, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s:\n%w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBytes))
	if err != nil {
		return fmt.Errorf("build request:\n%w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("POST %s:\n%w", method, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: status %d", method, resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode %s response:\n%w", method, err)
	}

	if out.ID != req.ID {
		return fmt.Errorf("%s: response id %q does not match request %q", method, out.ID, req.ID)
	}

	if out.Error != nil {
		return out.Error
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(out.Result, result); err != nil {
		return fmt.Errorf("decode %s result:\n%w", method, err)
	}

	return nil
}
