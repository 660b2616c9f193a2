package stream

import "encoding/json"

// JSON-RPC 2.0 wire types for the transaction subscription protocol.

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcNotification struct {
	JSONRPC string              `json:"jsonrpc"`
	Method  string              `json:"method"`
	Params  *notificationParams `json:"params"`
}

type notificationParams struct {
	Subscription int64           `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// transactionFilter is the first element of transactionSubscribe params.
type transactionFilter struct {
	AccountInclude []string `json:"accountInclude"`
	Failed         bool     `json:"failed"`
}

// transactionOptions is the second element of transactionSubscribe params.
type transactionOptions struct {
	Commitment string `json:"commitment"`
}
