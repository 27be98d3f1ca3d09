// Package rpc serves a dataset.Source as line-delimited JSON-RPC 2.0 over a
// pair of streams, and provides the matching client.
//
// Methods:
//
//	tables  {"database": "co2"}                        -> ["emissions"]
//	execute {"database": "co2", "statement": "SELECT"} -> {"text": "(...)\n(...)"}
//	schema  {"database": "co2"}                        -> [{"name": ..., "columns": [...]}]
//
// execute replies carry tuple text, one record per line, or the no-data
// sentinel.
package rpc

import "encoding/json"

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// Method names.
const (
	MethodTables  = "tables"
	MethodExecute = "execute"
	MethodSchema  = "schema"
)

// MaxMessageSize bounds a single message line.
const MaxMessageSize = 16 << 20

// Message is a JSON-RPC 2.0 request, notification or response.
type Message struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC error codes, plus CodeRejected for statements refused
// by the read-only guard.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	CodeRejected = -32001
)

// DatabaseParams are the params of tables and schema.
type DatabaseParams struct {
	Database string `json:"database"`
}

// ExecuteParams are the params of execute.
type ExecuteParams struct {
	Database  string `json:"database"`
	Statement string `json:"statement"`
}

// ExecuteResult is the result of execute.
type ExecuteResult struct {
	Text string `json:"text"`
}

// IsRequest reports whether m expects a response.
func (m *Message) IsRequest() bool {
	return m.Method != "" && m.ID != nil
}

// IsNotification reports whether m is a request without an ID.
func (m *Message) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}

func newError(id any, code int, msg string) *Message {
	return &Message{Jsonrpc: Version, ID: id, Error: &Error{Code: code, Message: msg}}
}

func newResult(id any, result any) (*Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Message{Jsonrpc: Version, ID: id, Result: raw}, nil
}
