package solbc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// SendError carries the node's rejection of a submitted transaction together
// with the interesting part of the simulation logs.
type SendError struct {
	Code    int
	Message string
	Logs    []string
	Err     error
}

func (e *SendError) Error() string {
	if len(e.Logs) == 0 {
		return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, strings.Join(e.Logs, "; "))
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// AnalyzeSendError converts a jsonrpc.RPCError into a *SendError. Other
// errors are returned unchanged.
func AnalyzeSendError(err error) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return err
	}

	out := &SendError{
		Code:    rpcErr.Code,
		Message: rpcErr.Message,
		Err:     err,
	}

	// Simulation failures ship the program logs in data.logs.
	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return out
	}
	logs, ok := dataMap["logs"].([]interface{})
	if !ok {
		return out
	}
	for _, entry := range logs {
		line, ok := entry.(string)
		if !ok {
			continue
		}
		if isErrorLog(line) {
			out.Logs = append(out.Logs, strings.TrimSpace(line))
		}
	}
	return out
}

func isErrorLog(line string) bool {
	return strings.Contains(line, "AnchorError occurred") ||
		strings.Contains(line, "Error Message:") ||
		strings.Contains(line, "insufficient") ||
		strings.HasSuffix(line, "failed")
}
