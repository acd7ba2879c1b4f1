package solbc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newRPCServer answers JSON-RPC calls with the result (or error) registered
// for the method name.
func newRPCServer(t *testing.T, results map[string]interface{}, errors map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if e, ok := errors[req.Method]; ok {
			resp["error"] = e
		} else if res, ok := results[req.Method]; ok {
			resp["result"] = res
		} else {
			t.Errorf("unexpected method %s", req.Method)
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func signedTransfer(t *testing.T) *solana.Transaction {
	t.Helper()
	payer := solana.NewWallet()
	ix := system.NewTransferInstruction(1000, payer.PublicKey(), solana.NewWallet().PublicKey()).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{7}, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func TestClient_GetRecentBlockhash(t *testing.T) {
	hash := solana.Hash{9, 9, 9}
	srv := newRPCServer(t, map[string]interface{}{
		"getLatestBlockhash": map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": map[string]interface{}{
				"blockhash":            hash.String(),
				"lastValidBlockHeight": 200,
			},
		},
	}, nil)
	defer srv.Close()

	client := NewClient(srv.URL, zaptest.NewLogger(t))
	defer client.Close()

	got, err := client.GetRecentBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, got)
}

func TestClient_SendTransaction(t *testing.T) {
	tx := signedTransfer(t)

	t.Run("accepted", func(t *testing.T) {
		srv := newRPCServer(t, map[string]interface{}{
			"sendTransaction": tx.Signatures[0].String(),
		}, nil)
		defer srv.Close()

		client := NewClient(srv.URL, zaptest.NewLogger(t))
		sig, err := client.SendTransaction(context.Background(), tx)
		require.NoError(t, err)
		assert.Equal(t, tx.Signatures[0], sig)
	})

	t.Run("rejected by preflight", func(t *testing.T) {
		srv := newRPCServer(t, nil, map[string]interface{}{
			"sendTransaction": map[string]interface{}{
				"code":    -32002,
				"message": "Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.",
				"data": map[string]interface{}{
					"logs": []string{"Transfer: insufficient lamports 0, need 1000"},
				},
			},
		})
		defer srv.Close()

		client := NewClient(srv.URL, zaptest.NewLogger(t))
		_, err := client.SendTransaction(context.Background(), tx)
		var sendErr *SendError
		require.ErrorAs(t, err, &sendErr)
		assert.Equal(t, -32002, sendErr.Code)
		assert.Contains(t, err.Error(), "insufficient lamports")
	})
}

func TestNewDialer(t *testing.T) {
	dial := NewDialer("http://127.0.0.1:1", zaptest.NewLogger(t))

	client, err := dial(context.Background())
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = dial(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
