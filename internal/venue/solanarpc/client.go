// Package solanarpc is a minimal Solana JSON-RPC 2.0 client shared by every
// Solana-family venue adapter (drift, jupiter, raydium, orca, meteora,
// pumpfun). Those venues don't share a REST contract the way the
// Binance-family exchanges do; what they share is the same underlying
// chain, so the thing worth deduplicating is the RPC transport and the two
// calls every adapter needs to read a wallet's on-chain state
// (getBalance, getTokenAccountsByOwner), not a venue-specific API shape.
package solanarpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agenthub/venuecore/internal/venue"
)

// Client is a JSON-RPC 2.0 client bound to one Solana RPC endpoint (e.g.
// "https://api.mainnet-beta.solana.com").
type Client struct {
	tag      string
	endpoint string
	http     *http.Client
}

// New creates a Client. tag identifies the calling venue adapter in any
// AdapterError this client produces.
func New(tag, endpoint string) *Client {
	return &Client{tag: tag, endpoint: endpoint, http: &http.Client{Timeout: 30 * time.Second}}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Call invokes method with params and decodes the RPC result into out.
func (c *Client) Call(ctx context.Context, method string, params []any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return venue.NewVenueError(c.tag, "encode_error", fmt.Sprintf("encode rpc request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return venue.NewNetworkError(c.tag, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return venue.NewNetworkError(c.tag, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return venue.NewRateLimited(c.tag, 5*time.Second)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return venue.NewVenueError(c.tag, "rpc_http_error", fmt.Sprintf("status %d", resp.StatusCode))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return venue.NewVenueError(c.tag, "decode_error", fmt.Sprintf("decode rpc response: %v", err))
	}
	if rpcResp.Error != nil {
		return venue.NewVenueError(c.tag, "rpc_error", rpcResp.Error.Message)
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return venue.NewVenueError(c.tag, "decode_error", fmt.Sprintf("decode rpc result: %v", err))
	}
	return nil
}

// GetBalance returns the lamport balance of a base58 account address.
func (c *Client) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	var out struct {
		Value uint64 `json:"value"`
	}
	if err := c.Call(ctx, "getBalance", []any{pubkey}, &out); err != nil {
		return 0, err
	}
	return out.Value, nil
}

// TokenAccount is one SPL token account owned by a wallet.
type TokenAccount struct {
	Mint     string
	Amount   float64 // UI amount, already divided by 10^decimals
	Decimals int
}

// GetTokenAccountsByOwner returns every SPL token account owned by owner,
// filtered to the token program, with balances parsed using the
// "jsonParsed" encoding so decimals don't need a second mint lookup.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner string) ([]TokenAccount, error) {
	var out struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								UIAmount float64 `json:"uiAmount"`
								Decimals int     `json:"decimals"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}

	params := []any{
		owner,
		map[string]string{"programId": "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
		map[string]string{"encoding": "jsonParsed"},
	}
	if err := c.Call(ctx, "getTokenAccountsByOwner", params, &out); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccount, 0, len(out.Value))
	for _, v := range out.Value {
		info := v.Account.Data.Parsed.Info
		if info.TokenAmount.UIAmount == 0 {
			continue
		}
		accounts = append(accounts, TokenAccount{
			Mint:     info.Mint,
			Amount:   info.TokenAmount.UIAmount,
			Decimals: info.TokenAmount.Decimals,
		})
	}
	return accounts, nil
}
