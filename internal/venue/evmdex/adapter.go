// Package evmdex implements venue.Adapter for a generic on-chain EVM
// decentralized exchange: instead of a REST API, reads come from eth_call
// against an ERC-20 token contract (balanceOf) and a Uniswap V2-compatible
// router contract (getAmountsOut), using go-ethereum's ethclient the same
// way the teacher's crypto/signer.go uses the rest of that module for
// wallet operations.
package evmdex

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/venue"
)

const Tag = "evmdex"

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

const routerABI = `[
	{"constant":true,"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],"type":"function"}
]`

// Adapter reads ERC-20 balances and router swap quotes over an EVM JSON-RPC
// endpoint. It has no concept of a resting "position" beyond token
// balances, and no trade-history endpoint without a log indexer, so
// FetchTrades and FetchFunding are not supported.
type Adapter struct {
	client     *ethclient.Client
	routerAddr common.Address
	erc20      abi.ABI
	router     abi.ABI
}

// New creates an evmdex adapter against rpcURL (e.g. an Infura/Alchemy/
// public RPC endpoint) and routerAddrHex, the Uniswap V2-compatible router
// contract address used for quotes.
func New(ctx context.Context, rpcURL, routerAddrHex string) (*Adapter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("evmdex: dial %s: %w", rpcURL, err)
	}
	erc20Parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("evmdex: parse erc20 abi: %w", err)
	}
	routerParsed, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, fmt.Errorf("evmdex: parse router abi: %w", err)
	}
	return &Adapter{
		client:     client,
		routerAddr: common.HexToAddress(routerAddrHex),
		erc20:      erc20Parsed,
		router:     routerParsed,
	}, nil
}

var _ venue.Adapter = (*Adapter)(nil)

func (a *Adapter) Tag() string { return Tag }

func (a *Adapter) Capabilities() venue.Capabilities {
	return venue.Capabilities{
		SupportsFutures: false,
		SupportsFunding: false,
		SupportsStream:  false,
		SupportsSearch:  false,
		PriceUnit:       "quote_currency",
	}
}

func (a *Adapter) callContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	out, err := a.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, venue.NewNetworkError(Tag, err)
	}
	return out, nil
}

func (a *Adapter) tokenDecimals(ctx context.Context, token common.Address) (int32, error) {
	data, err := a.erc20.Pack("decimals")
	if err != nil {
		return 0, venue.NewVenueError(Tag, "encode_error", err.Error())
	}
	raw, err := a.callContract(ctx, token, data)
	if err != nil {
		return 0, err
	}
	vals, err := a.erc20.Unpack("decimals", raw)
	if err != nil || len(vals) == 0 {
		return 18, nil // most ERC-20s default to 18
	}
	return int32(vals[0].(uint8)), nil
}

func (a *Adapter) tokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := a.erc20.Pack("balanceOf", owner)
	if err != nil {
		return nil, venue.NewVenueError(Tag, "encode_error", err.Error())
	}
	raw, err := a.callContract(ctx, token, data)
	if err != nil {
		return nil, err
	}
	vals, err := a.erc20.Unpack("balanceOf", raw)
	if err != nil || len(vals) == 0 {
		return nil, venue.NewVenueError(Tag, "decode_error", "unpack balanceOf")
	}
	return vals[0].(*big.Int), nil
}

// FetchPositions reports each tracked ERC-20 token (cred.Extra, keyed by
// symbol -> contract address hex) that the wallet holds a nonzero balance
// of, as a spot position with no tracked entry price.
func (a *Adapter) FetchPositions(ctx context.Context, cred venue.Credential) ([]domain.Position, error) {
	owner := common.HexToAddress(cred.WalletAddress)
	now := time.Now()

	var out []domain.Position
	for symbol, addrHex := range cred.Extra {
		token := common.HexToAddress(addrHex)
		raw, err := a.tokenBalance(ctx, token, owner)
		if err != nil {
			return nil, err
		}
		if raw.Sign() == 0 {
			continue
		}
		decimals, err := a.tokenDecimals(ctx, token)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Position{
			Venue:      Tag,
			MarketID:   addrHex,
			OutcomeID:  "spot",
			Side:       "long",
			Size:       weiToFloat(raw, decimals),
			OpenedAt:   now,
			UpdatedAt:  now,
			MarginMode: domain.MarginModeCross,
		})
		_ = symbol
	}
	return out, nil
}

func (a *Adapter) FetchBalances(ctx context.Context, cred venue.Credential) ([]domain.Balance, error) {
	owner := common.HexToAddress(cred.WalletAddress)

	native, err := a.client.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, venue.NewNetworkError(Tag, err)
	}
	out := []domain.Balance{{
		Venue:     Tag,
		Asset:     "native",
		Available: weiToFloat(native, 18),
		Total:     weiToFloat(native, 18),
	}}

	for symbol, addrHex := range cred.Extra {
		token := common.HexToAddress(addrHex)
		raw, err := a.tokenBalance(ctx, token, owner)
		if err != nil {
			return nil, err
		}
		decimals, err := a.tokenDecimals(ctx, token)
		if err != nil {
			return nil, err
		}
		amount := weiToFloat(raw, decimals)
		out = append(out, domain.Balance{Venue: Tag, Asset: symbol, Available: amount, Total: amount})
	}
	return out, nil
}

// FetchTrades is not supported: recovering swap history requires indexing
// Transfer/Swap event logs, which is out of scope for a read-at-call-time
// adapter.
func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	return nil, venue.NewNotSupported(Tag, "FetchTrades")
}

func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	return nil, venue.NewNotSupported(Tag, "FetchFunding")
}

// Quote calls the router's getAmountsOut for a direct tokenIn->tokenOut
// swap: marketID is "<tokenIn>/<tokenOut>" (hex addresses) and size is the
// input amount already scaled to the token's base units.
func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	tokenIn, tokenOut, ok := splitPair(marketID)
	if !ok {
		return venue.Quote{}, venue.NewVenueError(Tag, "bad_market_id", marketID)
	}

	amountIn := big.NewInt(int64(size))
	path := []common.Address{common.HexToAddress(tokenIn), common.HexToAddress(tokenOut)}

	data, err := a.router.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return venue.Quote{}, venue.NewVenueError(Tag, "encode_error", err.Error())
	}
	raw, err := a.callContract(ctx, a.routerAddr, data)
	if err != nil {
		return venue.Quote{}, err
	}
	vals, err := a.router.Unpack("getAmountsOut", raw)
	if err != nil || len(vals) == 0 {
		return venue.Quote{}, venue.NewVenueError(Tag, "decode_error", "unpack getAmountsOut")
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return venue.Quote{}, venue.NewVenueError(Tag, "decode_error", "malformed amounts")
	}

	out := new(big.Float).SetInt(amounts[len(amounts)-1])
	in := new(big.Float).SetInt(amountIn)
	price, _ := new(big.Float).Quo(out, in).Float64()
	return venue.Quote{Price: price}, nil
}

func splitPair(marketID string) (string, string, bool) {
	for i := 0; i < len(marketID); i++ {
		if marketID[i] == '/' {
			return marketID[:i], marketID[i+1:], true
		}
	}
	return "", "", false
}

func weiToFloat(wei *big.Int, decimals int32) float64 {
	f := new(big.Float).SetInt(wei)
	scale := new(big.Float).SetFloat64(1)
	for i := int32(0); i < decimals; i++ {
		scale.Mul(scale, big.NewFloat(10))
	}
	result, _ := new(big.Float).Quo(f, scale).Float64()
	return result
}
