package fetcher

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dev-bhaskar8/kekterminal/internal/engine"
)

const pairABIJSON = `[{"inputs":[],"name":"getReserves","outputs":[{"internalType":"uint112","name":"_reserve0","type":"uint112"},{"internalType":"uint112","name":"_reserve1","type":"uint112"},{"internalType":"uint32","name":"_blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"}]`

var pairABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(pairABIJSON))
	if err != nil {
		panic("failed to parse pair ABI: " + err.Error())
	}
	pairABI = parsed
}

// OnchainOptions parameterise the RPC reserves fetcher.
type OnchainOptions struct {
	RPCURL             string
	Timeout            time.Duration
	BaseTokenDecimals  int32
	QuoteTokenDecimals int32
}

// Onchain derives a pool price directly from pair contract reserves over
// Ronin RPC. It assumes UniswapV2-style pairs with the base token as token0
// and uniform token decimals across the configured pools.
type Onchain struct {
	opts      OnchainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewOnchain builds a new reserves fetcher.
func NewOnchain(opts OnchainOptions, logger zerolog.Logger) *Onchain {
	if opts.BaseTokenDecimals <= 0 {
		opts.BaseTokenDecimals = 18
	}
	if opts.QuoteTokenDecimals <= 0 {
		opts.QuoteTokenDecimals = 6
	}
	return &Onchain{opts: opts, logger: logger.With().Str("component", "onchain_fetcher").Logger()}
}

// FetchPoolPrice reads getReserves on the pool contract and returns the
// quote-per-base price.
func (o *Onchain) FetchPoolPrice(ctx context.Context, pool string) (decimal.Decimal, time.Time, error) {
	if o.opts.RPCURL == "" {
		return decimal.Decimal{}, time.Time{}, errors.New("rpc url not configured")
	}
	if !common.IsHexAddress(pool) {
		return decimal.Decimal{}, time.Time{}, errors.New("pool is not a hex contract address")
	}

	timeout := o.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := o.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	addr := common.HexToAddress(pool)
	payload, err := pairABI.Pack("getReserves")
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	outputs, err := pairABI.Unpack("getReserves", res)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	if len(outputs) != 3 {
		return decimal.Decimal{}, time.Time{}, errors.New("unexpected getReserves response")
	}

	reserve0, ok0 := outputs[0].(*big.Int)
	reserve1, ok1 := outputs[1].(*big.Int)
	if !ok0 || !ok1 {
		return decimal.Decimal{}, time.Time{}, errors.New("failed to decode reserves")
	}

	base := decimal.NewFromBigInt(reserve0, -o.opts.BaseTokenDecimals)
	quote := decimal.NewFromBigInt(reserve1, -o.opts.QuoteTokenDecimals)
	if base.IsZero() {
		return decimal.Decimal{}, time.Time{}, errors.New("pool has zero base reserves")
	}

	return quote.Div(base), time.Now().UTC(), nil
}

func (o *Onchain) getClient(ctx context.Context) (*ethclient.Client, error) {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()

	if o.client != nil {
		return o.client, nil
	}

	client, err := ethclient.DialContext(ctx, o.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

var _ engine.PriceSource = (*Onchain)(nil)
