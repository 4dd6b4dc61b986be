package exchange

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const (
	uniswapV2PairABIJSON = `[{"constant":true,"inputs":[],"name":"getReserves","outputs":[{"internalType":"uint112","name":"_reserve0","type":"uint112"},{"internalType":"uint112","name":"_reserve1","type":"uint112"},{"internalType":"uint32","name":"_blockTimestampLast","type":"uint32"}],"payable":false,"stateMutability":"view","type":"function"}]`

	defaultUniswapFeeBps = 30
)

var uniswapV2PairABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(uniswapV2PairABIJSON))
	if err != nil {
		panic("failed to parse Uniswap V2 pair ABI: " + err.Error())
	}
	uniswapV2PairABI = parsed
}

// UniswapV2Options parameterise the on-chain pool source.
type UniswapV2Options struct {
	Name          string
	Pair          CurrencyPair
	RPCURL        string
	PairAddress   string
	BaseIsToken0  bool
	BaseDecimals  int32
	QuoteDecimals int32
	FeeBps        int64
	Timeout       time.Duration
}

type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// UniswapV2 derives ask/bid from a constant-product pool's reserves.
// The swap fee is applied on both sides of the mid price.
type UniswapV2 struct {
	book
	opts      UniswapV2Options
	caller    contractCaller
	clientMux sync.Mutex
}

// NewUniswapV2 builds a pool source. The RPC connection is dialled lazily.
func NewUniswapV2(opts UniswapV2Options) *UniswapV2 {
	name := opts.Name
	if name == "" {
		name = "uniswap_v2"
	}
	if opts.FeeBps <= 0 {
		opts.FeeBps = defaultUniswapFeeBps
	}
	return &UniswapV2{book: newBook(name, opts.Pair), opts: opts}
}

// UpdatePrices reads getReserves at the latest block.
func (u *UniswapV2) UpdatePrices(ctx context.Context) error {
	if u.opts.RPCURL == "" && u.caller == nil {
		return u.fail(errors.New("ethereum rpc url not configured"))
	}
	if !common.IsHexAddress(u.opts.PairAddress) {
		return u.fail(fmt.Errorf("invalid pair address %q", u.opts.PairAddress))
	}

	timeout := u.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	caller, err := u.getCaller(ctx)
	if err != nil {
		return u.fail(err)
	}

	payload, err := uniswapV2PairABI.Pack("getReserves")
	if err != nil {
		return u.fail(err)
	}

	addr := common.HexToAddress(u.opts.PairAddress)
	res, err := caller.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return u.fail(err)
	}

	outputs, err := uniswapV2PairABI.Unpack("getReserves", res)
	if err != nil {
		return u.fail(err)
	}
	if len(outputs) != 3 {
		return u.fail(errors.New("unexpected getReserves response"))
	}
	reserve0, ok0 := outputs[0].(*big.Int)
	reserve1, ok1 := outputs[1].(*big.Int)
	if !ok0 || !ok1 {
		return u.fail(errors.New("failed to decode getReserves output"))
	}

	ask, bid, err := u.pricesFromReserves(reserve0, reserve1)
	if err != nil {
		return u.fail(err)
	}
	u.set(ask, bid)
	return nil
}

func (u *UniswapV2) pricesFromReserves(reserve0, reserve1 *big.Int) (decimal.Decimal, decimal.Decimal, error) {
	baseRaw, quoteRaw := reserve1, reserve0
	if u.opts.BaseIsToken0 {
		baseRaw, quoteRaw = reserve0, reserve1
	}
	if baseRaw.Sign() == 0 || quoteRaw.Sign() == 0 {
		return decimal.Decimal{}, decimal.Decimal{}, errors.New("pool has empty reserves")
	}

	base := decimal.NewFromBigInt(baseRaw, -u.opts.BaseDecimals)
	quote := decimal.NewFromBigInt(quoteRaw, -u.opts.QuoteDecimals)
	mid := quote.Div(base)

	keep := decimal.NewFromInt(1).Sub(decimal.New(u.opts.FeeBps, -4))
	if !keep.IsPositive() {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("fee of %d bps leaves nothing to trade", u.opts.FeeBps)
	}
	return mid.Div(keep), mid.Mul(keep), nil
}

func (u *UniswapV2) getCaller(ctx context.Context) (contractCaller, error) {
	u.clientMux.Lock()
	defer u.clientMux.Unlock()

	if u.caller != nil {
		return u.caller, nil
	}

	client, err := ethclient.DialContext(ctx, u.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	u.caller = client
	return client, nil
}

var _ Source = (*UniswapV2)(nil)
