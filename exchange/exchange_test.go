package exchange

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/router"
	"github.com/defistate/defistate-amm-go/state"
	"github.com/defistate/defistate-amm-go/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x0e0e000000000000000000000000000000000000")
	treasury = common.HexToAddress("0x7000000000000000000000000000000000000000")
	trader   = common.HexToAddress("0x7ade000000000000000000000000000000000000")
	now      = time.Unix(1_700_000_000, 0)
	deadline = uint64(now.Unix()) + 20
)

func e18(v uint64) *uint256.Int { return types.Units(v, 18) }

type logEntry struct {
	level string
	msg   string
	args  []any
}

// testLogger records entries so tests can assert on them.
type testLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *testLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *testLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *testLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *testLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *testLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

func (l *testLogger) warnings() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.level == "warn" {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	x      *Exchange
	logger *testLogger
	tokenA common.Address
	tokenB common.Address
}

// newFixture deploys an exchange with a confirmed router and two tokens held
// by owner and trader.
func newFixture(t *testing.T) *fixture {
	logger := &testLogger{}
	x, err := New(Config{
		Owner:    owner,
		Treasury: treasury,
		Clock:    func() time.Time { return now },
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	})
	require.NoError(t, err)

	routerAddress, err := x.DeployRouter(owner)
	require.NoError(t, err)
	index, err := x.ProposeRouter(owner, routerAddress)
	require.NoError(t, err)
	require.Equal(t, uint64(1), index)
	require.NoError(t, x.ConfirmRouter(owner, index))

	f := &fixture{x: x, logger: logger}
	for i, target := range []*common.Address{&f.tokenA, &f.tokenB} {
		token, err := x.DeployToken(owner, fmt.Sprintf("MyToken%d", i+1), fmt.Sprintf("MYT%d", i+1), 18, e18(10_000), owner)
		require.NoError(t, err)
		require.NoError(t, x.Transfer(token.Address, owner, trader, e18(1000)))
		*target = token.Address
	}
	require.NoError(t, x.MintNative(owner, e18(1000)))
	return f
}

func (f *fixture) addLiquidity(t *testing.T, tokenA, tokenB common.Address, amountA, amountB *uint256.Int) {
	_, err := f.x.AddLiquidity(owner, router.AddLiquidityParams{
		TokenA: tokenA, TokenB: tokenB,
		AmountADesired: amountA, AmountBDesired: amountB,
		AmountAMin: new(uint256.Int), AmountBMin: new(uint256.Int),
		To: owner, Deadline: deadline,
	})
	require.NoError(t, err)
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         Config
		expectedErr string
	}{
		{name: "zero owner", cfg: Config{Registry: prometheus.NewRegistry(), Logger: &testLogger{}}, expectedErr: "config: Owner cannot be zero"},
		{name: "missing registry", cfg: Config{Owner: owner, Logger: &testLogger{}}, expectedErr: "config: Registry cannot be nil"},
		{name: "missing logger", cfg: Config{Owner: owner, Registry: prometheus.NewRegistry()}, expectedErr: "config: Logger cannot be nil"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			assert.EqualError(t, err, tc.expectedErr)
		})
	}
}

func TestNewWiresGovernance(t *testing.T) {
	f := newFixture(t)

	assert.NotEqual(t, common.Address{}, f.x.Factory())
	assert.NotEqual(t, common.Address{}, f.x.Governance())
	assert.NotEqual(t, f.x.Factory(), f.x.Governance())
	assert.NotEqual(t, common.Address{}, f.x.Router())
	assert.Equal(t, 0, f.x.Proposers().Cardinality())

	tokens := f.x.Tokens()
	weth, ok := tokens.GetBySymbol("weth")
	require.True(t, ok)
	assert.Equal(t, f.x.WETH(), weth.Address)
	token, ok := tokens.GetByAddress(f.tokenA)
	require.True(t, ok)
	assert.Equal(t, "MYT1", token.Symbol)
	assert.Len(t, tokens.All(), 3)
}

func TestTradingRequiresConfirmedRouter(t *testing.T) {
	logger := &testLogger{}
	x, err := New(Config{Owner: owner, Treasury: treasury, Registry: prometheus.NewRegistry(), Logger: logger})
	require.NoError(t, err)
	_, err = x.DeployRouter(owner)
	require.NoError(t, err)

	_, err = x.SwapExactTokensForTokens(trader, router.ExactInput{})
	assert.True(t, errors.Is(err, types.ErrNotAuthorized), "got %v", err)
	assert.Equal(t, common.Address{}, x.Router())

	warnings := logger.warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, []any{"method", "SwapExactTokensForTokens", "error", err, "code", types.Code(types.ErrNotAuthorized)}, warnings[0].args)
	assert.Equal(t, 1.0, testutil.ToFloat64(x.metrics.calls.WithLabelValues("SwapExactTokensForTokens", "error")))
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	x := f.x

	f.addLiquidity(t, f.tokenA, f.tokenB, e18(100), e18(100))
	pools := x.Pools()
	require.Len(t, pools, 1)
	assert.Equal(t, e18(100).Dec(), pools[0].Reserve0.Dec())

	before := x.BalanceOf(f.tokenB, trader)
	result, err := x.SwapExactTokensForTokens(trader, router.ExactInput{
		AmountIn: e18(10), AmountOutMin: uint256.NewInt(1),
		Path: []common.Address{f.tokenA, f.tokenB}, To: trader, Deadline: deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, result.Output().Dec(), new(uint256.Int).Sub(x.BalanceOf(f.tokenB, trader), before).Dec())
	assert.Equal(t, types.Units(10, 15).Dec(), x.BalanceOf(f.tokenA, treasury).Dec())

	quoted, err := x.GetAmountsOut(e18(1), []common.Address{f.tokenA, f.tokenB})
	require.NoError(t, err)
	assert.Len(t, quoted, 2)

	var names []string
	for _, l := range x.Logs() {
		names = append(names, l.Event.EventName())
	}
	assert.Contains(t, names, "PairCreated")
	assert.Contains(t, names, "Swap")

	assert.Equal(t, 1.0, testutil.ToFloat64(x.metrics.calls.WithLabelValues("AddLiquidity", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(x.metrics.calls.WithLabelValues("SwapExactTokensForTokens", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(x.metrics.swapHops))
	assert.Empty(t, f.logger.warnings())

	t.Run("Failed Swap Is Counted And Leaves State Untouched", func(t *testing.T) {
		pools := x.Pools()
		_, err := x.SwapExactTokensForTokens(trader, router.ExactInput{
			AmountIn: e18(10), AmountOutMin: e18(10),
			Path: []common.Address{f.tokenA, f.tokenB}, To: trader, Deadline: deadline,
		})
		assert.True(t, errors.Is(err, types.ErrInsufficientOutputAmount))
		assert.Equal(t, pools, x.Pools())
		assert.Equal(t, 1.0, testutil.ToFloat64(x.metrics.calls.WithLabelValues("SwapExactTokensForTokens", "error")))
		assert.Equal(t, 1.0, testutil.ToFloat64(x.metrics.swapHops))
	})

	t.Run("Remove Liquidity", func(t *testing.T) {
		pair := pools[0].Address
		shares := x.BalanceOf(pair, owner)
		amountA, amountB, err := x.RemoveLiquidity(owner, router.RemoveLiquidityParams{
			TokenA: f.tokenA, TokenB: f.tokenB, Liquidity: shares,
			AmountAMin: new(uint256.Int), AmountBMin: new(uint256.Int),
			To: owner, Deadline: deadline,
		})
		require.NoError(t, err)
		assert.False(t, amountA.IsZero())
		assert.False(t, amountB.IsZero())
		assert.True(t, x.BalanceOf(pair, owner).IsZero())
	})
}

func TestETHFlow(t *testing.T) {
	f := newFixture(t)
	x := f.x

	_, err := x.AddLiquidityETH(owner, router.AddLiquidityETHParams{
		Token: f.tokenA, AmountTokenDesired: e18(100),
		AmountTokenMin: new(uint256.Int), AmountETHMin: new(uint256.Int),
		Value: e18(50), To: owner, Deadline: deadline,
	})
	require.NoError(t, err)

	require.NoError(t, x.MintNative(trader, e18(10)))
	result, err := x.SwapExactETHForTokens(trader, router.ExactInput{
		AmountIn: e18(1), AmountOutMin: uint256.NewInt(1),
		Path: []common.Address{x.WETH(), f.tokenA}, To: trader, Deadline: deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, e18(9).Dec(), x.BalanceOf(state.NativeAsset, trader).Dec())
	assert.Equal(t, result.Fee.Dec(), x.BalanceOf(state.NativeAsset, treasury).Dec())

	_, err = x.SwapTokensForExactETH(trader, router.ExactOutput{
		AmountOut: e18(1), AmountInMax: e18(10),
		Path: []common.Address{f.tokenA, x.WETH()}, To: trader, Deadline: deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, e18(10).Dec(), x.BalanceOf(state.NativeAsset, trader).Dec())

	_, err = x.SwapETHForExactTokens(trader, router.ExactOutput{
		AmountOut: e18(1), AmountInMax: e18(5),
		Path: []common.Address{x.WETH(), f.tokenA}, To: trader, Deadline: deadline,
	})
	require.NoError(t, err)

	_, err = x.SwapExactTokensForETH(trader, router.ExactInput{
		AmountIn: e18(1), AmountOutMin: uint256.NewInt(1),
		Path: []common.Address{f.tokenA, x.WETH()}, To: trader, Deadline: deadline,
	})
	require.NoError(t, err)

	pair := x.Pools()[0].Address
	amountToken, amountETH, err := x.RemoveLiquidityETH(owner, router.RemoveLiquidityETHParams{
		Token: f.tokenA, Liquidity: x.BalanceOf(pair, owner),
		AmountTokenMin: new(uint256.Int), AmountETHMin: new(uint256.Int),
		To: owner, Deadline: deadline,
	})
	require.NoError(t, err)
	assert.False(t, amountToken.IsZero())
	assert.False(t, amountETH.IsZero())
	assert.Equal(t, 4.0, testutil.ToFloat64(x.metrics.swapHops))
}

func TestRouterUpgrade(t *testing.T) {
	f := newFixture(t)
	x := f.x
	f.addLiquidity(t, f.tokenA, f.tokenB, e18(100), e18(100))
	first := x.Router()

	proposer := common.HexToAddress("0x9999000000000000000000000000000000000000")
	_, err := x.ProposeRouter(proposer, first)
	assert.True(t, errors.Is(err, types.ErrNotAuthorized))

	require.NoError(t, x.AuthorizeProposer(owner, proposer))
	assert.True(t, x.Proposers().Contains(proposer))

	second, err := x.DeployRouter(proposer)
	require.NoError(t, err)
	index, err := x.ProposeRouter(proposer, second)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), index)

	assert.True(t, errors.Is(x.ConfirmRouter(proposer, index), types.ErrNotAuthorized), "only the setter or governance confirms")
	require.NoError(t, x.ConfirmRouter(owner, index))
	assert.Equal(t, second, x.Router())

	_, err = x.SwapExactTokensForTokens(trader, router.ExactInput{
		AmountIn: e18(1), AmountOutMin: uint256.NewInt(1),
		Path: []common.Address{f.tokenA, f.tokenB}, To: trader, Deadline: deadline,
	})
	require.NoError(t, err, "trades follow the confirmed router")

	t.Run("Roll Back To The First Request", func(t *testing.T) {
		require.NoError(t, x.ConfirmRouter(owner, 1))
		assert.Equal(t, first, x.Router())
		assert.True(t, errors.Is(x.ConfirmRouter(owner, 1), types.ErrSameAddress))
	})

	t.Run("Unknown Router Is Not Dispatched", func(t *testing.T) {
		stranger := common.HexToAddress("0x5000000000000000000000000000000000000005")
		index, err := x.ProposeRouter(owner, stranger)
		require.NoError(t, err)
		require.NoError(t, x.ConfirmRouter(owner, index))
		_, err = x.SwapExactTokensForTokens(trader, router.ExactInput{
			AmountIn: e18(1), AmountOutMin: uint256.NewInt(1),
			Path: []common.Address{f.tokenA, f.tokenB}, To: trader, Deadline: deadline,
		})
		assert.True(t, errors.Is(err, types.ErrNotAuthorized))
	})

	require.NoError(t, x.RevokeProposer(owner, proposer))
	assert.False(t, x.Proposers().Contains(proposer))
}

func TestSkimAndSync(t *testing.T) {
	f := newFixture(t)
	x := f.x
	f.addLiquidity(t, f.tokenA, f.tokenB, e18(10), e18(10))
	pair := x.Pools()[0].Address

	require.NoError(t, x.Transfer(f.tokenA, trader, pair, e18(1)))
	require.NoError(t, x.Skim(f.tokenA, f.tokenB))
	assert.Equal(t, e18(1).Dec(), x.BalanceOf(f.tokenA, treasury).Dec())

	require.NoError(t, x.Transfer(f.tokenB, trader, pair, e18(2)))
	require.NoError(t, x.Sync(f.tokenB, f.tokenA))
	reserveA, reserveB := x.Pools()[0].Reserve0, x.Pools()[0].Reserve1
	assert.Equal(t, "22000000000000000000", new(uint256.Int).Add(reserveA, reserveB).Dec())

	assert.True(t, errors.Is(x.Sync(f.tokenA, x.WETH()), types.ErrPairNotFound))
}

func TestSetTreasury(t *testing.T) {
	f := newFixture(t)
	x := f.x
	f.addLiquidity(t, f.tokenA, f.tokenB, e18(100), e18(100))

	assert.True(t, errors.Is(x.SetTreasury(trader, trader), types.ErrNotAuthorized))
	require.NoError(t, x.SetTreasury(owner, common.Address{}))

	result, err := x.SwapExactTokensForTokens(trader, router.ExactInput{
		AmountIn: e18(1), AmountOutMin: uint256.NewInt(1),
		Path: []common.Address{f.tokenA, f.tokenB}, To: trader, Deadline: deadline,
	})
	require.NoError(t, err)
	assert.True(t, result.Fee.IsZero())
}

func TestBestPath(t *testing.T) {
	f := newFixture(t)
	x := f.x
	tokenC, err := x.DeployToken(owner, "MyToken3", "MYT3", 18, e18(10_000), owner)
	require.NoError(t, err)

	f.addLiquidity(t, f.tokenA, f.tokenB, e18(1000), e18(1000))
	f.addLiquidity(t, f.tokenB, tokenC.Address, e18(1000), e18(1000))
	f.addLiquidity(t, f.tokenA, tokenC.Address, e18(1), e18(1))

	path, amounts, err := x.BestPath(e18(1), f.tokenA, tokenC.Address, 2)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{f.tokenA, f.tokenB, tokenC.Address}, path)
	direct, err := x.GetAmountsOut(e18(1), []common.Address{f.tokenA, tokenC.Address})
	require.NoError(t, err)
	assert.True(t, amounts[2].Gt(direct[1]))

	path, _, err = x.BestPath(e18(1), f.tokenA, tokenC.Address, 1)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{f.tokenA, tokenC.Address}, path)

	_, _, err = x.BestPath(e18(1), f.tokenA, x.WETH(), 3)
	assert.True(t, errors.Is(err, types.ErrInvalidPath))

	t.Run("Unfunded Pools Are Skipped", func(t *testing.T) {
		_, err := x.CreatePair(f.tokenB, x.WETH())
		require.NoError(t, err)
		_, _, err = x.BestPath(e18(1), f.tokenA, x.WETH(), 3)
		assert.True(t, errors.Is(err, types.ErrInvalidPath))

		_, err = x.CreatePair(f.tokenA, x.WETH())
		require.NoError(t, err)
		path, _, err := x.BestPath(e18(1), f.tokenA, tokenC.Address, 3)
		require.NoError(t, err)
		assert.Equal(t, []common.Address{f.tokenA, f.tokenB, tokenC.Address}, path)
	})
}

// TestConcurrentSwaps checks that concurrent callers are serialized: every
// call succeeds and the product of reserves never decreases.
func TestConcurrentSwaps(t *testing.T) {
	f := newFixture(t)
	x := f.x
	f.addLiquidity(t, f.tokenA, f.tokenB, e18(1000), e18(1000))
	k := func() *uint256.Int {
		p := x.Pools()[0]
		return new(uint256.Int).Mul(p.Reserve0, p.Reserve1)
	}
	initial := k()

	const workers, swaps = 8, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*swaps)
	for w := 0; w < workers; w++ {
		path := []common.Address{f.tokenA, f.tokenB}
		if w%2 == 1 {
			path = []common.Address{f.tokenB, f.tokenA}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < swaps; i++ {
				_, err := x.SwapExactTokensForTokens(trader, router.ExactInput{
					AmountIn: e18(1), AmountOutMin: uint256.NewInt(1),
					Path: path, To: trader, Deadline: deadline,
				})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.False(t, k().Lt(initial))
	assert.Equal(t, float64(workers*swaps), testutil.ToFloat64(x.metrics.calls.WithLabelValues("SwapExactTokensForTokens", "ok")))
	assert.Equal(t, float64(workers*swaps), testutil.ToFloat64(x.metrics.swapHops))
}
