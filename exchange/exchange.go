package exchange

import (
	"errors"
	"sync"
	"time"

	"github.com/defistate/defistate-amm-go/protocols/dao"
	"github.com/defistate/defistate-amm-go/protocols/tokenpoolregistry"
	"github.com/defistate/defistate-amm-go/protocols/tokenregistry"
	tokenindexer "github.com/defistate/defistate-amm-go/protocols/tokenregistry/indexer"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/calculator"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/factory"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/router"
	"github.com/defistate/defistate-amm-go/protocols/weth"
	"github.com/defistate/defistate-amm-go/state"
	"github.com/defistate/defistate-amm-go/types"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the dependencies and deployment parameters of an Exchange.
type Config struct {
	// Owner deploys the core contracts. It becomes the factory setter and the
	// owner of the governance queue.
	Owner common.Address
	// Treasury receives protocol and swap fees. Zero disables both.
	Treasury common.Address
	// Clock is handed to every router. Defaults to time.Now.
	Clock    func() time.Time
	Registry prometheus.Registerer
	Logger   Logger
}

// validate checks if the configuration is valid, ensuring required dependencies are present.
func (c *Config) validate() error {
	if c.Owner == (common.Address{}) {
		return errors.New("config: Owner cannot be zero")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	return nil
}

// Exchange owns a complete deployment (state, factory, governance queue,
// wrapped native asset and every router deployed through it) and serializes
// all access to it. Each call is atomic: it either applies completely or
// leaves the state untouched.
//
// Exchange is safe for concurrent use.
type Exchange struct {
	mu sync.Mutex

	db      *state.StateDB
	factory *factory.Factory
	dao     *dao.DAO
	weth    *weth.WETH
	routers map[common.Address]*router.Router
	tokens  []tokenregistry.Token
	clock   func() time.Time

	metrics *Metrics
	logger  Logger
}

// New deploys the factory, the governance queue and the wrapped native asset
// from cfg.Owner and binds the queue as the factory's governance. No router
// is trusted yet: see DeployRouter, ProposeRouter and ConfirmRouter.
func New(cfg Config) (*Exchange, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	db := state.New()
	f, err := factory.Deploy(db, cfg.Owner, cfg.Owner, cfg.Treasury)
	if err != nil {
		return nil, err
	}
	d, err := dao.Deploy(db, cfg.Owner, f.Address())
	if err != nil {
		return nil, err
	}
	if err := f.SetGovernanceInitial(cfg.Owner, d.Address()); err != nil {
		return nil, err
	}
	w, err := weth.Deploy(db, cfg.Owner)
	if err != nil {
		return nil, err
	}

	x := &Exchange{
		db:      db,
		factory: f,
		dao:     d,
		weth:    w,
		routers: make(map[common.Address]*router.Router),
		clock:   clock,
		metrics: NewMetrics(cfg.Registry),
		logger:  cfg.Logger,
	}
	x.logger.Info("exchange deployed",
		"factory", f.Address().Hex(),
		"governance", d.Address().Hex(),
		"weth", w.Address().Hex(),
	)
	return x, nil
}

// call runs fn under the exchange lock and records its outcome.
func call[T any](x *Exchange, method string, fn func() (T, error)) (T, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	timer := prometheus.NewTimer(x.metrics.callDuration.WithLabelValues(method))
	result, err := fn()
	timer.ObserveDuration()

	if err != nil {
		x.metrics.calls.WithLabelValues(method, "error").Inc()
		x.logger.Warn("call failed", "method", method, "error", err, "code", types.Code(err))
		return result, err
	}
	x.metrics.calls.WithLabelValues(method, "ok").Inc()
	x.logger.Debug("call succeeded", "method", method)
	return result, nil
}

// exec is call for operations without a result.
func exec(x *Exchange, method string, fn func() error) error {
	_, err := call(x, method, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// read runs a view under the exchange lock without recording it.
func read[T any](x *Exchange, fn func() T) T {
	x.mu.Lock()
	defer x.mu.Unlock()
	return fn()
}

func (x *Exchange) Factory() common.Address    { return x.factory.Address() }
func (x *Exchange) Governance() common.Address { return x.dao.Address() }
func (x *Exchange) WETH() common.Address       { return x.weth.Address() }

// --- Accounts and tokens ---

// MintNative credits amount of native coin to account.
func (x *Exchange) MintNative(account common.Address, amount *uint256.Int) error {
	return exec(x, "MintNative", func() error {
		return x.db.Mint(state.NativeAsset, account, amount)
	})
}

// DeployToken deploys a fungible token from deployer and mints supply to holder.
func (x *Exchange) DeployToken(deployer common.Address, name, symbol string, decimals uint8, supply *uint256.Int, holder common.Address) (tokenregistry.Token, error) {
	return call(x, "DeployToken", func() (tokenregistry.Token, error) {
		token, err := tokenregistry.Deploy(x.db, deployer, name, symbol, decimals, supply, holder)
		if err != nil {
			return tokenregistry.Token{}, err
		}
		x.tokens = append(x.tokens, token)
		return token, nil
	})
}

// Tokens returns an index over every token deployed through the exchange,
// the wrapped native asset included.
func (x *Exchange) Tokens() tokenindexer.IndexedTokenSystem {
	return read(x, func() tokenindexer.IndexedTokenSystem {
		all := append([]tokenregistry.Token{{
			Address:  x.weth.Address(),
			Name:     "Wrapped Ether",
			Symbol:   "WETH",
			Decimals: 18,
		}}, x.tokens...)
		return tokenindexer.New().Index(all)
	})
}

// Transfer moves amount of token between accounts on behalf of from.
func (x *Exchange) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	return exec(x, "Transfer", func() error {
		return x.db.Transfer(token, from, to, amount)
	})
}

// --- Governance ---

// DeployRouter deploys a router from deployer. It handles no trades until
// governance confirms a request naming its address.
func (x *Exchange) DeployRouter(deployer common.Address) (common.Address, error) {
	return call(x, "DeployRouter", func() (common.Address, error) {
		r, err := router.Deploy(deployer, router.Config{
			DB:      x.db,
			Factory: x.factory,
			WETH:    x.weth,
			Clock:   x.clock,
		})
		if err != nil {
			return common.Address{}, err
		}
		x.routers[r.Address()] = r
		return r.Address(), nil
	})
}

// ProposeRouter enqueues a governance request to switch to routerAddress and
// returns its index.
func (x *Exchange) ProposeRouter(caller, routerAddress common.Address) (uint64, error) {
	return call(x, "ProposeRouter", func() (uint64, error) {
		return x.dao.EnqueueRouterChange(caller, routerAddress)
	})
}

// ConfirmRouter makes the router named by request index the trusted one.
func (x *Exchange) ConfirmRouter(caller common.Address, index uint64) error {
	return exec(x, "ConfirmRouter", func() error {
		return x.factory.SetRouterAddress(caller, index)
	})
}

func (x *Exchange) AuthorizeProposer(caller, account common.Address) error {
	return exec(x, "AuthorizeProposer", func() error {
		return x.dao.AuthorizeProposer(caller, account)
	})
}

func (x *Exchange) RevokeProposer(caller, account common.Address) error {
	return exec(x, "RevokeProposer", func() error {
		return x.dao.RevokeProposer(caller, account)
	})
}

// Proposers returns the accounts besides the owner allowed to propose routers.
func (x *Exchange) Proposers() mapset.Set[common.Address] {
	return read(x, x.dao.Proposers)
}

// SetTreasury changes the fee recipient. Setter only.
func (x *Exchange) SetTreasury(caller, treasury common.Address) error {
	return exec(x, "SetTreasury", func() error {
		return x.factory.SetTreasury(caller, treasury)
	})
}

// Router returns the address of the router the factory currently trusts.
func (x *Exchange) Router() common.Address {
	return read(x, x.factory.RouterAddress)
}

// trusted returns the router instance the factory currently trusts.
func (x *Exchange) trusted() (*router.Router, error) {
	address := x.factory.RouterAddress()
	if address == (common.Address{}) {
		return nil, types.ErrNotAuthorized.Wrap("no router confirmed")
	}
	r, ok := x.routers[address]
	if !ok {
		return nil, types.ErrNotAuthorized.Wrapf("router %s was not deployed by this exchange", address.Hex())
	}
	return r, nil
}

// --- Pairs ---

// CreatePair creates the tokenA/tokenB pair without adding liquidity.
func (x *Exchange) CreatePair(tokenA, tokenB common.Address) (common.Address, error) {
	return call(x, "CreatePair", func() (common.Address, error) {
		p, err := x.factory.CreatePair(tokenA, tokenB)
		if err != nil {
			return common.Address{}, err
		}
		return p.Address(), nil
	})
}

// Skim sends balances of the pair above its reserves to the treasury.
func (x *Exchange) Skim(tokenA, tokenB common.Address) error {
	return exec(x, "Skim", func() error {
		p, err := x.factory.PairFor(tokenA, tokenB)
		if err != nil {
			return err
		}
		return p.Skim()
	})
}

// Sync sets the pair's reserves to its balances.
func (x *Exchange) Sync(tokenA, tokenB common.Address) error {
	return exec(x, "Sync", func() error {
		p, err := x.factory.PairFor(tokenA, tokenB)
		if err != nil {
			return err
		}
		return p.Sync()
	})
}

// --- Liquidity ---

type removed struct{ a, b *uint256.Int }

func (x *Exchange) AddLiquidity(caller common.Address, p router.AddLiquidityParams) (router.LiquidityResult, error) {
	return call(x, "AddLiquidity", func() (router.LiquidityResult, error) {
		r, err := x.trusted()
		if err != nil {
			return router.LiquidityResult{}, err
		}
		return r.AddLiquidity(caller, p)
	})
}

func (x *Exchange) AddLiquidityETH(caller common.Address, p router.AddLiquidityETHParams) (router.LiquidityResult, error) {
	return call(x, "AddLiquidityETH", func() (router.LiquidityResult, error) {
		r, err := x.trusted()
		if err != nil {
			return router.LiquidityResult{}, err
		}
		return r.AddLiquidityETH(caller, p)
	})
}

func (x *Exchange) RemoveLiquidity(caller common.Address, p router.RemoveLiquidityParams) (amountA, amountB *uint256.Int, err error) {
	out, err := call(x, "RemoveLiquidity", func() (removed, error) {
		r, err := x.trusted()
		if err != nil {
			return removed{}, err
		}
		a, b, err := r.RemoveLiquidity(caller, p)
		return removed{a, b}, err
	})
	return out.a, out.b, err
}

func (x *Exchange) RemoveLiquidityETH(caller common.Address, p router.RemoveLiquidityETHParams) (amountToken, amountETH *uint256.Int, err error) {
	out, err := call(x, "RemoveLiquidityETH", func() (removed, error) {
		r, err := x.trusted()
		if err != nil {
			return removed{}, err
		}
		a, b, err := r.RemoveLiquidityETH(caller, p)
		return removed{a, b}, err
	})
	return out.a, out.b, err
}

// --- Swaps ---

// swap dispatches a swap to the trusted router and counts its hops.
func (x *Exchange) swap(method string, fn func(r *router.Router) (router.SwapResult, error)) (router.SwapResult, error) {
	return call(x, method, func() (router.SwapResult, error) {
		r, err := x.trusted()
		if err != nil {
			return router.SwapResult{}, err
		}
		result, err := fn(r)
		if err != nil {
			return router.SwapResult{}, err
		}
		x.metrics.swapHops.Add(float64(len(result.Amounts) - 1))
		return result, nil
	})
}

func (x *Exchange) SwapExactTokensForTokens(caller common.Address, p router.ExactInput) (router.SwapResult, error) {
	return x.swap("SwapExactTokensForTokens", func(r *router.Router) (router.SwapResult, error) {
		return r.SwapExactTokensForTokens(caller, p)
	})
}

func (x *Exchange) SwapTokensForExactTokens(caller common.Address, p router.ExactOutput) (router.SwapResult, error) {
	return x.swap("SwapTokensForExactTokens", func(r *router.Router) (router.SwapResult, error) {
		return r.SwapTokensForExactTokens(caller, p)
	})
}

func (x *Exchange) SwapExactETHForTokens(caller common.Address, p router.ExactInput) (router.SwapResult, error) {
	return x.swap("SwapExactETHForTokens", func(r *router.Router) (router.SwapResult, error) {
		return r.SwapExactETHForTokens(caller, p)
	})
}

func (x *Exchange) SwapETHForExactTokens(caller common.Address, p router.ExactOutput) (router.SwapResult, error) {
	return x.swap("SwapETHForExactTokens", func(r *router.Router) (router.SwapResult, error) {
		return r.SwapETHForExactTokens(caller, p)
	})
}

func (x *Exchange) SwapExactTokensForETH(caller common.Address, p router.ExactInput) (router.SwapResult, error) {
	return x.swap("SwapExactTokensForETH", func(r *router.Router) (router.SwapResult, error) {
		return r.SwapExactTokensForETH(caller, p)
	})
}

func (x *Exchange) SwapTokensForExactETH(caller common.Address, p router.ExactOutput) (router.SwapResult, error) {
	return x.swap("SwapTokensForExactETH", func(r *router.Router) (router.SwapResult, error) {
		return r.SwapTokensForExactETH(caller, p)
	})
}

// --- Views ---

// Pools returns a snapshot of every pair in creation order.
func (x *Exchange) Pools() []uniswapv2.Pool {
	return read(x, x.factory.Pools)
}

// BalanceOf returns account's balance of token. Use state.NativeAsset for
// native coin and a pair address for liquidity shares.
func (x *Exchange) BalanceOf(token, account common.Address) *uint256.Int {
	return read(x, func() *uint256.Int { return x.db.BalanceOf(token, account) })
}

// Logs returns every event emitted so far.
func (x *Exchange) Logs() []state.Log {
	return read(x, x.db.Logs)
}

// GetAmountsOut prices amountIn along path against the current reserves,
// before the treasury fee.
func (x *Exchange) GetAmountsOut(amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return calculator.GetAmountsOut(x.factory, amountIn, path)
}

// GetAmountsIn prices amountOut backward along path, before the treasury fee.
func (x *Exchange) GetAmountsIn(amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return calculator.GetAmountsIn(x.factory, amountOut, path)
}

// BestPath returns the path of at most maxHops pairs that turns amountIn of
// tokenIn into the most tokenOut, with the amounts along it. Candidates whose
// pairs cannot price the trade are skipped.
func (x *Exchange) BestPath(amountIn *uint256.Int, tokenIn, tokenOut common.Address, maxHops int) ([]common.Address, []*uint256.Int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	pools := x.factory.Pools()
	graph := tokenpoolregistry.FromPools(pools)
	for _, p := range pools {
		if p.Reserve0.IsZero() || p.Reserve1.IsZero() {
			graph.RemovePool(p.Address)
		}
	}
	if len(graph.PoolsForToken(tokenIn)) == 0 || len(graph.PoolsForToken(tokenOut)) == 0 {
		return nil, nil, types.ErrInvalidPath.Wrapf("no funded pool trades %s and %s", tokenIn.Hex(), tokenOut.Hex())
	}

	var (
		bestPath    []common.Address
		bestAmounts []*uint256.Int
	)
	for _, path := range graph.Paths(tokenIn, tokenOut, maxHops) {
		amounts, err := calculator.GetAmountsOut(x.factory, amountIn, path)
		if err != nil {
			continue
		}
		if bestAmounts == nil || amounts[len(amounts)-1].Gt(bestAmounts[len(bestAmounts)-1]) {
			bestPath, bestAmounts = path, amounts
		}
	}
	if bestPath == nil {
		return nil, nil, types.ErrInvalidPath.Wrapf("no route from %s to %s within %d hops", tokenIn.Hex(), tokenOut.Hex(), maxHops)
	}
	return bestPath, bestAmounts, nil
}
