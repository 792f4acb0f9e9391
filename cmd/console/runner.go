package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/defistate/defistate-amm-go/cmd/console/config"
	"github.com/defistate/defistate-amm-go/exchange"
	"github.com/defistate/defistate-amm-go/protocols/tokenregistry"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/calculator"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/indexer"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/router"
	"github.com/defistate/defistate-amm-go/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// runner replays a scenario against an exchange and keeps a patched view of
// its pools between steps.
type runner struct {
	cfg      *config.ConsoleConfig
	x        *exchange.Exchange
	logger   *slog.Logger
	owner    common.Address
	accounts map[string]common.Address
	names    []string
	symbols  map[string]tokenregistry.Token

	pools   []uniswapv2.Pool
	indexed indexer.IndexedUniswapV2
}

func newRunner(cfg *config.ConsoleConfig, x *exchange.Exchange, logger *slog.Logger) *runner {
	owner := common.HexToAddress(cfg.Owner)
	return &runner{
		cfg:      cfg,
		x:        x,
		logger:   logger,
		owner:    owner,
		accounts: map[string]common.Address{config.AccountOwner: owner},
		names:    []string{config.AccountOwner},
		symbols:  make(map[string]tokenregistry.Token),
		indexed:  indexer.New().Index(nil),
	}
}

// setup funds the accounts, deploys the tokens and replays the deploy task:
// deploy a router, enqueue it and confirm request 1.
func (r *runner) setup() error {
	for _, a := range r.cfg.Accounts {
		address := common.HexToAddress(a.Address)
		r.accounts[a.Name] = address
		r.names = append(r.names, a.Name)
		if a.Native == "" {
			continue
		}
		amount, err := config.ParseAmount(a.Native)
		if err != nil {
			return fmt.Errorf("fund %s: %w", a.Name, err)
		}
		if err := r.x.MintNative(address, amount); err != nil {
			return fmt.Errorf("fund %s: %w", a.Name, err)
		}
	}

	for _, t := range r.cfg.Tokens {
		supply, err := config.ParseAmount(t.Supply)
		if err != nil {
			return fmt.Errorf("deploy %s: %w", t.Symbol, err)
		}
		holder := r.owner
		if t.Holder != "" {
			holder = r.accounts[t.Holder]
		}
		token, err := r.x.DeployToken(r.owner, t.Name, t.Symbol, t.Decimals, supply, holder)
		if err != nil {
			return fmt.Errorf("deploy %s: %w", t.Symbol, err)
		}
		for name, value := range t.Allocations {
			amount, err := config.ParseAmount(value)
			if err != nil {
				return fmt.Errorf("allocate %s to %s: %w", t.Symbol, name, err)
			}
			if err := r.x.Transfer(token.Address, holder, r.accounts[name], amount); err != nil {
				return fmt.Errorf("allocate %s to %s: %w", t.Symbol, name, err)
			}
		}
	}
	for _, t := range r.x.Tokens().All() {
		r.symbols[strings.ToUpper(t.Symbol)] = t
	}

	routerAddress, err := r.x.DeployRouter(r.owner)
	if err != nil {
		return err
	}
	index, err := r.x.ProposeRouter(r.owner, routerAddress)
	if err != nil {
		return err
	}
	return r.x.ConfirmRouter(r.owner, index)
}

func (r *runner) deadline() uint64 {
	return uint64(time.Now().Add(r.cfg.Deadline).Unix())
}

func isNative(symbol string) bool {
	return strings.EqualFold(symbol, config.SymbolNative)
}

// asset resolves a symbol to the address balances are kept under.
func (r *runner) asset(symbol string) common.Address {
	if isNative(symbol) {
		return state.NativeAsset
	}
	return r.symbols[strings.ToUpper(symbol)].Address
}

// pairToken resolves a symbol to the token traded by pairs: the native coin
// trades as its wrapped form.
func (r *runner) pairToken(symbol string) common.Address {
	if isNative(symbol) {
		return r.x.WETH()
	}
	return r.asset(symbol)
}

func (r *runner) path(symbols []string) []common.Address {
	path := make([]common.Address, len(symbols))
	for i, s := range symbols {
		path[i] = r.pairToken(s)
	}
	return path
}

func (r *runner) symbolOf(address common.Address) string {
	if address == state.NativeAsset {
		return config.SymbolNative
	}
	if t, ok := r.x.Tokens().GetByAddress(address); ok {
		return t.Symbol
	}
	return shortAddress(address)
}

func (r *runner) decimalsOf(address common.Address) uint8 {
	if t, ok := r.x.Tokens().GetByAddress(address); ok {
		return t.Decimals
	}
	return 18
}

// amountOrZero parses a step amount, reading an empty field as zero.
func amountOrZero(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return config.ParseAmount(s)
}

// run executes a single step and returns a one-line summary.
func (r *runner) run(step config.Step) (string, error) {
	from := r.accounts[step.From]
	if step.From == "" {
		from = r.owner
	}
	r.logger.Debug("running step", "action", step.Action, "from", step.From)

	switch step.Action {
	case config.ActionTransfer:
		amount, err := amountOrZero(step.Amount)
		if err != nil {
			return "", err
		}
		if err := r.x.Transfer(r.asset(step.Token), from, r.accounts[step.To], amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s sent %s %s to %s", step.From, amount.Dec(), step.Token, step.To), nil

	case config.ActionAddLiquidity:
		return r.addLiquidity(from, step)

	case config.ActionRemoveLiquidity:
		return r.removeLiquidity(from, step)

	case config.ActionSwapExactIn:
		return r.swapExactIn(from, step)

	case config.ActionSwapExactOut:
		return r.swapExactOut(from, step)

	case config.ActionUpgradeRouter:
		routerAddress, err := r.x.DeployRouter(from)
		if err != nil {
			return "", err
		}
		index, err := r.x.ProposeRouter(from, routerAddress)
		if err != nil {
			return "", err
		}
		if err := r.x.ConfirmRouter(r.owner, index); err != nil {
			return "", err
		}
		return fmt.Sprintf("router %s confirmed through request %d", routerAddress.Hex(), index), nil

	case config.ActionSkim:
		if err := r.x.Skim(r.pairToken(step.Tokens[0]), r.pairToken(step.Tokens[1])); err != nil {
			return "", err
		}
		return "excess balances sent to the treasury", nil

	case config.ActionSync:
		if err := r.x.Sync(r.pairToken(step.Tokens[0]), r.pairToken(step.Tokens[1])); err != nil {
			return "", err
		}
		return "reserves synced to balances", nil
	}
	return "", fmt.Errorf("unknown action %q", step.Action)
}

func (r *runner) addLiquidity(from common.Address, step config.Step) (string, error) {
	amountA, err := amountOrZero(step.Amounts[0])
	if err != nil {
		return "", err
	}
	amountB, err := amountOrZero(step.Amounts[1])
	if err != nil {
		return "", err
	}
	tokenA, tokenB := step.Tokens[0], step.Tokens[1]
	if isNative(tokenA) {
		tokenA, tokenB = tokenB, tokenA
		amountA, amountB = amountB, amountA
	}

	var result router.LiquidityResult
	if isNative(tokenB) {
		result, err = r.x.AddLiquidityETH(from, router.AddLiquidityETHParams{
			Token: r.asset(tokenA), AmountTokenDesired: amountA,
			AmountTokenMin: new(uint256.Int), AmountETHMin: new(uint256.Int),
			Value: amountB, To: from, Deadline: r.deadline(),
		})
	} else {
		result, err = r.x.AddLiquidity(from, router.AddLiquidityParams{
			TokenA: r.asset(tokenA), TokenB: r.asset(tokenB),
			AmountADesired: amountA, AmountBDesired: amountB,
			AmountAMin: new(uint256.Int), AmountBMin: new(uint256.Int),
			To: from, Deadline: r.deadline(),
		})
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("deposited %s %s + %s %s for %s shares",
		formatUnits(result.AmountA, r.decimalsOf(r.asset(tokenA))), tokenA,
		formatUnits(result.AmountB, r.decimalsOf(r.asset(tokenB))), tokenB,
		result.Liquidity.Dec()), nil
}

func (r *runner) removeLiquidity(from common.Address, step config.Step) (string, error) {
	tokenA, tokenB := step.Tokens[0], step.Tokens[1]
	if isNative(tokenA) {
		tokenA, tokenB = tokenB, tokenA
	}
	pool, ok := r.indexed.GetByTokens(r.pairToken(tokenA), r.pairToken(tokenB))
	if !ok {
		return "", fmt.Errorf("no %s/%s pair", tokenA, tokenB)
	}
	shares := r.x.BalanceOf(pool.Address, from)
	var err error
	if step.Amount != config.AmountAll {
		if shares, err = amountOrZero(step.Amount); err != nil {
			return "", err
		}
	}

	var amountA, amountB *uint256.Int
	if isNative(tokenB) {
		amountA, amountB, err = r.x.RemoveLiquidityETH(from, router.RemoveLiquidityETHParams{
			Token: r.asset(tokenA), Liquidity: shares,
			AmountTokenMin: new(uint256.Int), AmountETHMin: new(uint256.Int),
			To: from, Deadline: r.deadline(),
		})
	} else {
		amountA, amountB, err = r.x.RemoveLiquidity(from, router.RemoveLiquidityParams{
			TokenA: r.asset(tokenA), TokenB: r.asset(tokenB), Liquidity: shares,
			AmountAMin: new(uint256.Int), AmountBMin: new(uint256.Int),
			To: from, Deadline: r.deadline(),
		})
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("redeemed %s shares for %s %s + %s %s",
		shares.Dec(),
		formatUnits(amountA, r.decimalsOf(r.asset(tokenA))), tokenA,
		formatUnits(amountB, r.decimalsOf(r.asset(tokenB))), tokenB), nil
}

func (r *runner) swapExactIn(from common.Address, step config.Step) (string, error) {
	amountIn, err := amountOrZero(step.Amount)
	if err != nil {
		return "", err
	}
	minOut, err := amountOrZero(step.Limit)
	if err != nil {
		return "", err
	}
	p := router.ExactInput{
		AmountIn:     amountIn,
		AmountOutMin: minOut,
		Path:         r.path(step.Path),
		To:           from,
		Deadline:     r.deadline(),
	}
	var result router.SwapResult
	switch {
	case isNative(step.Path[0]):
		result, err = r.x.SwapExactETHForTokens(from, p)
	case isNative(step.Path[len(step.Path)-1]):
		result, err = r.x.SwapExactTokensForETH(from, p)
	default:
		result, err = r.x.SwapExactTokensForTokens(from, p)
	}
	if err != nil {
		return "", err
	}
	return r.swapSummary(step.Path, result), nil
}

func (r *runner) swapExactOut(from common.Address, step config.Step) (string, error) {
	limit := r.x.BalanceOf(r.asset(step.Path[0]), from)
	var err error
	if step.Limit != "" {
		if limit, err = amountOrZero(step.Limit); err != nil {
			return "", err
		}
	}
	amountOut, err := amountOrZero(step.Amount)
	if err != nil {
		return "", err
	}
	p := router.ExactOutput{
		AmountOut:   amountOut,
		AmountInMax: limit,
		Path:        r.path(step.Path),
		To:          from,
		Deadline:    r.deadline(),
	}
	var result router.SwapResult
	switch {
	case isNative(step.Path[0]):
		result, err = r.x.SwapETHForExactTokens(from, p)
	case isNative(step.Path[len(step.Path)-1]):
		result, err = r.x.SwapTokensForExactETH(from, p)
	default:
		result, err = r.x.SwapTokensForExactTokens(from, p)
	}
	if err != nil {
		return "", err
	}
	return r.swapSummary(step.Path, result), nil
}

func (r *runner) swapSummary(path []string, result router.SwapResult) string {
	in, out := path[0], path[len(path)-1]
	return fmt.Sprintf("paid %s %s (fee %s) for %s %s over %d hop(s)",
		formatUnits(result.Input(), r.decimalsOf(r.asset(in))), in,
		formatUnits(result.Fee, r.decimalsOf(r.asset(in))),
		formatUnits(result.Output(), r.decimalsOf(r.asset(out))), out,
		len(result.Amounts)-1)
}

// refresh diffs the exchange's pools against the local view, patches the view
// and prints what changed.
func (r *runner) refresh() error {
	diff := uniswapv2.Differ(r.pools, r.x.Pools())
	patched, err := uniswapv2.Patcher(r.pools, diff)
	if err != nil {
		return err
	}
	r.pools = patched
	r.indexed = indexer.New().Index(patched)
	printPoolDiff(r, diff)
	return nil
}

// --- OUTPUT ---

func shortAddress(address common.Address) string {
	hex := address.Hex()
	return hex[:6] + ".." + hex[len(hex)-4:]
}

// formatUnits renders amount with decimals fractional digits, trailing zeros trimmed.
func formatUnits(amount *uint256.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	digits := amount.Dec()
	if decimals == 0 {
		return digits
	}
	if len(digits) <= int(decimals) {
		digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-int(decimals)], strings.TrimRight(digits[len(digits)-int(decimals):], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

func printDeployment(r *runner) {
	header("DEPLOYMENT")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "CONTRACT\tADDRESS\t")
	fmt.Fprintln(w, "--------\t-------\t")
	fmt.Fprintf(w, "Factory\t%s\t\n", r.x.Factory().Hex())
	fmt.Fprintf(w, "Governance\t%s\t\n", r.x.Governance().Hex())
	fmt.Fprintf(w, "WETH\t%s\t\n", r.x.WETH().Hex())
	fmt.Fprintf(w, "Router\t%s\t\n", r.x.Router().Hex())
	for _, t := range r.x.Tokens().All() {
		if t.Address == r.x.WETH() {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t\n", t.Symbol, t.Address.Hex())
	}
	w.Flush()
}

func (r *runner) pairName(p uniswapv2.Pool) string {
	return r.symbolOf(p.Token0) + "/" + r.symbolOf(p.Token1)
}

func printPoolDiff(r *runner, diff uniswapv2.UniswapV2SystemDiff) {
	if diff.IsEmpty() {
		fmt.Println(Gray + "No pool changes." + Reset)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CHANGE\tPAIR\tRESERVE0\tRESERVE1\tSHARES\tPRICE0\t")
	fmt.Fprintln(w, "------\t----\t--------\t--------\t------\t------\t")
	row := func(kind string, p uniswapv2.Pool) {
		price := "-"
		if rate, err := calculator.ExchangeRate(p.Reserve0, p.Reserve1, r.decimalsOf(p.Token0)); err == nil {
			price = formatUnits(rate, r.decimalsOf(p.Token1))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", kind, r.pairName(p),
			formatUnits(p.Reserve0, r.decimalsOf(p.Token0)),
			formatUnits(p.Reserve1, r.decimalsOf(p.Token1)),
			formatUnits(p.TotalSupply, 18), price)
	}
	for _, p := range diff.Additions {
		row(Green+"new"+Reset, p)
	}
	for _, p := range diff.Updates {
		row(Yellow+"upd"+Reset, p)
	}
	w.Flush()
}

func printBalances(r *runner) {
	header("BALANCES")
	assets := []common.Address{state.NativeAsset}
	for _, t := range r.x.Tokens().All() {
		assets = append(assets, t.Address)
	}
	holders := append([]string{}, r.names...)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprint(w, "ACCOUNT\t")
	for _, a := range assets {
		fmt.Fprintf(w, "%s\t", r.symbolOf(a))
	}
	fmt.Fprintln(w)
	printRow := func(name string, account common.Address) {
		fmt.Fprintf(w, "%s\t", name)
		for _, a := range assets {
			fmt.Fprintf(w, "%s\t", formatUnits(r.x.BalanceOf(a, account), r.decimalsOf(a)))
		}
		fmt.Fprintln(w)
	}
	for _, name := range holders {
		printRow(name, r.accounts[name])
	}
	if r.cfg.Treasury != "" {
		printRow("treasury", common.HexToAddress(r.cfg.Treasury))
	}
	w.Flush()

	if len(r.pools) == 0 {
		return
	}
	header("POOLS")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PAIR\tADDRESS\tRESERVE0\tRESERVE1\tSHARES\t")
	for _, p := range r.indexed.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", r.pairName(p), shortAddress(p.Address),
			formatUnits(p.Reserve0, r.decimalsOf(p.Token0)),
			formatUnits(p.Reserve1, r.decimalsOf(p.Token1)),
			formatUnits(p.TotalSupply, 18))
	}
	w.Flush()
}
