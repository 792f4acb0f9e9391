package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

// Step actions understood by the console.
const (
	ActionTransfer        = "transfer"
	ActionAddLiquidity    = "addLiquidity"
	ActionRemoveLiquidity = "removeLiquidity"
	ActionSwapExactIn     = "swapExactIn"
	ActionSwapExactOut    = "swapExactOut"
	ActionUpgradeRouter   = "upgradeRouter"
	ActionSkim            = "skim"
	ActionSync            = "sync"
)

// Reserved symbols. WETH names the wrapped native asset, ETH the native coin
// itself (only valid at either end of a swap path or in liquidity steps).
const (
	SymbolWETH   = "WETH"
	SymbolNative = "ETH"
	// AccountOwner names the deployer of the core contracts.
	AccountOwner = "owner"
	// AmountAll redeems every share the account holds.
	AmountAll = "all"
)

var knownActions = mapset.NewThreadUnsafeSet(
	ActionTransfer, ActionAddLiquidity, ActionRemoveLiquidity, ActionSwapExactIn,
	ActionSwapExactOut, ActionUpgradeRouter, ActionSkim, ActionSync,
)

// ConsoleConfig describes a scenario: who exists, which tokens they hold and
// the steps to run against a fresh exchange.
type ConsoleConfig struct {
	Owner    string        `yaml:"owner"`
	Treasury string        `yaml:"treasury"`
	LogLevel string        `yaml:"logLevel"`
	Deadline time.Duration `yaml:"deadline"`
	Accounts []Account     `yaml:"accounts"`
	Tokens   []Token       `yaml:"tokens"`
	Steps    []Step        `yaml:"steps"`
}

type Account struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	// Native is the native coin credited to the account at start.
	Native string `yaml:"native"`
}

type Token struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
	Supply   string `yaml:"supply"`
	// Holder receives the whole supply. Defaults to the owner.
	Holder string `yaml:"holder"`
	// Allocations are transferred from the holder once the token exists.
	Allocations map[string]string `yaml:"allocations"`
}

// Step is one action of the scenario. Which fields apply depends on Action:
//
//	transfer         From, To, Token, Amount
//	addLiquidity     From, Tokens (two symbols, ETH allowed), Amounts
//	removeLiquidity  From, Tokens, Amount (shares or "all")
//	swapExactIn      From, Path, Amount (in), Limit (minimum out)
//	swapExactOut     From, Path, Amount (out), Limit (maximum in)
//	upgradeRouter    From (proposer)
//	skim, sync       Tokens
type Step struct {
	Action  string   `yaml:"action"`
	From    string   `yaml:"from"`
	To      string   `yaml:"to"`
	Token   string   `yaml:"token"`
	Tokens  []string `yaml:"tokens"`
	Path    []string `yaml:"path"`
	Amount  string   `yaml:"amount"`
	Amounts []string `yaml:"amounts"`
	Limit   string   `yaml:"limit"`
}

// LoadConfig reads and validates the scenario at path.
func LoadConfig(path string) (*ConsoleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*ConsoleConfig, error) {
	cfg := &ConsoleConfig{
		LogLevel: "info",
		Deadline: 20 * time.Minute,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ConsoleConfig) validate() error {
	if !common.IsHexAddress(c.Owner) || common.HexToAddress(c.Owner) == (common.Address{}) {
		return fmt.Errorf("config: owner %q is not a non-zero address", c.Owner)
	}
	if c.Treasury != "" && !common.IsHexAddress(c.Treasury) {
		return fmt.Errorf("config: treasury %q is not an address", c.Treasury)
	}
	if c.Deadline <= 0 {
		return errors.New("config: deadline must be positive")
	}

	accounts := mapset.NewThreadUnsafeSet(AccountOwner)
	for _, a := range c.Accounts {
		if !accounts.Add(a.Name) {
			return fmt.Errorf("config: duplicate account %q", a.Name)
		}
		if !common.IsHexAddress(a.Address) {
			return fmt.Errorf("config: account %q has invalid address %q", a.Name, a.Address)
		}
		if a.Native != "" {
			if _, err := ParseAmount(a.Native); err != nil {
				return fmt.Errorf("config: account %q: %w", a.Name, err)
			}
		}
	}

	symbols := mapset.NewThreadUnsafeSet(SymbolWETH, SymbolNative)
	for _, t := range c.Tokens {
		if !symbols.Add(strings.ToUpper(t.Symbol)) {
			return fmt.Errorf("config: duplicate token symbol %q", t.Symbol)
		}
		if _, err := ParseAmount(t.Supply); err != nil {
			return fmt.Errorf("config: token %q: %w", t.Symbol, err)
		}
		if t.Holder != "" && !accounts.Contains(t.Holder) {
			return fmt.Errorf("config: token %q: unknown holder %q", t.Symbol, t.Holder)
		}
		for name, amount := range t.Allocations {
			if !accounts.Contains(name) {
				return fmt.Errorf("config: token %q: unknown account %q", t.Symbol, name)
			}
			if _, err := ParseAmount(amount); err != nil {
				return fmt.Errorf("config: token %q allocation to %q: %w", t.Symbol, name, err)
			}
		}
	}

	for i, s := range c.Steps {
		if err := s.validate(accounts, symbols); err != nil {
			return fmt.Errorf("config: step %d (%s): %w", i+1, s.Action, err)
		}
	}
	return nil
}

func (s Step) validate(accounts, symbols mapset.Set[string]) error {
	if !knownActions.Contains(s.Action) {
		return errors.New("unknown action")
	}
	if s.From != "" && !accounts.Contains(s.From) {
		return fmt.Errorf("unknown account %q", s.From)
	}
	if s.To != "" && !accounts.Contains(s.To) {
		return fmt.Errorf("unknown account %q", s.To)
	}
	for _, symbol := range append(append([]string{}, s.Tokens...), s.Path...) {
		if !symbols.Contains(strings.ToUpper(symbol)) {
			return fmt.Errorf("unknown token %q", symbol)
		}
	}
	amounts := append([]string{}, s.Amounts...)

	switch s.Action {
	case ActionTransfer:
		if s.To == "" || !symbols.Contains(strings.ToUpper(s.Token)) {
			return errors.New("transfer needs a known token and a recipient")
		}
		amounts = append(amounts, s.Amount)
	case ActionAddLiquidity:
		if len(s.Tokens) != 2 || len(s.Amounts) != 2 {
			return errors.New("needs two tokens and two amounts")
		}
	case ActionRemoveLiquidity:
		if len(s.Tokens) != 2 {
			return errors.New("needs two tokens")
		}
		if s.Amount != AmountAll {
			amounts = append(amounts, s.Amount)
		}
	case ActionSwapExactIn, ActionSwapExactOut:
		if len(s.Path) < 2 {
			return errors.New("path needs at least two tokens")
		}
		for _, symbol := range s.Path[1 : len(s.Path)-1] {
			if strings.EqualFold(symbol, SymbolNative) {
				return errors.New("native coin may only start or end a path")
			}
		}
		amounts = append(amounts, s.Amount)
		if s.Limit != "" {
			amounts = append(amounts, s.Limit)
		}
	case ActionSkim, ActionSync:
		if len(s.Tokens) != 2 {
			return errors.New("needs two tokens")
		}
	}

	for _, amount := range amounts {
		if _, err := ParseAmount(amount); err != nil {
			return err
		}
	}
	return nil
}

// ParseAmount parses a base-unit amount written either as a plain integer
// ("1000") or in exponent form ("25e18", "1.5e18").
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if s == "" {
		return nil, errors.New("empty amount")
	}
	mantissa, exponent := s, uint64(0)
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.ParseUint(s[i+1:], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid exponent in amount %q", s)
		}
		mantissa, exponent = s[:i], e
	}
	if exponent > 77 {
		return nil, fmt.Errorf("amount %q overflows 256 bits", s)
	}
	if whole, frac, ok := strings.Cut(mantissa, "."); ok {
		frac = strings.TrimRight(frac, "0")
		if uint64(len(frac)) > exponent {
			return nil, fmt.Errorf("amount %q is not a whole number of base units", s)
		}
		mantissa, exponent = whole+frac, exponent-uint64(len(frac))
	}
	amount, err := uint256.FromDecimal(mantissa)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(exponent))
	if _, overflow := amount.MulOverflow(amount, scale); overflow {
		return nil, fmt.Errorf("amount %q overflows 256 bits", s)
	}
	return amount, nil
}
