package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/defistate/defistate-amm-go/cmd/console/config"
	"github.com/defistate/defistate-amm-go/exchange"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// --- VISUAL CONSTANTS ---
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}
	rootLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	x, err := exchange.New(exchange.Config{
		Owner:    common.HexToAddress(cfg.Owner),
		Treasury: common.HexToAddress(cfg.Treasury),
		Registry: prometheus.NewRegistry(),
		Logger:   rootLogger.With("component", "exchange"),
	})
	if err != nil {
		rootLogger.Error("Failed to deploy exchange", "error", err)
		os.Exit(1)
	}

	r := newRunner(cfg, x, rootLogger.With("component", "console"))
	if err := r.setup(); err != nil {
		rootLogger.Error("Failed to set up scenario", "error", err)
		os.Exit(1)
	}
	printDeployment(r)

	failed := 0
	for i, step := range cfg.Steps {
		title := fmt.Sprintf("STEP %d: %s", i+1, strings.ToUpper(step.Action))
		header(title)
		summary, err := r.run(step)
		if err != nil {
			failed++
			fmt.Printf("%s[REVERTED]%s %v\n", Red, Reset, err)
		} else {
			fmt.Printf("%s[OK]%s %s\n", Green, Reset, summary)
		}
		if err := r.refresh(); err != nil {
			rootLogger.Error("Failed to patch pool view", "error", err)
			os.Exit(1)
		}
	}

	printBalances(r)
	fmt.Printf("\n%sSteps: %d, reverted: %d%s\n", Bold, len(cfg.Steps), failed, Reset)
}

func loadConfig() (*config.ConsoleConfig, error) {
	configPath := flag.String("config", "scenario.yaml", "Path to the scenario file.")
	flag.Parse()
	log.Printf("Loading scenario from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
