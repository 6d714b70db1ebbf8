// Package main is the entry point for the Market Gateway.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
)

const (
	// Version is set at build time via ldflags
	Version = "v0.3.0"

	serviceName = "market-gateway"
)

// ANSI color codes
const (
	gatewayTeal = "\033[38;2;13;148;136m" // #0d9488
	bold        = "\033[1m"
	reset       = "\033[0m"
)

// ASCII banner for startup
const banner = `
 ███╗   ███╗ █████╗ ██████╗ ██╗  ██╗███████╗████████╗   ██████╗  █████╗ ████████╗███████╗██╗    ██╗ █████╗ ██╗   ██╗
 ████╗ ████║██╔══██╗██╔══██╗██║ ██╔╝██╔════╝╚══██╔══╝  ██╔════╝ ██╔══██╗╚══██╔══╝██╔════╝██║    ██║██╔══██╗╚██╗ ██╔╝
 ██╔████╔██║███████║██████╔╝█████╔╝ █████╗     ██║     ██║  ███╗███████║   ██║   █████╗  ██║ █╗ ██║███████║ ╚████╔╝
 ██║╚██╔╝██║██╔══██║██╔══██╗██╔═██╗ ██╔══╝     ██║     ██║   ██║██╔══██║   ██║   ██╔══╝  ██║███╗██║██╔══██║  ╚██╔╝
 ██║ ╚═╝ ██║██║  ██║██║  ██║██║  ██╗███████╗   ██║     ╚██████╔╝██║  ██║   ██║   ███████╗╚███╔███╔╝██║  ██║   ██║
 ╚═╝     ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝   ╚═╝      ╚═════╝ ╚═╝  ╚═╝   ╚═╝   ╚══════╝ ╚══╝╚══╝ ╚═╝  ╚═╝   ╚═╝
`

func printBanner() {
	fmt.Print(gatewayTeal + bold + banner + reset + "\n")
}

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// Try loading from ~/.config/market-gateway/.env first
	configEnv := filepath.Join(homeDir, ".config", "market-gateway", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Also load local .env (can override)
	_ = godotenv.Load()
}

func main() {
	// Handle subcommands first (before flags)
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve", "start":
			runServe(os.Args[2:])
			return
		case "init":
			runInit(os.Args[2:])
			return
		case "version", "-v", "--version":
			PrintVersion()
			return
		case "help", "-h", "--help":
			printHelp()
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
			printHelp()
			os.Exit(1)
		}
	}

	// Default: serve over HTTP
	runServe(os.Args[1:])
}

// PrintVersion prints the current version
func PrintVersion() {
	printBanner()
	fmt.Printf("market-gateway %s\n", Version)
	fmt.Printf("Runtime: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp prints usage information
func printHelp() {
	printBanner()
	fmt.Println("Market Gateway - multi-source market data with provenance")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  market-gateway [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  (none)       Start the gateway over HTTP (same as serve)")
	fmt.Println("  serve        Start the gateway server")
	fmt.Println("  init         Interactive setup: provider API keys into .env")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Serve Options:")
	fmt.Println("  --transport MODE     http (default) or stdio")
	fmt.Println("  --config FILE        Config file (default: search, then embedded)")
	fmt.Println("  --debug              Enable debug logging")
	fmt.Println("  --no-banner          Suppress startup banner")
	fmt.Println()
	fmt.Println("Config resolution order:")
	fmt.Println("  --config flag, MARKET_GATEWAY_CONFIG env,")
	fmt.Println("  ~/.config/market-gateway/gateway.yaml, ./configs/gateway.yaml,")
	fmt.Println("  embedded default")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  market-gateway serve                         REST API on the configured port")
	fmt.Println("  market-gateway serve --transport stdio       Line-delimited JSON-RPC for agent hosts")
	fmt.Println("  market-gateway serve --config ./my.yaml      Custom config file")
	fmt.Println("  market-gateway init                          Set up provider API keys")
}
