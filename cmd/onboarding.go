package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/quantfab/market-gateway/internal/config"
)

// keyedSource is one provider the wizard can store a credential for.
type keyedSource struct {
	Provider string // source name as it appears in chains
	EnvKey   string // environment variable the gateway reads
	Hint     string // where to get a key
	Secret   string // optional companion secret variable
}

// keyedSources lists every provider that accepts an API key. Keyless
// providers are not listed; the gateway runs without any of these, just
// with shorter fallback chains.
var keyedSources = []keyedSource{
	{Provider: "coinmarketcap", EnvKey: "COINMARKETCAP_API_KEY", Hint: "https://pro.coinmarketcap.com/account"},
	{Provider: "cryptocompare", EnvKey: "CRYPTOCOMPARE_API_KEY", Hint: "https://www.cryptocompare.com/cryptopian/api-keys"},
	{Provider: "etherscan", EnvKey: "ETHERSCAN_API_KEY", Hint: "https://etherscan.io/myapikey"},
	{Provider: "goplus", EnvKey: "GOPLUS_API_KEY", Hint: "https://gopluslabs.io/security-api", Secret: "GOPLUS_API_SECRET"},
	{Provider: "github", EnvKey: "GITHUB_API_KEY", Hint: "https://github.com/settings/tokens"},
	{Provider: "fred", EnvKey: "FRED_API_KEY", Hint: "https://fred.stlouisfed.org/docs/api/api_key.html"},
	{Provider: "cryptopanic", EnvKey: "CRYPTOPANIC_API_KEY", Hint: "https://cryptopanic.com/developers/api/"},
}

// runInit interactively collects provider API keys and writes them to an
// .env file the gateway loads at startup. Credentials never go into YAML.
func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	global := fs.Bool("global", false, "write to ~/.config/market-gateway/.env instead of ./.env")
	_ = fs.Parse(args)

	printBanner()
	printHeader("Market Gateway Setup")
	fmt.Println("  Every key is optional. Sources without one are skipped at startup")
	fmt.Println("  and their chains fall through to keyless providers.")
	fmt.Println("  Input is hidden; press Enter to skip a provider.")

	envPath := ".env"
	if *global {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			printError(fmt.Sprintf("cannot resolve home directory: %v", err))
			os.Exit(1)
		}
		envPath = filepath.Join(homeDir, ".config", "market-gateway", ".env")
	}

	saved := 0
	for _, src := range keyedSources {
		if existing := os.Getenv(src.EnvKey); existing != "" {
			printInfo(fmt.Sprintf("%s: %s already set (%s)", src.Provider, src.EnvKey, maskKey(existing)))
			continue
		}

		fmt.Printf("\n  %s - keys at %s\n", src.Provider, src.Hint)
		key := promptSecret(fmt.Sprintf("  %s: ", src.EnvKey))
		if key == "" {
			continue
		}
		appendToEnvFile(envPath, src.EnvKey, key)
		saved++

		if src.Secret != "" {
			if secret := promptSecret(fmt.Sprintf("  %s: ", src.Secret)); secret != "" {
				appendToEnvFile(envPath, src.Secret, secret)
			}
		}
		printSuccess(src.Provider + " configured")
	}

	fmt.Println()
	if saved == 0 {
		printInfo("No keys entered - the gateway runs on keyless sources only")
	} else {
		printSuccess(fmt.Sprintf("%d credential(s) written to %s", saved, envPath))
	}

	verifyConfig()

	fmt.Println()
	fmt.Println("  Start the gateway with: market-gateway serve")
}

// verifyConfig resolves and parses the effective configuration so a broken
// setup surfaces here rather than on first serve.
func verifyConfig() {
	data, source, err := resolveConfig("")
	if err != nil {
		printWarn("no configuration found: " + err.Error())
		return
	}
	if _, err := config.LoadFromBytes(data); err != nil {
		printError(fmt.Sprintf("configuration %s is invalid: %v", source, err))
		os.Exit(1)
	}
	printSuccess("configuration OK (" + source + ")")
}

// promptSecret prompts for a credential with hidden input. Falls back to a
// plain read when stdin is not a terminal (piped setup scripts).
func promptSecret(prompt string) string {
	fmt.Print(prompt)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println() // New line after hidden input
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// maskKey shortens a credential for display.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// appendToEnvFile appends or updates a key=value pair in an .env file.
func appendToEnvFile(envPath, key, value string) {
	// Ensure directory exists
	dir := filepath.Dir(envPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		printWarn(fmt.Sprintf("Could not create directory %s: %v", dir, err))
		return
	}

	// Read existing content
	var lines []string
	found := false

	file, err := os.Open(envPath)
	if err == nil {
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				// Update existing line
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				found = true
			} else {
				lines = append(lines, line)
			}
		}
		file.Close()
	}

	// Append if not found
	if !found {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}

	// Write back
	output := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(envPath, []byte(output), 0600); err != nil {
		printWarn(fmt.Sprintf("Could not write to %s: %v", envPath, err))
	}
}

// Print helper functions for consistent output formatting.
func printHeader(title string) {
	fmt.Printf("\033[1m\033[0;36m========================================\033[0m\n")
	fmt.Printf("\033[1m\033[0;36m       %s\033[0m\n", title)
	fmt.Printf("\033[1m\033[0;36m========================================\033[0m\n")
	fmt.Println()
}

func printSuccess(msg string) {
	fmt.Printf("\033[0;32m[OK]\033[0m %s\n", msg)
}

func printInfo(msg string) {
	fmt.Printf("\033[0;34m[INFO]\033[0m %s\n", msg)
}

func printWarn(msg string) {
	fmt.Printf("\033[1;33m[WARN]\033[0m %s\n", msg)
}

func printError(msg string) {
	fmt.Printf("\033[0;31m[ERROR]\033[0m %s\n", msg)
}
