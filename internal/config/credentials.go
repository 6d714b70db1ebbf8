package config

import (
	"os"
	"strings"
)

// Credential returns the API key and secret for a provider from
// <PROVIDER>_API_KEY and <PROVIDER>_API_SECRET. Either may be empty.
func Credential(provider string) (key, secret string) {
	prefix := strings.ToUpper(strings.ReplaceAll(provider, "-", "_"))
	return os.Getenv(prefix + "_API_KEY"), os.Getenv(prefix + "_API_SECRET")
}
