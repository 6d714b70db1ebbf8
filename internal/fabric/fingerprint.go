package fabric

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/gowebpki/jcs"
)

// Fingerprint builds the canonical cache key for one capability request:
// lower-cased tool and capability, the upper-cased symbol when present, and
// the first 8 hex chars of a SHA-256 over the RFC 8785 canonical form of
// the params document. Semantically equal param sets produce the same key
// regardless of map ordering or number formatting.
func Fingerprint(tool, capability string, params map[string]any) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(tool))
	b.WriteByte(':')
	b.WriteString(strings.ToLower(capability))
	if s, ok := params["symbol"].(string); ok && s != "" {
		b.WriteByte(':')
		b.WriteString(strings.ToUpper(s))
	}
	b.WriteByte(':')
	b.WriteString(hashParams(params)[:8])
	return b.String()
}

func hashParams(params map[string]any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte("{}")
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		canon = raw
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:])
}
