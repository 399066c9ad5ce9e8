package session

import (
	"sort"
	"strings"

	"github.com/quayside-data/lakehouse/internal/engine"
)

// Secret is a DuckDB secret created on each connection.
type Secret struct {
	Name    string
	Type    string
	Options map[string]string
}

// Statement renders CREATE SECRET IF NOT EXISTS with options in key order.
// Boolean values are emitted bare, everything else as string literals.
func (s Secret) Statement() string {
	keys := make([]string, 0, len(s.Options))
	for k := range s.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := []string{"TYPE " + strings.ToUpper(s.Type)}
	for _, k := range keys {
		parts = append(parts, strings.ToUpper(k)+" "+secretValue(s.Options[k]))
	}
	return "CREATE SECRET IF NOT EXISTS " + engine.QuoteIdent(s.Name) + " (" + strings.Join(parts, ", ") + ")"
}

func secretValue(v string) string {
	switch strings.ToLower(v) {
	case "true", "false":
		return strings.ToLower(v)
	}
	return engine.QuoteString(v)
}

func sortedSecrets(secrets []Secret) []Secret {
	out := append([]Secret(nil), secrets...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
