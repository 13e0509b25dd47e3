// Package scapeid canonicalizes scape names typed on the command line or
// stored in experiment files.
package scapeid

import "strings"

const (
	Quadruped = "quadruped"
	TwoLimb   = "two-limb"
)

// aliases are keyed by the name with every separator removed.
var aliases = map[string]string{
	"quadruped": Quadruped,
	"quad":      Quadruped,
	"fourlimb":  Quadruped,
	"full":      Quadruped,
	"twolimb":   TwoLimb,
	"onlyerror": TwoLimb,
	"front":     TwoLimb,
	"frontpair": TwoLimb,
}

var separators = strings.NewReplacer("_", "-", " ", "-")

// Normalize maps a scape name or alias to its canonical form. A "scape-"
// prefix and a "-sim" suffix are ignored. Unknown names are returned
// lower-cased and dash-separated.
func Normalize(name string) string {
	normalized := strings.Trim(separators.Replace(strings.ToLower(strings.TrimSpace(name))), "-")
	if normalized == "" {
		return ""
	}
	bare := strings.TrimSuffix(strings.TrimPrefix(normalized, "scape-"), "-sim")
	for _, candidate := range []string{normalized, bare} {
		if canonical, ok := aliases[strings.ReplaceAll(candidate, "-", "")]; ok {
			return canonical
		}
	}
	return normalized
}
