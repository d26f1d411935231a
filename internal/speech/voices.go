package speech

import "strings"

// DefaultVoice is used when the requested voice is unknown or empty.
const DefaultVoice = "alloy"

// voiceMap translates the product's display voices onto the provider's
// voice identifiers. Legacy provider names are accepted as aliases so
// clients built against the old API keep working.
var voiceMap = map[string]string{
	"sarah":  "alloy",
	"emma":   "echo",
	"olivia": "nova",
	"james":  "onyx",
	"liam":   "onyx",
	"noah":   "onyx",

	// legacy aliases
	"alloy":   "alloy",
	"echo":    "echo",
	"fable":   "fable",
	"nova":    "nova",
	"onyx":    "onyx",
	"shimmer": "shimmer",
}

// ResolveVoice maps a requested voice name to a provider voice ID.
func ResolveVoice(name string) string {
	if v, ok := voiceMap[strings.ToLower(strings.TrimSpace(name))]; ok {
		return v
	}
	return DefaultVoice
}
