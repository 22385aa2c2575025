package patcher

// OriginalDomain is the base domain embedded in shipped client artifacts.
// It is exactly 10 characters, which is what the direct/split boundary in
// PlanFor keys off.
const OriginalDomain = "hytale.com"

// SubdomainPrefixes are the prefix literals hardcoded as separate string
// constants at client call sites. In split mode each one is rewritten to the
// new 6 character prefix.
var SubdomainPrefixes = []string{"sessions.", "telemetry.", "account.", "api."}

// Mode selects the rewrite strategy for a target domain.
type Mode string

const (
	// ModeDirect replaces the base domain literal with the target domain.
	// Valid when the target fits in the original's 10 bytes; prefix
	// literals stay untouched because they remain valid prefixes.
	ModeDirect Mode = "direct"

	// ModeSplit is used for targets longer than 10 characters: the first 6
	// characters become the new subdomain prefix, the remainder replaces
	// the base domain, and each known prefix literal is rewritten to the
	// new prefix so that prefix+base still concatenates to the target.
	ModeSplit Mode = "split"
)

// Plan is the concrete set of rewrites derived from a target domain.
type Plan struct {
	Mode            Mode
	TargetDomain    string
	MainDomain      string // replacement for the base domain literal
	SubdomainPrefix string // replacement for prefix literals, split mode only
}

// PlanFor derives the rewrite plan for target. Targets of 10 characters or
// fewer use direct mode; longer targets split at the fixed 6 character
// boundary.
func PlanFor(target string) Plan {
	if len(target) <= len(OriginalDomain) {
		return Plan{Mode: ModeDirect, TargetDomain: target, MainDomain: target}
	}
	return Plan{
		Mode:            ModeSplit,
		TargetDomain:    target,
		MainDomain:      target[6:],
		SubdomainPrefix: target[:6],
	}
}
