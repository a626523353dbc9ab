package datamark

import "regexp"

// SuspiciousMatch records which detection rule fired and the substring that
// triggered it, for diagnostics and audit logging.
type SuspiciousMatch struct {
	Pattern string `json:"pattern"`
	Matched string `json:"matched"`
}

// DetectionResult is the outcome of scanning one text item.
type DetectionResult struct {
	Suspicious bool              `json:"suspicious"`
	Matches    []SuspiciousMatch `json:"matches,omitempty"`
}

type detectionRule struct {
	name string
	re   *regexp.Regexp
}

func rule(name, pattern string) detectionRule {
	return detectionRule{name: name, re: regexp.MustCompile(`(?i)` + pattern)}
}

// detectionRules is the fixed, ordered rule list. Grouped by phrasing
// family; each entry is a short idiomatic phrasing rather than an attempt
// at precise matching.
var detectionRules = []detectionRule{
	// Instruction-override phrasing
	rule("instruction-override", `ignore\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+(instructions|prompts|directives|rules)`),
	rule("instruction-override", `disregard\s+(all\s+|any\s+)?(your|the|previous|prior)\s+(instructions|rules|guidelines)`),
	rule("instruction-override", `forget\s+(everything|all\s+previous|your\s+(instructions|training))`),
	rule("instruction-override", `new\s+instructions?\s*:`),
	rule("instruction-override", `do\s+not\s+(follow|obey)\s+(the|your|any)\s+(previous|original|above)`),

	// Role-play and system-prompt phrasing
	rule("role-override", `you\s+are\s+now\s+`),
	rule("role-override", `act\s+as\s+(a|an|the)\s+`),
	rule("role-override", `pretend\s+(to\s+be|you\s+are)`),
	rule("role-override", `assume\s+the\s+role\s+of`),
	rule("role-override", `system\s*prompt`),
	rule("role-override", `\[\s*system\s*\]`),

	// Tool, shell, and command invocation phrasing
	rule("command-invocation", `run\s+(the\s+)?(following\s+)?(command|shell|script)`),
	rule("command-invocation", `execute\s+(the\s+)?(following\s+)?(command|script|code)`),
	rule("command-invocation", `sudo\s+\S`),
	rule("command-invocation", `rm\s+-rf`),
	rule("command-invocation", `(curl|wget)\s+https?://`),

	// Data-exfiltration phrasing
	rule("exfiltration", `(send|forward|share)\s+(me\s+|us\s+)?(all\s+|your\s+|the\s+)?(passwords?|credentials?|secrets?|tokens?|api\s+keys?)`),
	rule("exfiltration", `forward\s+(all|every)\s+(emails?|messages?)`),
	rule("exfiltration", `exfiltrat`),
	rule("exfiltration", `post\s+\S+\s+to\s+https?://`),

	// Encoding and obfuscation markers
	rule("obfuscation", `base64\s*(decode|encode|:)`),
	rule("obfuscation", `decode\s+(this|the\s+following)`),
	rule("obfuscation", `rot13`),
	rule("obfuscation", `\\u00[0-9a-f]{2}`),

	// Protocol-specific tool-call phrasing
	rule("tool-call", `tools/call`),
	rule("tool-call", `(tool|function)_call`),
	rule("tool-call", `invoke\s+the\s+\S+\s+tool`),
	rule("tool-call", `use\s+the\s+\S+\s+tool\s+to`),
}

// DetectSuspicious scans text against every detection rule and reports all
// matches, not just the first, so callers get full diagnostics. Pure
// function; matching is case-insensitive.
func DetectSuspicious(text string) DetectionResult {
	var result DetectionResult
	for _, r := range detectionRules {
		if matched := r.re.FindString(text); matched != "" {
			result.Suspicious = true
			result.Matches = append(result.Matches, SuspiciousMatch{
				Pattern: r.name,
				Matched: matched,
			})
		}
	}
	return result
}
