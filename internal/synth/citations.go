package synth

import (
	"regexp"
	"strconv"
)

// citationPattern matches an inline [K] reference.
var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// repairCitations scans answer for [K] tokens, drops any whose K falls
// outside [1..n], and — if no valid citation remains after repair but n≥1 —
// appends a deterministic [1] reference tail.
func repairCitations(answer string, n int) string {
	if n == 0 {
		return citationPattern.ReplaceAllString(answer, "")
	}

	hasValid := false
	repaired := citationPattern.ReplaceAllStringFunc(answer, func(match string) string {
		k, err := strconv.Atoi(citationPattern.FindStringSubmatch(match)[1])
		if err != nil || k < 1 || k > n {
			return ""
		}
		hasValid = true
		return match
	})

	if !hasValid {
		repaired = appendReferenceTail(repaired)
	}
	return repaired
}

// appendReferenceTail appends a deterministic [1] citation to the end of the
// final sentence, used when citation repair leaves zero valid tokens.
func appendReferenceTail(answer string) string {
	trimmed := trimTrailingSpace(answer)
	if trimmed == "" {
		return "[1]"
	}
	last := trimmed[len(trimmed)-1]
	if last == '.' || last == '!' || last == '?' {
		return trimmed[:len(trimmed)-1] + " [1]" + string(last)
	}
	return trimmed + " [1]"
}

func trimTrailingSpace(s string) string {
	i := len(s)
	for i > 0 && (s[i-1] == ' ' || s[i-1] == '\n' || s[i-1] == '\t') {
		i--
	}
	return s[:i]
}
