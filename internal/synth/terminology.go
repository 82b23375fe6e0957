package synth

import "strings"

// applyTerminology enforces the configured preferred-term substitution table.
// It is purely string substitution and never touches [K] citation tokens,
// since vocabulary keys are clinical terms, not the literal "[" / "]" glyphs.
func (s *Synthesizer) applyTerminology(answer string) string {
	if len(s.vocabulary) == 0 {
		return answer
	}
	for from, to := range s.vocabulary {
		answer = strings.ReplaceAll(answer, from, to)
	}
	return answer
}
