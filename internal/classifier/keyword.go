package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sovadina/consult-gateway/internal/workflow"
)

// Keyword sets are small, closed, lower-cased, diacritic-stripped token
// lists. Czech terms are included alongside English since the upstream
// corpora and registry this gateway fronts are primarily Czech-language.
var (
	drugKeywords = map[string]struct{}{
		"drug": {}, "medication": {}, "dose": {}, "dosage": {}, "interaction": {},
		"contraindication": {}, "contraindications": {}, "reimbursement": {},
		"lek": {}, "leky": {}, "davkovani": {}, "interakce": {}, "kontraindikace": {},
		"uhrada": {}, "metforminu": {}, "metformin": {},
	}

	researchKeywords = map[string]struct{}{
		"study": {}, "studies": {}, "trial": {}, "research": {}, "evidence": {},
		"publication": {}, "meta-analysis": {},
		"studie": {}, "vyzkum": {}, "vyzkumu": {}, "studii": {}, "dukazy": {},
	}

	guidelineKeywords = map[string]struct{}{
		"guideline": {}, "guidelines": {}, "protocol": {}, "recommendation": {},
		"recommendations": {},
		"doporuceni": {}, "postup": {}, "postupy": {}, "smernice": {},
	}
)

// diacriticStripper decomposes runes and drops combining marks, so "studií" and
// "studii" (with or without diacritics) normalize to the same ASCII token.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalizeToken(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

func tokenize(utterance string) []string {
	fields := strings.FieldsFunc(utterance, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, normalizeToken(f))
	}
	return tokens
}

func matchesAny(tokens []string, set map[string]struct{}) bool {
	for _, tok := range tokens {
		if _, ok := set[tok]; ok {
			return true
		}
	}
	return false
}

// KeywordRoute is the canonical, deterministic routing function: the single
// source of truth both for the fallback tier and for tier-1 model-path
// rejection. Matching is whole-token, case-insensitive, diacritic-insensitive.
// Priority: drug > research > guideline > general.
func KeywordRoute(utterance string) workflow.DispatchPlan {
	tokens := tokenize(utterance)

	switch {
	case matchesAny(tokens, drugKeywords):
		return workflow.DispatchPlan{Entries: []workflow.PlanEntry{
			{Agent: workflow.AgentDrug, SubQuery: workflow.DrugQuery{Term: utterance}},
		}}
	case matchesAny(tokens, researchKeywords):
		return workflow.DispatchPlan{Entries: []workflow.PlanEntry{
			{Agent: workflow.AgentLiterature, SubQuery: workflow.ResearchQuery{Term: utterance}},
		}}
	case matchesAny(tokens, guidelineKeywords):
		return workflow.DispatchPlan{Entries: []workflow.PlanEntry{
			{Agent: workflow.AgentGuideline, SubQuery: workflow.GuidelineQuery{Term: utterance}},
		}}
	default:
		return workflow.GeneralFallback(utterance)
	}
}
