package classifier

import (
	"testing"

	"github.com/sovadina/consult-gateway/internal/workflow"
)

func TestKeywordRoute_Totality(t *testing.T) {
	utterances := []string{
		"",
		"hello there",
		"jaké jsou kontraindikace metforminu?",
		"nejnovější studie o SGLT2 u srdečního selhání",
		"ESC doporučené postupy pro hypertenzi",
		"random unrelated text with no signal at all",
	}
	for _, u := range utterances {
		plan := KeywordRoute(u)
		if len(plan.Entries) == 0 {
			t.Errorf("KeywordRoute(%q) returned empty plan", u)
		}
	}
}

func TestKeywordRoute_DrugPriority(t *testing.T) {
	plan := KeywordRoute("studie o metforminu")
	if len(plan.Entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(plan.Entries))
	}
	if plan.Entries[0].Agent != workflow.AgentDrug {
		t.Errorf("expected drug agent (priority over research), got %v", plan.Entries[0].Agent)
	}
}

func TestKeywordRoute_ResearchBeatsGuideline(t *testing.T) {
	plan := KeywordRoute("studie o doporuceni pro hypertenzi")
	if plan.Entries[0].Agent != workflow.AgentLiterature {
		t.Errorf("expected literature agent (priority over guideline), got %v", plan.Entries[0].Agent)
	}
}

func TestKeywordRoute_GuidelineFallback(t *testing.T) {
	plan := KeywordRoute("ESC doporučené postupy pro hypertenzi")
	if plan.Entries[0].Agent != workflow.AgentGuideline {
		t.Errorf("expected guideline agent, got %v", plan.Entries[0].Agent)
	}
}

func TestKeywordRoute_GeneralFallback(t *testing.T) {
	plan := KeywordRoute("what is the weather like today")
	if plan.Entries[0].Agent != workflow.AgentGeneral {
		t.Errorf("expected general agent, got %v", plan.Entries[0].Agent)
	}
}

func TestKeywordRoute_DiacriticInsensitive(t *testing.T) {
	withDiacritics := KeywordRoute("jaké jsou kontraindikace metforminu")
	withoutDiacritics := KeywordRoute("jake jsou kontraindikace metforminu")
	if withDiacritics.Entries[0].Agent != withoutDiacritics.Entries[0].Agent {
		t.Errorf("diacritic handling inconsistent: %v vs %v", withDiacritics.Entries[0].Agent, withoutDiacritics.Entries[0].Agent)
	}
	if withDiacritics.Entries[0].Agent != workflow.AgentDrug {
		t.Errorf("expected drug agent, got %v", withDiacritics.Entries[0].Agent)
	}
}

func TestKeywordRoute_WholeTokenNotSubstring(t *testing.T) {
	// "drugstore" must not match the "drug" keyword via substring scan.
	plan := KeywordRoute("is there a drugstore nearby")
	if plan.Entries[0].Agent == workflow.AgentDrug {
		t.Errorf("expected whole-token match to reject 'drugstore', got drug agent")
	}
}
