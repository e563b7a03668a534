package triage

import (
	"errors"
	"strings"
	"testing"
)

const minimalCatalog = `
version: 1
severity:
  emergency: {label: Emergency, color: red, hotline: "112"}
  hotline: {label: Hotline, color: orange, hotline: "116 117"}
  next-day: {label: Next day, color: yellow}
  home-care: {label: Home care, color: green}
regions:
  - id: de
    label: Germany
    hotlines: {hotline: "0800 123"}
    guidance:
      emergency: ["Unlock the door."]
emergency_screening:
  - id: e1
    text: Unresponsive?
    result: {tier: emergency, title: Call now}
age_groups:
  - {id: infant-0-3m, label: 0-3 months}
  - {id: child, label: Child}
symptom_groups:
  - {id: fever, label: Fever, symptoms: [fever]}
  - {id: breathing, label: Breathing, symptoms: [fever]}
age_overrides:
  infant-0-3m:
    breathing: {tier: emergency, title: Young baby}
symptoms:
  fever:
    name: Fever
    entry: q1
    questions:
      - id: q1
        text: High?
        yes: q2
        no: {tier: home-care, title: Home}
      - id: q2
        text: Drowsy?
        yes: {tier: hotline, title: Call}
        no: {tier: next-day, title: Tomorrow}
`

func mustParse(t *testing.T, payload string) *Catalog {
	t.Helper()
	catalog, err := ParseCatalogYAML([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error parsing catalog: %v", err)
	}
	return catalog
}

func expectProblem(t *testing.T, payload, fragment string) {
	t.Helper()
	_, err := ParseCatalogYAML([]byte(payload))
	if err == nil {
		t.Fatalf("expected error containing %q", fragment)
	}
	if !strings.Contains(err.Error(), fragment) {
		t.Fatalf("expected error containing %q, got %v", fragment, err)
	}
}

func TestParseCatalogYAMLAcceptsMinimalCatalog(t *testing.T) {
	catalog := mustParse(t, minimalCatalog)
	if catalog.EmergencyCount() != 1 {
		t.Fatalf("expected 1 emergency question, got %d", catalog.EmergencyCount())
	}
	symptom, ok := catalog.Symptom("fever")
	if !ok {
		t.Fatalf("fever symptom missing")
	}
	if symptom.Slug != "fever" {
		t.Fatalf("slug should default to the map key, got %q", symptom.Slug)
	}
	q1, _ := symptom.Question("q1")
	if q1.Yes.Kind() != EdgeReference || q1.Yes.Target() != "q2" {
		t.Fatalf("q1.yes should reference q2, got %v %q", q1.Yes.Kind(), q1.Yes.Target())
	}
	if q1.No.Kind() != EdgeTerminal || q1.No.Result().Tier != TierHomeCare {
		t.Fatalf("q1.no should be terminal home-care, got %+v", q1.No)
	}
}

func TestParseCatalogYAMLRejectsEmptyPayload(t *testing.T) {
	expectProblem(t, "  \n", "catalog payload is empty")
}

func TestParseCatalogYAMLRejectsUnknownTier(t *testing.T) {
	payload := strings.Replace(minimalCatalog, "{tier: home-care, title: Home}", "{tier: urgent, title: Home}", 1)
	expectProblem(t, payload, `unknown severity tier "urgent"`)
}

func TestParseCatalogYAMLRejectsDanglingReference(t *testing.T) {
	payload := strings.Replace(minimalCatalog, "yes: q2", "yes: q9", 1)
	expectProblem(t, payload, "references unknown question q9")
}

func TestParseCatalogYAMLRejectsUnreachableQuestion(t *testing.T) {
	payload := strings.Replace(minimalCatalog, "yes: q2", "yes: {tier: hotline, title: Call}", 1)
	expectProblem(t, payload, "question q2 is unreachable from entry q1")
}

func TestParseCatalogYAMLRejectsCycles(t *testing.T) {
	payload := strings.Replace(minimalCatalog, "no: {tier: next-day, title: Tomorrow}", "no: q1", 1)
	expectProblem(t, payload, "cycle detected: q1 -> q2 -> q1")
}

func TestParseCatalogYAMLRejectsMissingEntry(t *testing.T) {
	payload := strings.Replace(minimalCatalog, "entry: q1", "entry: start", 1)
	expectProblem(t, payload, "entry references unknown question start")
}

func TestParseCatalogYAMLRejectsUnknownGroupSlug(t *testing.T) {
	payload := strings.Replace(minimalCatalog, "symptoms: [fever]}\n  - {id: breathing", "symptoms: [fever, cough]}\n  - {id: breathing", 1)
	expectProblem(t, payload, "references unknown symptom cough")
}

func TestParseCatalogYAMLRejectsUnknownOverrideKeys(t *testing.T) {
	payload := strings.Replace(minimalCatalog, "  infant-0-3m:\n    breathing:", "  teen:\n    skin:", 1)
	_, err := ParseCatalogYAML([]byte(payload))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Problems) != 2 {
		t.Fatalf("expected both override keys to be reported, got %v", verr.Problems)
	}
	if !strings.Contains(err.Error(), "unknown age group teen") || !strings.Contains(err.Error(), "unknown symptom group skin") {
		t.Fatalf("unexpected override error: %v", err)
	}
}

func TestParseCatalogYAMLRequiresEveryTierDisplay(t *testing.T) {
	payload := strings.Replace(minimalCatalog, "  next-day: {label: Next day, color: yellow}\n", "", 1)
	expectProblem(t, payload, "missing display for tier next-day")
}

func TestParseCatalogYAMLRequiresEmergencyQuestions(t *testing.T) {
	start := strings.Index(minimalCatalog, "emergency_screening:")
	end := strings.Index(minimalCatalog, "age_groups:")
	payload := minimalCatalog[:start] + "emergency_screening: []\n" + minimalCatalog[end:]
	expectProblem(t, payload, "at least one emergency question is required")
}

func TestParseCatalogYAMLRejectsUnknownFields(t *testing.T) {
	payload := strings.Replace(minimalCatalog, "version: 1", "version: 1\nflavour: mint", 1)
	expectProblem(t, payload, "field flavour not found")
}

func TestValidationErrorCollectsEveryProblem(t *testing.T) {
	payload := strings.Replace(minimalCatalog, "entry: q1", "entry: start", 1)
	payload = strings.Replace(payload, "label: Child", "label: \"\"", 1)
	_, err := ParseCatalogYAML([]byte(payload))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Problems) < 2 {
		t.Fatalf("expected at least two problems, got %v", verr.Problems)
	}
	if !strings.Contains(err.Error(), "problems") {
		t.Fatalf("multi-problem message should include a count: %v", err)
	}
}

func TestDisplayForCoversEveryTier(t *testing.T) {
	catalog := mustParse(t, minimalCatalog)
	for _, tier := range Tiers {
		if _, ok := catalog.DisplayFor(tier); !ok {
			t.Fatalf("display missing for %s", tier)
		}
	}
	if _, ok := catalog.DisplayFor(Tier("bogus")); ok {
		t.Fatalf("display lookup should fail outside the enumeration")
	}
}

func TestDecorateAttachesRegionalDataOnlyToEscalatedTiers(t *testing.T) {
	catalog := mustParse(t, minimalCatalog)

	emergency := catalog.Decorate(Result{Tier: TierEmergency, Title: "x"}, "de")
	if emergency.Hotline != "112" {
		t.Fatalf("emergency should fall back to the severity hotline, got %q", emergency.Hotline)
	}
	if len(emergency.RegionalGuidance) != 1 || emergency.RegionalGuidance[0] != "Unlock the door." {
		t.Fatalf("emergency guidance missing: %v", emergency.RegionalGuidance)
	}

	hotline := catalog.Decorate(Result{Tier: TierHotline, Title: "x"}, "de")
	if hotline.Hotline != "0800 123" {
		t.Fatalf("region hotline should override the severity hotline, got %q", hotline.Hotline)
	}

	unknownRegion := catalog.Decorate(Result{Tier: TierHotline, Title: "x"}, "fr")
	if unknownRegion.Hotline != "116 117" || unknownRegion.RegionalGuidance != nil {
		t.Fatalf("unknown region should use severity data only, got %+v", unknownRegion)
	}

	homeCare := catalog.Decorate(Result{Tier: TierHomeCare, Title: "x", Hotline: "stale", RegionalGuidance: []string{"stale"}}, "de")
	if homeCare.Hotline != "" || homeCare.RegionalGuidance != nil {
		t.Fatalf("non-escalated tiers should not carry hotline data, got %+v", homeCare)
	}
}

func TestCatalogAccessorsReturnCopies(t *testing.T) {
	catalog := mustParse(t, minimalCatalog)
	symptom, _ := catalog.Symptom("fever")
	symptom.Questions[0].Text = "mutated"
	again, _ := catalog.Symptom("fever")
	if again.Questions[0].Text != "High?" {
		t.Fatalf("catalog should not share question storage, got %q", again.Questions[0].Text)
	}
	group, _ := catalog.SymptomGroup("fever")
	group.Symptoms[0] = "mutated"
	if again, _ := catalog.SymptomGroup("fever"); again.Symptoms[0] != "fever" {
		t.Fatalf("catalog should not share group storage")
	}
}

func TestOverrideLookup(t *testing.T) {
	catalog := mustParse(t, minimalCatalog)
	result, ok := catalog.Override("infant-0-3m", "breathing")
	if !ok || result.Tier != TierEmergency {
		t.Fatalf("expected emergency override, got %+v %v", result, ok)
	}
	if _, ok := catalog.Override("child", "breathing"); ok {
		t.Fatalf("unexpected override for child")
	}
}

func TestNewCatalogValidatesHandBuiltSpecs(t *testing.T) {
	catalog := mustParse(t, minimalCatalog)
	doc := catalog.Document()
	fever := doc.Symptoms["fever"]
	fever.Questions[1].No = Reference("q1")
	doc.Symptoms["fever"] = fever
	if _, err := NewCatalog(doc); err == nil || !strings.Contains(err.Error(), "cycle detected") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestDefaultCatalogLoads(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("embedded catalog invalid: %v", err)
	}
	summary := catalog.Summary()
	if summary.EmergencyQuestions == 0 || len(summary.Symptoms) == 0 {
		t.Fatalf("embedded catalog looks empty: %+v", summary)
	}
	for _, s := range summary.Symptoms {
		if s.Depth < 1 || s.Depth > s.Questions {
			t.Fatalf("symptom %s depth %d outside [1,%d]", s.Slug, s.Depth, s.Questions)
		}
	}
	if !strings.Contains(summary.String(), "catalog version 1") {
		t.Fatalf("unexpected summary text: %s", summary)
	}
}

func TestDefaultCatalogCarriesReferenceScenarios(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("embedded catalog invalid: %v", err)
	}
	if result, ok := catalog.Override("infant-0-3m", "breathing"); !ok || result.Tier != TierEmergency {
		t.Fatalf("expected infant breathing override, got %+v %v", result, ok)
	}
	skin, ok := catalog.SymptomGroup("skin")
	if !ok || len(skin.Symptoms) != 2 || skin.Symptoms[0] != "rash" || skin.Symptoms[1] != "allergic-reaction" {
		t.Fatalf("unexpected skin group: %+v", skin)
	}
	fever, _ := catalog.Symptom("fever")
	if fever.Entry != "q1" || len(fever.Questions) != 2 {
		t.Fatalf("unexpected fever graph: %+v", fever)
	}
}

func TestRenderMarkdownListsEveryQuestion(t *testing.T) {
	catalog := mustParse(t, minimalCatalog)
	fever, _ := catalog.Symptom("fever")
	md := RenderMarkdown(fever)
	for _, want := range []string{"## Fever (`fever`)", "### `q1` High?", "question `q2`", "**next-day**: Tomorrow"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if !strings.Contains(catalog.Markdown(), "| infant-0-3m | breathing | emergency |") {
		t.Fatalf("catalog markdown missing override table")
	}
}
