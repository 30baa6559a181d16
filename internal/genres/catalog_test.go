package genres

import "testing"

func ptr[T any](v T) *T { return &v }

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	ids := c.IDs()
	if len(ids) != 18 {
		t.Fatalf("genres=%d want 18", len(ids))
	}
	if ids[0] != "minimal_deep_tech" || ids[len(ids)-1] != "other" {
		t.Fatalf("unexpected order: first=%s last=%s", ids[0], ids[len(ids)-1])
	}
	if c.Label("other") != "Altro" {
		t.Fatalf("other label=%q", c.Label("other"))
	}
	if c.Label("house") != "House" {
		t.Fatalf("house label=%q", c.Label("house"))
	}
	if c.Label("dark_disco") != "Dark disco" {
		t.Fatalf("unknown label=%q", c.Label("dark_disco"))
	}
	if !c.Valid("tech_house") || c.Valid("trance") {
		t.Fatalf("Valid mismatch")
	}
}

func TestProfileFallback(t *testing.T) {
	c := Default()
	if got := c.Profile("tech_house").Master.LUFSMax; got != -6.5 {
		t.Fatalf("tech_house lufs_max=%v", got)
	}
	if got := c.Profile("afro_house").Label; got != "Generic Club" {
		t.Fatalf("fallback label=%q", got)
	}
	if got := c.Profile("micro_house").Mode("premaster").LUFSMin; got != -16 {
		t.Fatalf("micro premaster lufs_min=%v", got)
	}
}

func TestEvaluate(t *testing.T) {
	c := Default()
	tests := []struct {
		name string
		in   ReadinessInput
		want Readiness
	}{
		{"no match", ReadinessInput{ProfileKey: "tech_house"}, ReadinessUnknown},
		{"ready", ReadinessInput{ProfileKey: "tech_house", MatchPercent: ptr(85.0), LUFS: ptr(-7.0), CrestInTarget: ptr(true)}, ReadinessReady},
		{"ready needs crest", ReadinessInput{ProfileKey: "tech_house", MatchPercent: ptr(85.0), LUFS: ptr(-7.0)}, ReadinessAlmost},
		{"override lufs flag", ReadinessInput{ProfileKey: "tech_house", MatchPercent: ptr(70.0), LUFS: ptr(-20.0), LUFSInTarget: ptr(true)}, ReadinessAlmost},
		{"work", ReadinessInput{ProfileKey: "tech_house", MatchPercent: ptr(55.0), LUFS: ptr(-20.0)}, ReadinessWork},
		{"early", ReadinessInput{ProfileKey: "tech_house", MatchPercent: ptr(30.0)}, ReadinessEarly},
		{"premaster thresholds", ReadinessInput{ProfileKey: "tech_house", Mode: "premaster", MatchPercent: ptr(76.0), LUFS: ptr(-12.0), CrestInTarget: ptr(true)}, ReadinessReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Evaluate(tt.in)
			if got.Status != tt.want {
				t.Fatalf("status=%s want %s (%v)", got.Status, tt.want, got.Reasons)
			}
			if got.Label != ReadinessLabel(tt.want) || len(got.Reasons) == 0 {
				t.Fatalf("unexpected result %+v", got)
			}
		})
	}
}

func TestParse_RequiresDefaultProfile(t *testing.T) {
	if _, err := Parse([]byte("genres:\n  - id: house\nprofiles: {}\n")); err == nil {
		t.Fatalf("expected error for catalog without default profile")
	}
}
