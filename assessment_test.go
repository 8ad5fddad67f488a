package imageset

import "testing"

func TestAssess(t *testing.T) {
	t.Parallel()

	c := NewCurator(Catalog{}, CurateOptions{Logger: quietLogger()})

	tests := []struct {
		name    string
		text    string
		want    Verdict
		signals int
	}{
		{name: "scenery", text: "Mountain lake view", want: VerdictKeep, signals: 3},
		{name: "people", text: "Portrait of a woman indoor", want: VerdictQuarantine, signals: 1},
		{name: "blacklist beats whitelist", text: "dog on the beach at sunset", want: VerdictQuarantine, signals: 1},
		{name: "no match", text: "abstract blur", want: VerdictKeep, signals: 0},
		{name: "empty", text: "", want: VerdictKeep, signals: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := c.Assess(tt.text)
			if a.Verdict != tt.want {
				t.Errorf("Verdict = %v, want %v", a.Verdict, tt.want)
			}
			if a.Signals == nil {
				t.Error("Signals is nil, want non-nil slice")
			}
			if len(a.Signals) != tt.signals {
				t.Errorf("len(Signals) = %d, want %d: %+v", len(a.Signals), tt.signals, a.Signals)
			}
		})
	}
}

func TestAssess_BlacklistSignalFirst(t *testing.T) {
	t.Parallel()

	c := NewCurator(Catalog{}, CurateOptions{Blacklist: []string{"crowd"}, Whitelist: []string{"city"}})
	a := c.Assess("City crowd")
	if len(a.Signals) != 1 {
		t.Fatalf("Signals = %+v, want one", a.Signals)
	}
	want := Signal{Source: "metadata", List: "blacklist", Term: "crowd", Verdict: VerdictQuarantine}
	if a.Signals[0] != want {
		t.Errorf("Signals[0] = %+v, want %+v", a.Signals[0], want)
	}
}

func TestAssess_EmbeddedText(t *testing.T) {
	t.Parallel()

	c := NewCurator(Catalog{}, CurateOptions{})

	a := c.assess("42 river bend", "a kitten asleep")
	if a.Verdict != VerdictQuarantine {
		t.Errorf("Verdict = %v, want quarantine", a.Verdict)
	}
	if len(a.Signals) != 1 {
		t.Fatalf("Signals = %+v, want one", a.Signals)
	}
	if s := a.Signals[0]; s.Source != "embedded" || s.Term != "kitten" {
		t.Errorf("Signals[0] = %+v, want embedded kitten", s)
	}

	a = c.assess("42 lake", "forest trail")
	if a.Verdict != VerdictKeep {
		t.Errorf("Verdict = %v, want keep", a.Verdict)
	}
	want := []Signal{
		{Source: "metadata", List: "whitelist", Term: "lake", Verdict: VerdictKeep},
		{Source: "embedded", List: "whitelist", Term: "forest", Verdict: VerdictKeep},
	}
	if len(a.Signals) != len(want) {
		t.Fatalf("Signals = %+v, want %+v", a.Signals, want)
	}
	for i := range want {
		if a.Signals[i] != want[i] {
			t.Errorf("Signals[%d] = %+v, want %+v", i, a.Signals[i], want[i])
		}
	}
}

func TestVerdictString(t *testing.T) {
	t.Parallel()

	if got := VerdictKeep.String(); got != "keep" {
		t.Errorf("VerdictKeep = %q", got)
	}
	if got := VerdictQuarantine.String(); got != "quarantine" {
		t.Errorf("VerdictQuarantine = %q", got)
	}
}
