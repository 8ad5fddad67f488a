package imageset

import "strings"

// Verdict is the curation decision for one identifier.
type Verdict int

const (
	VerdictKeep Verdict = iota
	VerdictQuarantine
)

func (v Verdict) String() string {
	if v == VerdictQuarantine {
		return "quarantine"
	}
	return "keep"
}

// Signal is one keyword hit that contributed to an Assessment.
type Signal struct {
	Source  string  // "metadata", "embedded"
	List    string  // "blacklist" or "whitelist"
	Term    string  // matched term
	Verdict Verdict // what this signal indicates
}

// Assessment combines keyword signals into a verdict.
type Assessment struct {
	Verdict Verdict  // final verdict: Quarantine if any blacklist signal
	Signals []Signal // contributing evidence (never nil, may be empty)
}

// Assess classifies one metadata text, ignoring case.
func (c *Curator) Assess(text string) Assessment {
	return c.assess(strings.ToLower(text), "")
}

// assess checks the row text and, when present, the embedded metadata text.
// The blacklist is consulted first and short-circuits; whitelist hits are
// only collected when no blacklist term matched.
func (c *Curator) assess(rowText, embeddedText string) Assessment {
	signals := make([]Signal, 0, 2) //nolint:mnd // typical: one hit per list

	texts := []struct{ source, text string }{
		{"metadata", rowText},
		{"embedded", embeddedText},
	}

	for _, t := range texts {
		if t.text == "" {
			continue
		}
		if term, ok := firstMatch(t.text, c.blacklist); ok {
			signals = append(signals, Signal{
				Source:  t.source,
				List:    "blacklist",
				Term:    term,
				Verdict: VerdictQuarantine,
			})
			return Assessment{Verdict: VerdictQuarantine, Signals: signals}
		}
	}

	for _, t := range texts {
		if t.text == "" {
			continue
		}
		for _, term := range allMatches(t.text, c.whitelist) {
			signals = append(signals, Signal{
				Source:  t.source,
				List:    "whitelist",
				Term:    term,
				Verdict: VerdictKeep,
			})
		}
	}

	return Assessment{Verdict: VerdictKeep, Signals: signals}
}
