package imageset

import "strings"

// DefaultBlacklist are terms whose presence sends an image to quarantine:
// people, animals, food, devices, indoor scenes.
var DefaultBlacklist = []string{
	"person", "people", "human", "woman", "man", "girl", "boy", "face", "portrait", "child", "kid",
	"dog", "cat", "animal", "pet", "puppy", "kitten",
	"food", "coffee", "drink", "meal", "cake", "fruit",
	"computer", "phone", "screen", "office", "keyboard", "work", "laptop",
	"wedding", "couple", "kiss", "love", "holding hands",
	"indoor", "room", "furniture", "sofa", "bed", "chair", "table",
}

// DefaultWhitelist are wanted scenery terms. They are advisory: a match is
// reported but never overrides a blacklist hit.
var DefaultWhitelist = []string{
	"nature", "landscape", "mountain", "sea", "ocean", "water", "river", "lake",
	"forest", "tree", "sky", "cloud", "sunset", "sunrise",
	"city", "building", "architecture", "street", "urban", "house", "bridge", "tower",
	"travel", "outdoor", "view", "beach", "sand", "rock", "cliff",
}

// normalizeTerms lower-cases and trims terms, dropping blanks.
func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// firstMatch returns the first term that occurs in lower as a substring.
func firstMatch(lower string, terms []string) (string, bool) {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return t, true
		}
	}
	return "", false
}

// allMatches returns every term that occurs in lower.
func allMatches(lower string, terms []string) []string {
	var hits []string
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits = append(hits, t)
		}
	}
	return hits
}
