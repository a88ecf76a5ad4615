// Package search implements the quick answer lookup over the question bank.
package search

import (
	"sort"
	"strings"
	"unicode"

	"agribank-quiz/internal/domain"
)

const (
	// Threshold is the similarity a question must exceed to be reported.
	Threshold = 0.15
	// MaxResults caps the number of matches returned.
	MaxResults = 3
)

// Match is one lookup hit. Index is the 1-based position of the question in the bank.
type Match struct {
	Question   domain.Question `json:"question"`
	Index      int             `json:"index"`
	Similarity float64         `json:"similarity"`
}

// normalize lowercases s, turns punctuation into spaces and collapses whitespace.
func normalize(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r), unicode.IsPunct(r):
			space = true
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

// Similarity scores how well keyword matches candidate, in [0, 1].
func Similarity(candidate, keyword string) float64 {
	text := normalize(candidate)
	key := normalize(keyword)
	if text == "" || key == "" {
		return 0
	}

	switch {
	case text == key:
		return 1.0
	case strings.Contains(text, key):
		return 0.95
	case strings.Contains(key, text):
		return 0.9
	}

	words := strings.Fields(text)
	keys := strings.Fields(key)
	matched := 0
	for _, k := range keys {
		for _, w := range words {
			if wordMatches(w, k) {
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return 0
	}

	ratio := float64(matched) / float64(len(keys))
	if ratio >= 0.5 {
		return 0.6 + ratio*0.3
	}
	return ratio * 0.5
}

// Short keywords must appear inside the word; longer ones may also contain it.
func wordMatches(word, key string) bool {
	if strings.Contains(word, key) {
		return true
	}
	return len([]rune(key)) > 2 && strings.Contains(key, word)
}

// Lookup returns the best matches for keyword among questions, comparing it
// with both the question text and each option. An empty category means all.
func Lookup(questions []domain.Question, keyword, category string) []Match {
	if strings.TrimSpace(keyword) == "" {
		return []Match{}
	}

	matches := make([]Match, 0)
	for i, q := range questions {
		if category != "" && q.Category != category {
			continue
		}
		best := Similarity(q.Question, keyword)
		for _, opt := range q.Options {
			if sim := Similarity(opt, keyword); sim > best {
				best = sim
			}
		}
		if best > Threshold {
			matches = append(matches, Match{Question: q, Index: i + 1, Similarity: best})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}
	return matches
}
