// Package matching decides which postings fit a user: keyword groups built
// from search profiles and a weighted résumé scorer.
package matching

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/utils"
)

// seniorityWords never carry the meaning of a title.
var seniorityWords = map[string]bool{
	"senior": true, "sr": true, "junior": true, "jr": true, "lead": true,
	"principal": true, "staff": true, "head": true, "chief": true, "mid": true,
	"entry": true, "level": true, "associate": true, "intern": true,
	"i": true, "ii": true, "iii": true, "iv": true,
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"for": true, "to": true, "in": true, "at": true, "on": true, "with": true,
	"by": true, "from": true, "as": true,
}

// tokenize lower-cases s, turns slashes and hyphens into separators and drops
// punctuation other than '+' and '#'.
func tokenize(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '+', r == '#':
			b.WriteRune(r)
		case r == '/', r == '-', unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// SignificantWords returns the distinct words of title that are neither
// seniority markers nor stopwords, in order of appearance.
func SignificantWords(title string) []string {
	var words []string
	seen := make(map[string]bool)
	for _, w := range tokenize(title) {
		if seniorityWords[w] || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

// KeywordGroup is the word list of one profile job title.
type KeywordGroup struct {
	Words       []string `json:"words"`
	Title       string   `json:"title"`
	ProfileID   string   `json:"profileId"`
	ProfileName string   `json:"profileName"`
}

// GroupsFromProfiles builds one group per job title of every profile.
// Titles without significant words are skipped.
func GroupsFromProfiles(profiles []*jobs.SearchProfile) []KeywordGroup {
	var groups []KeywordGroup
	for _, p := range profiles {
		if p == nil {
			continue
		}
		for _, title := range p.JobTitles {
			words := SignificantWords(title)
			if len(words) == 0 {
				continue
			}
			groups = append(groups, KeywordGroup{
				Words:       words,
				Title:       strings.TrimSpace(title),
				ProfileID:   p.ID,
				ProfileName: p.Name,
			})
		}
	}
	return groups
}

// Verdict is the keyword decision for one posting.
type Verdict struct {
	Include    bool     `json:"include"`
	Excluded   bool     `json:"excluded"`
	ExcludedBy string   `json:"excludedBy,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	Coverage   float64  `json:"coverage"`
}

type KeywordMatcher struct {
	groups   []KeywordGroup
	patterns map[string]*regexp.Regexp
	exclude  []string
}

// NewKeywordMatcher unions the groups and exclude keywords of every profile.
func NewKeywordMatcher(profiles []*jobs.SearchProfile) *KeywordMatcher {
	m := &KeywordMatcher{
		groups:   GroupsFromProfiles(profiles),
		patterns: make(map[string]*regexp.Regexp),
	}
	var exclude []string
	for _, p := range profiles {
		if p != nil {
			exclude = append(exclude, p.ExcludeKeywords...)
		}
	}
	for _, kw := range utils.Dedupe(exclude) {
		m.exclude = append(m.exclude, strings.ToLower(kw))
	}
	for _, g := range m.groups {
		for _, w := range g.Words {
			m.patterns[w] = wordPattern(w)
		}
	}
	return m
}

func (m *KeywordMatcher) Groups() []KeywordGroup {
	return m.groups
}

// wordPattern matches w as a whole token. '+' and '#' count as word characters
// so "c" does not match inside "c++".
func wordPattern(w string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^\p{L}\p{N}+#])` + regexp.QuoteMeta(w) + `($|[^\p{L}\p{N}+#])`)
}

// pattern returns the compiled pattern for w. The cache is filled once in
// NewKeywordMatcher, so lookups are safe for concurrent use.
func (m *KeywordMatcher) pattern(w string) *regexp.Regexp {
	if re, ok := m.patterns[w]; ok {
		return re
	}
	return wordPattern(w)
}

func normalizedTitle(title string) string {
	return strings.Join(tokenize(title), " ")
}

// MatchGroup reports whether every word of g appears in title as a whole word.
func (m *KeywordMatcher) MatchGroup(g KeywordGroup, title string) bool {
	if len(g.Words) == 0 {
		return false
	}
	normalized := normalizedTitle(title)
	for _, w := range g.Words {
		if !m.pattern(w).MatchString(normalized) {
			return false
		}
	}
	return true
}

// Match returns the groups title satisfies. Any one group is enough for a match.
func (m *KeywordMatcher) Match(title string) []KeywordGroup {
	var matched []KeywordGroup
	for _, g := range m.groups {
		if m.MatchGroup(g, title) {
			matched = append(matched, g)
		}
	}
	return matched
}

// Excluded returns the first exclude keyword contained in the title or description.
func (m *KeywordMatcher) Excluded(p *jobs.Posting) (string, bool) {
	if len(m.exclude) == 0 {
		return "", false
	}
	text := strings.ToLower(p.Title + " " + p.Description)
	for _, kw := range m.exclude {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// Coverage scores 0-100 how well the best group explains title: 70% for the
// share of group words found, 30% for the share of title words the group
// covers, plus 5 for every further profile the title matches.
func (m *KeywordMatcher) Coverage(title string) float64 {
	titleWords := SignificantWords(title)
	if len(titleWords) == 0 {
		return 0
	}
	inTitle := make(map[string]bool, len(titleWords))
	for _, w := range titleWords {
		inTitle[w] = true
	}

	best := 0.0
	profiles := make(map[string]bool)
	for _, g := range m.groups {
		if m.MatchGroup(g, title) {
			profiles[g.ProfileID+"|"+g.ProfileName] = true
		}
		hits := 0
		for _, w := range g.Words {
			if inTitle[w] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := 70*float64(hits)/float64(len(g.Words)) + 30*float64(hits)/float64(len(titleWords))
		best = math.Max(best, score)
	}
	if len(profiles) > 1 {
		best += 5 * float64(len(profiles)-1)
	}
	return math.Min(100, math.Round(best*10)/10)
}

// Evaluate combines inclusion, exclusion and coverage for p.
func (m *KeywordMatcher) Evaluate(p *jobs.Posting) Verdict {
	var v Verdict
	matched := m.Match(p.Title)
	seen := make(map[string]bool)
	for _, g := range matched {
		label := g.ProfileName
		if label == "" {
			label = g.Title
		}
		if !seen[label] {
			seen[label] = true
			v.Labels = append(v.Labels, label)
		}
	}
	v.ExcludedBy, v.Excluded = m.Excluded(p)
	v.Include = len(matched) > 0 && !v.Excluded
	v.Coverage = m.Coverage(p.Title)
	return v
}
