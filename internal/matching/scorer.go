package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/normalize"
	"github.com/spigell/job-radar/internal/utils"
)

const (
	WeightSkills   = 0.40
	WeightTitle    = 0.20
	WeightSalary   = 0.15
	WeightLocation = 0.10
	WeightRemote   = 0.10
	WeightRecency  = 0.05

	// salaryGapTolerance is the annual gap still considered close.
	salaryGapTolerance = 20000
	// hourlyCeiling separates hourly from annual résumé figures.
	hourlyCeiling = 1000
)

// Factors holds each factor on a 0-1 scale.
type Factors struct {
	Skills   float64 `json:"skills"`
	Title    float64 `json:"title"`
	Salary   float64 `json:"salary"`
	Location float64 `json:"location"`
	Remote   float64 `json:"remote"`
	Recency  float64 `json:"recency"`
}

func (f Factors) weighted() float64 {
	return f.Skills*WeightSkills +
		f.Title*WeightTitle +
		f.Salary*WeightSalary +
		f.Location*WeightLocation +
		f.Remote*WeightRemote +
		f.Recency*WeightRecency
}

// Match is the score of one posting against one résumé.
type Match struct {
	Posting     *jobs.Posting `json:"posting"`
	Score       int           `json:"score"`
	Factors     Factors       `json:"factors"`
	Reasons     []string      `json:"reasons"`
	Explanation string        `json:"explanation"`
	// Filtered is set when a hard requirement failed: a remote-only resume
	// against an on-site posting. Score is still the weighted sum.
	Filtered bool `json:"filtered,omitempty"`
}

type Scorer struct {
	now func() time.Time
}

func NewScorer(now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{now: now}
}

// Score rates p against resume on a 0-100 scale.
func (s *Scorer) Score(resume *jobs.ParsedResume, p *jobs.Posting) Match {
	if resume == nil {
		resume = &jobs.ParsedResume{}
	}
	m := Match{Posting: p, Reasons: []string{}}
	add := func(reason string) {
		if reason != "" {
			m.Reasons = append(m.Reasons, reason)
		}
	}

	var reason string
	m.Factors.Skills, reason = skillsFactor(resume, p)
	add(reason)
	m.Factors.Title, reason = titleFactor(resume, p)
	add(reason)
	m.Factors.Salary, reason = salaryFactor(resume, p)
	add(reason)
	m.Factors.Location, reason = locationFactor(resume, p)
	add(reason)
	m.Factors.Remote, reason = remoteFactor(resume, p)
	add(reason)
	m.Factors.Recency, reason = recencyFactor(s.now().Sub(p.PostedAt), p.PostedAt.IsZero())
	add(reason)

	// The remote factor is already 0 here, the score stays comparable.
	m.Filtered = resume.Remote == jobs.RemoteOnly && !p.Remote

	m.Score = int(math.Round(math.Min(1, m.Factors.weighted()) * 100))
	m.Explanation = explain(m.Score, m.Reasons)
	return m
}

// ScoreAll scores every posting and orders the result by descending score.
// Equal scores keep their input order.
func (s *Scorer) ScoreAll(resume *jobs.ParsedResume, postings []*jobs.Posting) []Match {
	matches := make([]Match, 0, len(postings))
	for _, p := range postings {
		if p != nil {
			matches = append(matches, s.Score(resume, p))
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

func skillsFactor(resume *jobs.ParsedResume, p *jobs.Posting) (float64, string) {
	skills := utils.Dedupe(append(append([]string{}, resume.TechnicalSkills...), resume.SoftSkills...))
	if len(skills) == 0 {
		return 0, ""
	}
	text := strings.ToLower(p.Title + " " + p.Description + " " + p.Requirements)
	var found []string
	for _, skill := range skills {
		if strings.Contains(text, strings.ToLower(skill)) {
			found = append(found, skill)
		}
	}
	if len(found) == 0 {
		return 0, ""
	}
	shown := found
	if len(shown) > 5 {
		shown = shown[:5]
	}
	return float64(len(found)) / float64(len(skills)),
		fmt.Sprintf("Matches %d of %d skills: %s", len(found), len(skills), strings.Join(shown, ", "))
}

func titleFactor(resume *jobs.ParsedResume, p *jobs.Posting) (float64, string) {
	title := strings.ToLower(strings.TrimSpace(p.Title))
	roles := utils.Dedupe(append(append([]string{}, resume.DesiredRoles...), resume.PastTitles...))
	for _, role := range roles {
		r := strings.ToLower(role)
		if strings.Contains(title, r) || (title != "" && strings.Contains(r, title)) {
			return 1, fmt.Sprintf("Title matches %s", role)
		}
	}
	for _, w := range tokenize(title) {
		if !seniorityWords[w] {
			continue
		}
		for _, role := range roles {
			for _, rw := range tokenize(role) {
				if rw == w {
					return 0.8, fmt.Sprintf("Seniority level matches (%s)", w)
				}
			}
		}
	}
	return 0.3, ""
}

// postingAnnual returns the posting salary on the annual scale.
func postingAnnual(p *jobs.Posting) (lo, hi float64, ok bool) {
	lo, hi = p.SalaryMin*normalize.HoursPerYear, p.SalaryMax*normalize.HoursPerYear
	switch {
	case lo <= 0 && hi <= 0:
		return 0, 0, false
	case lo <= 0:
		lo = hi
	case hi <= 0:
		hi = lo
	}
	return lo, hi, true
}

// resumeAnnual treats figures below hourlyCeiling as hourly rates. A missing
// bound leaves that side open.
func resumeAnnual(resume *jobs.ParsedResume) (lo, hi float64, ok bool) {
	scale := func(v float64) float64 {
		if v > 0 && v < hourlyCeiling {
			return v * normalize.HoursPerYear
		}
		return v
	}
	lo, hi = scale(resume.SalaryMin), scale(resume.SalaryMax)
	if lo <= 0 && hi <= 0 {
		return 0, 0, false
	}
	if hi <= 0 {
		hi = math.Inf(1)
	}
	return lo, hi, true
}

func salaryFactor(resume *jobs.ParsedResume, p *jobs.Posting) (float64, string) {
	pLo, pHi, pok := postingAnnual(p)
	rLo, rHi, rok := resumeAnnual(resume)
	if !pok || !rok {
		return 0.5, ""
	}
	if pLo <= rHi && rLo <= pHi {
		return 1, "Salary range fits expectations"
	}
	gap := rLo - pHi
	if pLo > rHi {
		gap = pLo - rHi
	}
	if gap < salaryGapTolerance {
		return 0.7, "Salary close to expectations"
	}
	return 0.2, ""
}

func locationFactor(resume *jobs.ParsedResume, p *jobs.Posting) (float64, string) {
	prefs := utils.Dedupe(resume.PreferredLocations)
	if len(prefs) == 0 {
		return 0.3, ""
	}
	location := strings.ToLower(p.Location)
	for _, pref := range prefs {
		if strings.Contains(location, strings.ToLower(pref)) {
			return 1, fmt.Sprintf("Located in %s", pref)
		}
	}
	for _, pref := range prefs {
		switch strings.ToLower(pref) {
		case "remote", "anywhere":
			return 0.7, "Open to any location"
		}
	}
	return 0.3, ""
}

func remoteFactor(resume *jobs.ParsedResume, p *jobs.Posting) (float64, string) {
	if resume.Remote != jobs.RemoteOnly {
		return 0.5, ""
	}
	if p.Remote {
		return 1, "Remote position"
	}
	return 0, ""
}

func recencyFactor(age time.Duration, unknown bool) (float64, string) {
	switch {
	case unknown:
		return 0.2, ""
	case age < 6*time.Hour:
		return 1, "Posted in the last 6 hours"
	case age < 24*time.Hour:
		return 0.8, "Posted today"
	case age < 72*time.Hour:
		return 0.5, ""
	default:
		return 0.2, ""
	}
}

func explain(score int, reasons []string) string {
	var tier string
	switch {
	case score >= 85:
		tier = "Excellent match"
	case score >= 70:
		tier = "Good fit"
	case score >= 50:
		tier = "Partial match"
	default:
		tier = "Some overlap with your profile"
	}
	if len(reasons) == 0 {
		return tier + "."
	}
	top := reasons
	if len(top) > 2 {
		top = top[:2]
	}
	return tier + ": " + strings.Join(top, "; ") + "."
}
