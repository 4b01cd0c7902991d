package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/job-radar/internal/jobs"
)

// HoursPerYear converts annual pay to hourly. It ignores part-time and
// contract variation.
const HoursPerYear = 2080

// markerWindow is how far past the figures a period marker still belongs to them.
const markerWindow = 16

var (
	// One figure, or two joined by a range separator.
	salaryRangeRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(k)?(?:\s*(?:-|\x{2013}|\x{2014}|to)\s*(\d+(?:\.\d+)?)\s*(k)?)?`)
	hourlyMarkers = []string{"/hr", "/h ", "/hour", "per hour", "hourly", "an hour"}
	annualMarkers = []string{"/yr", "/year", "per year", "a year", "annum", "annual", "yearly"}
)

type Salary struct {
	Min    float64
	Max    float64
	Period jobs.SalaryPeriod
}

// ParseSalary extracts the first figure or range from text and returns it on
// the hourly scale. ok is false when text has no numbers.
func ParseSalary(text string) (Salary, bool) {
	lower := strings.ToLower(text)
	cleaned := strings.NewReplacer(",", "", "$", "", "£", "", "€", "", "usd", "").Replace(lower)

	loc := salaryRangeRe.FindStringSubmatchIndex(cleaned)
	if loc == nil {
		return Salary{}, false
	}
	group := func(i int) string {
		if loc[2*i] < 0 {
			return ""
		}
		return cleaned[loc[2*i]:loc[2*i+1]]
	}

	figures := [][2]string{{group(1), group(2)}}
	if group(3) != "" {
		figures = append(figures, [2]string{group(3), group(4)})
	}

	anyK := false
	for _, f := range figures {
		if f[1] != "" {
			anyK = true
		}
	}

	values := make([]float64, 0, len(figures))
	for _, f := range figures {
		v, err := strconv.ParseFloat(f[0], 64)
		if err != nil {
			continue
		}
		// "120-150k" carries the suffix on the last figure only.
		if f[1] != "" || (anyK && v < 1000) {
			v *= 1000
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return Salary{}, false
	}

	lo, hi := values[0], values[0]
	if len(values) == 2 {
		lo, hi = math.Min(values[0], values[1]), math.Max(values[0], values[1])
	}

	tail := cleaned[loc[1]:]
	if len(tail) > markerWindow {
		tail = tail[:markerWindow]
	}

	var hourly bool
	switch period := nearestPeriod(tail + " "); {
	case period != "":
		hourly = period == jobs.SalaryHourly
	case containsAny(lower, annualMarkers):
		hourly = false
	case containsAny(lower+" ", hourlyMarkers):
		hourly = true
	case anyK:
		hourly = false
	default:
		hourly = hi < 500
	}

	if hourly {
		return Salary{Min: lo, Max: hi, Period: jobs.SalaryHourly}, true
	}
	return FromAnnual(lo, hi), true
}

// nearestPeriod returns the period whose marker comes first in text, or "".
func nearestPeriod(text string) jobs.SalaryPeriod {
	hourAt, yearAt := firstIndex(text, hourlyMarkers), firstIndex(text, annualMarkers)
	switch {
	case hourAt < 0 && yearAt < 0:
		return ""
	case yearAt < 0 || (hourAt >= 0 && hourAt < yearAt):
		return jobs.SalaryHourly
	default:
		return jobs.SalaryAnnual
	}
}

func firstIndex(text string, needles []string) int {
	first := -1
	for _, n := range needles {
		if i := strings.Index(text, n); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	return first
}

// FromAnnual converts an annual range to hourly, rounded to cents.
func FromAnnual(lo, hi float64) Salary {
	return Salary{Min: toHourly(lo), Max: toHourly(hi), Period: jobs.SalaryAnnual}
}

// Apply copies s onto p.
func (s Salary) Apply(p *jobs.Posting) {
	p.SalaryMin = s.Min
	p.SalaryMax = s.Max
	p.SalaryPeriod = s.Period
}

func toHourly(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Round(v/HoursPerYear*100) / 100
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
