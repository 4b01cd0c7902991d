package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/spigell/job-radar/internal/jobs"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{raw: "Just posted", want: now},
		{raw: "Today", want: now},
		{raw: "2 hours ago", want: now.Add(-2 * time.Hour)},
		{raw: "Posted 3 days ago", want: now.Add(-72 * time.Hour)},
		{raw: "30+ days ago", want: now.Add(-30 * 24 * time.Hour)},
		{raw: "15 mins ago", want: now.Add(-15 * time.Minute)},
		{raw: "1 week ago", want: now.Add(-7 * 24 * time.Hour)},
		{raw: "yesterday", want: now.Add(-24 * time.Hour)},
		{raw: "2024-05-01T08:30:00Z", want: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)},
		{raw: "2024-05-01", want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{raw: "1715299200", want: time.Unix(1715299200, 0).UTC()},
		{raw: "1715299200000", want: time.UnixMilli(1715299200000).UTC()},
		{raw: "3d", want: now},
		{raw: "sometime soon", want: now},
		{raw: "", want: now},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseDate(tt.raw, now)
			if !got.Equal(tt.want) {
				t.Fatalf("ParseDate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDateRelativeWithinOneSecond(t *testing.T) {
	now := time.Now()
	got := ParseDate("2 hours ago", now)
	if diff := got.Sub(now.Add(-2 * time.Hour)); diff > time.Second || diff < -time.Second {
		t.Fatalf("expected timestamp within 1s of now-2h, off by %v", diff)
	}
}

func TestParseSalary(t *testing.T) {
	tests := []struct {
		text   string
		min    float64
		max    float64
		period jobs.SalaryPeriod
	}{
		{text: "$85-95/hr", min: 85, max: 95, period: jobs.SalaryHourly},
		{text: "$140,000-$180,000/year", min: 67.31, max: 86.54, period: jobs.SalaryAnnual},
		{text: "$120k - $150k", min: 57.69, max: 72.12, period: jobs.SalaryAnnual},
		{text: "120-150k", min: 57.69, max: 72.12, period: jobs.SalaryAnnual},
		{text: "$60 an hour", min: 60, max: 60, period: jobs.SalaryHourly},
		{text: "45 - 55", min: 45, max: 55, period: jobs.SalaryHourly},
		{text: "104000", min: 50, max: 50, period: jobs.SalaryAnnual},
		{text: "$120,000 per year, 40 hour week", min: 57.69, max: 57.69, period: jobs.SalaryAnnual},
		{text: "Up to $65/hour, full benefits", min: 65, max: 65, period: jobs.SalaryHourly},
		{text: "Pay: $104,000 to $124,800, 40 hour week", min: 50, max: 60, period: jobs.SalaryAnnual},
		{text: "$45/hr or $90,000 a year", min: 45, max: 45, period: jobs.SalaryHourly},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseSalary(tt.text)
			if !ok {
				t.Fatalf("expected salary to parse")
			}
			if math.Abs(got.Min-tt.min) > 0.01 || math.Abs(got.Max-tt.max) > 0.01 {
				t.Fatalf("ParseSalary(%q) = %.2f-%.2f, want %.2f-%.2f", tt.text, got.Min, got.Max, tt.min, tt.max)
			}
			if got.Period != tt.period {
				t.Fatalf("ParseSalary(%q) period = %q, want %q", tt.text, got.Period, tt.period)
			}
		})
	}
}

func TestParseSalaryWithoutNumbers(t *testing.T) {
	if _, ok := ParseSalary("Competitive"); ok {
		t.Fatalf("expected no salary for text without numbers")
	}
}

func TestFromAnnualApply(t *testing.T) {
	p := &jobs.Posting{}
	FromAnnual(0, 208000).Apply(p)
	if p.SalaryMin != 0 || p.SalaryMax != 100 || p.SalaryPeriod != jobs.SalaryAnnual {
		t.Fatalf("unexpected salary on posting: %+v", p)
	}
}

func TestIsRemote(t *testing.T) {
	if !IsRemote("Go Developer", "Anywhere in the US") {
		t.Fatalf("expected anywhere to be remote")
	}
	if !IsRemote("", "", "This is a WFH role") {
		t.Fatalf("expected WFH description to be remote")
	}
	if IsRemote("Go Developer", "Austin, TX", "On-site only") {
		t.Fatalf("expected on-site posting not to be remote")
	}
}

func TestHashIgnoresCasePunctuationAndWhitespace(t *testing.T) {
	a := Hash("Senior Go Developer", "Acme, Inc.", "Austin, TX")
	c := Hash("senior  GO developer!", "acme inc", "AUSTIN tx")
	if a != c {
		t.Fatalf("expected equal hashes, got %s and %s", a, c)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
	if Key("A", "B", "C") != "a|b|c" {
		t.Fatalf("unexpected key %q", Key("A", "B", "C"))
	}
}

func TestStripHTML(t *testing.T) {
	got := StripHTML("<div><p>Build <b>Go</b> services</p><script>x()</script>\n<ul><li>Remote</li></ul></div>")
	if got != "Build Go services Remote" {
		t.Fatalf("unexpected stripped text %q", got)
	}
	if StripHTML("  plain   text ") != "plain text" {
		t.Fatalf("expected plain text to be collapsed")
	}
}
