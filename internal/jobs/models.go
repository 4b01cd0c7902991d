// Package jobs holds the records the discovery pipeline passes around.
package jobs

import "time"

// SalaryPeriod tells how SalaryMin/SalaryMax were derived. Both periods are
// stored on the hourly scale.
type SalaryPeriod string

const (
	SalaryHourly SalaryPeriod = "hourly"
	// SalaryAnnual marks an annual figure divided by 2080 hours.
	SalaryAnnual SalaryPeriod = "annual"
)

// Posting is one normalized job listing from one source.
type Posting struct {
	ID              string       `json:"id,omitempty"`
	Platform        string       `json:"platform"`
	SourceID        string       `json:"sourceId,omitempty"`
	Title           string       `json:"title"`
	Company         string       `json:"company"`
	Location        string       `json:"location"`
	Remote          bool         `json:"remote"`
	SalaryText      string       `json:"salaryText,omitempty"`
	SalaryMin       float64      `json:"salaryMin,omitempty"`
	SalaryMax       float64      `json:"salaryMax,omitempty"`
	SalaryPeriod    SalaryPeriod `json:"salaryPeriod,omitempty"`
	EmploymentType  string       `json:"employmentType,omitempty"`
	Description     string       `json:"description,omitempty"`
	DescriptionHTML string       `json:"descriptionHtml,omitempty"`
	Requirements    string       `json:"requirements,omitempty"`
	PostedAt        time.Time    `json:"postedAt"`
	PostedRaw       string       `json:"postedRaw,omitempty"`
	ApplyURL        string       `json:"applyUrl"`
	SourceURL       string       `json:"sourceUrl,omitempty"`
	Hash            string       `json:"hash"`
	ScrapedAt       time.Time    `json:"scrapedAt"`
}

// Missing returns the names of absent mandatory fields.
func (p *Posting) Missing() []string {
	var missing []string
	if p.Title == "" {
		missing = append(missing, "title")
	}
	if p.Company == "" {
		missing = append(missing, "company")
	}
	if p.Location == "" {
		missing = append(missing, "location")
	}
	if p.ApplyURL == "" {
		missing = append(missing, "apply_url")
	}
	return missing
}

// HasSalary reports whether any numeric salary bound is known.
func (p *Posting) HasSalary() bool {
	return p.SalaryMin > 0 || p.SalaryMax > 0
}

// Contact is a recruiter or hiring contact discovered while scraping.
type Contact struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact"`
	Company string `json:"company,omitempty"`
	Source  string `json:"source"`
}

// ScrapeResult is what one source returns for one query.
type ScrapeResult struct {
	Jobs       []*Posting `json:"jobs"`
	Contacts   []Contact  `json:"contacts,omitempty"`
	Errors     []string   `json:"errors,omitempty"`
	TotalFound int        `json:"totalFound"`
	NewSaved   int        `json:"newSaved"`
}

func (r *ScrapeResult) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

func (r *ScrapeResult) Failed() bool {
	return len(r.Errors) > 0
}

// RunStatus is the lifecycle state of one orchestration run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Run identifies one orchestrator invocation.
type Run struct {
	ID           string        `json:"id"`
	Requester    string        `json:"requester,omitempty"`
	Trigger      string        `json:"trigger,omitempty"`
	Status       RunStatus     `json:"status"`
	Platforms    []string      `json:"platforms"`
	Profiles     []string      `json:"profiles,omitempty"`
	Found        int           `json:"found"`
	New          int           `json:"new"`
	ErrorCount   int           `json:"errorCount"`
	Duration     time.Duration `json:"duration"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt,omitempty"`
	ErrorSummary string        `json:"errorSummary,omitempty"`
}

type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogError   LogStatus = "error"
)

// Log records the outcome of one source inside one run.
type Log struct {
	ID        string        `json:"id"`
	RunID     string        `json:"runId"`
	Platform  string        `json:"platform"`
	Status    LogStatus     `json:"status"`
	Duration  time.Duration `json:"duration"`
	Count     int           `json:"count"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// RemotePreference is how strongly a candidate wants remote work.
type RemotePreference string

const (
	RemoteOnly         RemotePreference = "only"
	RemoteHybrid       RemotePreference = "hybrid"
	RemoteNoPreference RemotePreference = "no-preference"
)

// SearchProfile is a user's saved search. It is owned by the account layer;
// the pipeline only reads it.
type SearchProfile struct {
	ID              string   `json:"id" mapstructure:"id"`
	UserID          string   `json:"userId" mapstructure:"user-id"`
	Name            string   `json:"name" mapstructure:"name"`
	JobTitles       []string `json:"jobTitles" mapstructure:"job-titles"`
	Skills          []string `json:"skills,omitempty" mapstructure:"skills"`
	Locations       []string `json:"locations,omitempty" mapstructure:"locations"`
	Remote          bool     `json:"remote" mapstructure:"remote"`
	SalaryMin       float64  `json:"salaryMin,omitempty" mapstructure:"salary-min"`
	SalaryMax       float64  `json:"salaryMax,omitempty" mapstructure:"salary-max"`
	IncludeKeywords []string `json:"includeKeywords,omitempty" mapstructure:"include-keywords"`
	ExcludeKeywords []string `json:"excludeKeywords,omitempty" mapstructure:"exclude-keywords"`
	Platforms       []string `json:"platforms,omitempty" mapstructure:"platforms"`
	Active          bool     `json:"active" mapstructure:"active"`
}

// ParsedResume is the structured résumé produced by the upload pipeline.
type ParsedResume struct {
	TechnicalSkills    []string         `json:"technicalSkills" mapstructure:"technical-skills"`
	SoftSkills         []string         `json:"softSkills,omitempty" mapstructure:"soft-skills"`
	PastTitles         []string         `json:"pastTitles,omitempty" mapstructure:"past-titles"`
	YearsExperience    float64          `json:"yearsExperience,omitempty" mapstructure:"years-experience"`
	DesiredRoles       []string         `json:"desiredRoles,omitempty" mapstructure:"desired-roles"`
	SalaryMin          float64          `json:"salaryMin,omitempty" mapstructure:"salary-min"`
	SalaryMax          float64          `json:"salaryMax,omitempty" mapstructure:"salary-max"`
	PreferredLocations []string         `json:"preferredLocations,omitempty" mapstructure:"preferred-locations"`
	Remote             RemotePreference `json:"remote,omitempty" mapstructure:"remote"`
}
