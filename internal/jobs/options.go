package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const DefaultMaxResults = 25

// PostedWithin is the freshness window a caller asks for.
type PostedWithin string

const (
	Within24h PostedWithin = "24h"
	Within3d  PostedWithin = "3d"
	Within7d  PostedWithin = "7d"
	Within14d PostedWithin = "14d"
	Within30d PostedWithin = "30d"
)

var windows = map[PostedWithin]time.Duration{
	Within24h: 24 * time.Hour,
	Within3d:  3 * 24 * time.Hour,
	Within7d:  7 * 24 * time.Hour,
	Within14d: 14 * 24 * time.Hour,
	Within30d: 30 * 24 * time.Hour,
}

// Duration returns the window length. ok is false for an empty or unknown window.
func (p PostedWithin) Duration() (time.Duration, bool) {
	d, ok := windows[p]
	return d, ok
}

// Days returns the window rounded up to whole days, or 0 when unbounded.
func (p PostedWithin) Days() int {
	d, ok := p.Duration()
	if !ok {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// ScrapeOptions is the search a caller hands to every source of one run.
type ScrapeOptions struct {
	Query           string       `json:"searchQuery" mapstructure:"query"`
	Location        string       `json:"location,omitempty" mapstructure:"location"`
	MaxResults      int          `json:"maxResults,omitempty" mapstructure:"max-results"`
	PostedWithin    PostedWithin `json:"postedWithin,omitempty" mapstructure:"posted-within"`
	RemoteOnly      bool         `json:"remote,omitempty" mapstructure:"remote"`
	EmploymentTypes []string     `json:"employmentTypes,omitempty" mapstructure:"employment-types"`
}

// WithDefaults returns a copy with empty fields filled.
func (o ScrapeOptions) WithDefaults() ScrapeOptions {
	o.Query = strings.TrimSpace(o.Query)
	o.Location = strings.TrimSpace(o.Location)
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	types := make([]string, 0, len(o.EmploymentTypes))
	for _, t := range o.EmploymentTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			types = append(types, t)
		}
	}
	o.EmploymentTypes = types
	return o
}

func (o ScrapeOptions) Validate() error {
	if strings.TrimSpace(o.Query) == "" {
		return errors.New("search query is required")
	}
	if o.MaxResults < 0 {
		return fmt.Errorf("max results must not be negative, got %d", o.MaxResults)
	}
	if o.PostedWithin != "" {
		if _, ok := o.PostedWithin.Duration(); !ok {
			return fmt.Errorf("unsupported posted-within window %q", o.PostedWithin)
		}
	}
	return nil
}

// Fresh reports whether postedAt falls inside the requested window, measured from now.
// Without a window every posting is fresh.
func (o ScrapeOptions) Fresh(postedAt, now time.Time) bool {
	d, ok := o.PostedWithin.Duration()
	if !ok {
		return true
	}
	return now.Sub(postedAt) <= d
}
