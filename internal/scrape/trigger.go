package scrape

import (
	"context"

	"github.com/spigell/job-radar/internal/jobs"
)

// TriggerAPI is the trigger name recorded for runs started through Trigger.
const TriggerAPI = "api"

// TriggerRequest is the payload of an on-demand scrape.
type TriggerRequest struct {
	SearchQuery     string            `json:"searchQuery" binding:"required"`
	Location        string            `json:"location,omitempty"`
	MaxResults      int               `json:"maxResults,omitempty"`
	PostedWithin    jobs.PostedWithin `json:"postedWithin,omitempty"`
	Remote          bool              `json:"remote,omitempty"`
	EmploymentTypes []string          `json:"employmentTypes,omitempty"`
	Platforms       []string          `json:"platforms"`
}

type TriggerResponse struct {
	RunID      string         `json:"runId,omitempty"`
	Status     jobs.RunStatus `json:"status,omitempty"`
	TotalFound int            `json:"totalFound"`
	NewJobs    int            `json:"newJobs"`
	Duplicates int            `json:"duplicates"`
	Errors     []string       `json:"errors"`
}

func (r TriggerRequest) Options() jobs.ScrapeOptions {
	return jobs.ScrapeOptions{
		Query:           r.SearchQuery,
		Location:        r.Location,
		MaxResults:      r.MaxResults,
		PostedWithin:    r.PostedWithin,
		RemoteOnly:      r.Remote,
		EmploymentTypes: r.EmploymentTypes,
	}
}

// Trigger starts a run on behalf of requester and waits for it to finish.
// The response is populated even when an error is returned, so callers can
// report unknown platforms.
func (o *Orchestrator) Trigger(ctx context.Context, req TriggerRequest, requester string) (*TriggerResponse, error) {
	summary, err := o.ScrapeAll(ctx, Request{
		Options:   req.Options(),
		Platforms: req.Platforms,
		Requester: requester,
		Trigger:   TriggerAPI,
	})
	resp := &TriggerResponse{Errors: []string{}}
	if summary != nil {
		resp.RunID = summary.RunID
		resp.Status = summary.Status
		resp.TotalFound = summary.TotalFound
		resp.NewJobs = summary.NewJobs
		resp.Duplicates = summary.Duplicates
		resp.Errors = summary.Errors
	}
	return resp, err
}
