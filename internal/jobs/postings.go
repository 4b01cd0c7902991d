package jobs

import (
	"encoding/json"
	"fmt"
	"os"
)

// Postings is an ordered batch of postings.
type Postings struct {
	Items []*Posting
}

func NewPostings(items []*Posting) *Postings {
	return &Postings{Items: items}
}

func (p *Postings) Len() int {
	return len(p.Items)
}

func (p *Postings) Hashes() []string {
	hashes := make([]string, 0, len(p.Items))
	for _, posting := range p.Items {
		hashes = append(hashes, posting.Hash)
	}
	return hashes
}

func (p *Postings) FindByHash(hash string) *Posting {
	for _, posting := range p.Items {
		if posting.Hash == hash {
			return posting
		}
	}
	return nil
}

// Keep retains the postings for which keep returns true, preserving order,
// and returns the hashes of the dropped ones.
func (p *Postings) Keep(keep func(*Posting) bool) []string {
	var dropped []string
	kept := p.Items[:0]
	for _, posting := range p.Items {
		if keep(posting) {
			kept = append(kept, posting)
			continue
		}
		dropped = append(dropped, posting.Hash)
	}
	for i := len(kept); i < len(p.Items); i++ {
		p.Items[i] = nil
	}
	p.Items = kept
	return dropped
}

// ReportByPlatform groups a short human summary of every posting by its platform.
func (p *Postings) ReportByPlatform() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, posting := range p.Items {
		entry := map[string]string{
			"title":    posting.Title,
			"company":  posting.Company,
			"location": posting.Location,
			"url":      posting.ApplyURL,
			"remote":   fmt.Sprintf("%t", posting.Remote),
		}
		if posting.HasSalary() {
			entry["salary"] = fmt.Sprintf("%.2f-%.2f/h (%s)", posting.SalaryMin, posting.SalaryMax, posting.SalaryPeriod)
		}
		if !posting.PostedAt.IsZero() {
			entry["posted_at"] = posting.PostedAt.Format("2006-01-02 15:04")
		}
		report[posting.Platform] = append(report[posting.Platform], entry)
	}
	return report
}

// DumpToTmpFile writes the batch as indented JSON to a new temp file and returns its name.
func (p *Postings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p.Items); err != nil {
		return "", err
	}
	return file.Name(), nil
}
