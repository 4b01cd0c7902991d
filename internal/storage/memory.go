package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spigell/job-radar/internal/jobs"
)

// Memory keeps everything in process. It backs tests and single-shot CLI runs.
type Memory struct {
	mu           sync.RWMutex
	postings     map[string]*jobs.Posting
	order        []string
	runs         map[string]*jobs.Run
	logs         map[string][]*jobs.Log
	profiles     map[string]*jobs.SearchProfile
	profileOrder []string
}

func NewMemory() *Memory {
	return &Memory{
		postings: make(map[string]*jobs.Posting),
		runs:     make(map[string]*jobs.Run),
		logs:     make(map[string][]*jobs.Log),
		profiles: make(map[string]*jobs.SearchProfile),
	}
}

func (m *Memory) InsertPosting(_ context.Context, p *jobs.Posting) (bool, error) {
	if err := validatePosting(p); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.postings[p.Hash]; ok {
		return false, nil
	}
	stored := *p
	m.postings[p.Hash] = &stored
	m.order = append(m.order, p.Hash)
	return true, nil
}

func (m *Memory) PostingByHash(_ context.Context, hash string) (*jobs.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.postings[hash]
	if !ok {
		return nil, fmt.Errorf("posting %s: %w", hash, ErrNotFound)
	}
	out := *p
	return &out, nil
}

func (m *Memory) ListPostings(_ context.Context, q Query) (*Page, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := make([]*jobs.Posting, 0, len(m.order))
	for _, hash := range m.order {
		p := m.postings[hash]
		if q.matches(p) {
			cp := *p
			matched = append(matched, &cp)
		}
	}
	m.mu.RUnlock()

	q.sort(matched)
	page := &Page{Items: []*jobs.Posting{}, Total: len(matched), Page: q.Page, PageSize: q.PageSize}
	if start := q.offset(); start < len(matched) {
		end := start + q.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = matched[start:end]
	}
	return page, nil
}

func (m *Memory) CreateRun(_ context.Context, run *jobs.Run) error {
	ensureID(&run.ID)
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *run
	m.runs[run.ID] = &stored
	return nil
}

func (m *Memory) FinishRun(_ context.Context, run *jobs.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	stored := *run
	m.runs[run.ID] = &stored
	return nil
}

func (m *Memory) Runs(_ context.Context, limit int) ([]*jobs.Run, error) {
	m.mu.RLock()
	runs := make([]*jobs.Run, 0, len(m.runs))
	for _, r := range m.runs {
		cp := *r
		runs = append(runs, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *Memory) AddLog(_ context.Context, l *jobs.Log) error {
	ensureID(&l.ID)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *l
	m.logs[l.RunID] = append(m.logs[l.RunID], &stored)
	return nil
}

func (m *Memory) RunLogs(_ context.Context, runID string) ([]*jobs.Log, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	logs := make([]*jobs.Log, 0, len(m.logs[runID]))
	for _, l := range m.logs[runID] {
		cp := *l
		logs = append(logs, &cp)
	}
	return logs, nil
}

func (m *Memory) SaveProfile(_ context.Context, p *jobs.SearchProfile) error {
	ensureID(&p.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		m.profileOrder = append(m.profileOrder, p.ID)
	}
	stored := *p
	m.profiles[p.ID] = &stored
	return nil
}

func (m *Memory) ActiveProfiles(_ context.Context) ([]*jobs.SearchProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var active []*jobs.SearchProfile
	for _, id := range m.profileOrder {
		if p := m.profiles[id]; p.Active {
			cp := *p
			active = append(active, &cp)
		}
	}
	return active, nil
}

func (m *Memory) Close() error { return nil }
