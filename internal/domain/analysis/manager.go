package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"roadscan-server-go/internal/domain/estimator"
	"roadscan-server-go/internal/domain/eventbus"
	"roadscan-server-go/internal/domain/image"
	"roadscan-server-go/internal/utils"
)

// ManagerOptions tunes session retention.
type ManagerOptions struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// Manager owns the in-memory sessions and drives them through the service.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	opts     ManagerOptions
	service  *Service
	pipeline *image.Pipeline
	events   Publisher
	logger   *utils.Logger
	now      func() time.Time
}

func NewManager(opts ManagerOptions, service *Service, pipeline *image.Pipeline, events Publisher, logger *utils.Logger) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = utils.MinDuration(opts.TTL/2, time.Minute)
	}
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
		service:  service,
		pipeline: pipeline,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *Manager) onChange(id string, from, to State) {
	if m.events != nil {
		m.events.PublishAsync(eventbus.EventSessionTransition, eventbus.SessionEventData{
			SessionID: id,
			From:      string(from),
			To:        string(to),
		})
	}
}

// Create starts a new session in Idle.
func (m *Manager) Create() SessionView {
	s := NewSession(uuid.NewString(), m.now())
	s.onChange = m.onChange

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s.View()
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

func (m *Manager) Get(id string) (SessionView, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	return s.View(), nil
}

// SelectFile validates an upload and attaches it to the session. A rejected
// file leaves the session where it was.
func (m *Manager) SelectFile(ctx context.Context, id string, input image.Input) (SessionView, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	if st := s.State(); st != StateIdle && st != StateFileSelected {
		return s.View(), fmt.Errorf("%w: cannot select a file from %s", ErrInvalidTransition, st)
	}

	out, err := m.pipeline.Process(ctx, input)
	if err != nil {
		m.logger.InfoTag("Analysis", "session %s rejected %q: %v", id, input.Filename, err)
		return s.View(), err
	}

	if err := s.Select(SelectedFile{
		Name:        out.Filename,
		ContentType: out.ContentType,
		Size:        int64(len(out.Bytes)),
		Checksum:    out.Checksum,
	}); err != nil {
		return s.View(), err
	}
	return s.View(), nil
}

// AnalyzeOptions overrides the service defaults for one run.
type AnalyzeOptions struct {
	Rule    estimator.Rule
	Summary string
}

// Analyze runs the selected file through the service. The session ends in
// Complete or Failed; on failure the error is returned alongside the view.
func (m *Manager) Analyze(ctx context.Context, id string, opts AnalyzeOptions) (SessionView, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	file, err := s.Begin()
	if err != nil {
		return s.View(), err
	}

	result, runErr := m.service.Analyze(ctx, Request{
		SessionID: id,
		FileName:  file.Name,
		Rule:      opts.Rule,
		Summary:   opts.Summary,
	})
	if runErr != nil {
		if err := s.Fail(runErr); err != nil {
			return s.View(), err
		}
		return s.View(), runErr
	}
	if err := s.Complete(result); err != nil {
		return s.View(), err
	}
	return s.View(), nil
}

func (m *Manager) Retry(id string) (SessionView, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	if err := s.Retry(); err != nil {
		return s.View(), err
	}
	return s.View(), nil
}

func (m *Manager) Reset(id string) (SessionView, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	s.Reset()
	return s.View(), nil
}

// Delete forgets a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions untouched for longer than the TTL. Sessions that are
// still processing are kept.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.State() == StateProcessing {
			continue
		}
		if now.Sub(s.touched()) > m.opts.TTL {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.DebugTag("Analysis", "swept %d idle sessions", removed)
	}
	return removed
}

// Run sweeps on an interval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}
