package analysis

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is a step of the upload flow.
type State string

const (
	StateIdle         State = "Idle"
	StateFileSelected State = "FileSelected"
	StateProcessing   State = "Processing"
	StateComplete     State = "Complete"
	StateFailed       State = "Failed"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoFile            = errors.New("no file selected")
)

// SelectedFile is an upload that passed ingress validation.
type SelectedFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum,omitempty"`
}

// Session is one visitor's pass through the upload flow.
//
//	Idle -> FileSelected -> Processing -> Complete | Failed
//
// Complete and Failed are left only through Reset, except that Retry takes a
// Failed session back to FileSelected with the same file.
type Session struct {
	mu        sync.Mutex
	id        string
	state     State
	file      *SelectedFile
	result    *Result
	failure   error
	createdAt time.Time
	updatedAt time.Time
	onChange  func(id string, from, to State)
}

// SessionView is a read-only copy of a session.
type SessionView struct {
	ID        string        `json:"id"`
	State     State         `json:"state"`
	File      *SelectedFile `json:"file,omitempty"`
	Result    *Result       `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func NewSession(id string, now time.Time) *Session {
	return &Session{id: id, state: StateIdle, createdAt: now, updatedAt: now}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SessionView{
		ID:        s.id,
		State:     s.state,
		Result:    s.result,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.file != nil {
		f := *s.file
		v.File = &f
	}
	if s.failure != nil {
		v.Error = s.failure.Error()
	}
	return v
}

func (s *Session) touched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// apply runs step under mu and, when it succeeds, moves the session to the
// state it returns. onChange is called after mu is released so it may read
// the session.
func (s *Session) apply(step func() (State, error)) error {
	s.mu.Lock()
	from := s.state
	to, err := step()
	if err == nil {
		s.state = to
		s.updatedAt = time.Now()
	}
	notify := s.onChange
	s.mu.Unlock()

	if err == nil && notify != nil && from != to {
		notify(s.id, from, to)
	}
	return err
}

func (s *Session) invalid(action string) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, s.state)
}

// Select records a validated file. Choosing another file before processing
// replaces the first one.
func (s *Session) Select(file SelectedFile) error {
	return s.apply(func() (State, error) {
		if s.state != StateIdle && s.state != StateFileSelected {
			return "", s.invalid("select a file")
		}
		s.file = &file
		s.failure = nil
		return StateFileSelected, nil
	})
}

// Begin starts processing and returns the file to process.
func (s *Session) Begin() (SelectedFile, error) {
	var file SelectedFile
	err := s.apply(func() (State, error) {
		if s.state != StateFileSelected {
			return "", s.invalid("begin processing")
		}
		if s.file == nil {
			return "", ErrNoFile
		}
		file = *s.file
		return StateProcessing, nil
	})
	return file, err
}

func (s *Session) Complete(result Result) error {
	return s.apply(func() (State, error) {
		if s.state != StateProcessing {
			return "", s.invalid("complete")
		}
		s.result = &result
		s.failure = nil
		return StateComplete, nil
	})
}

func (s *Session) Fail(cause error) error {
	return s.apply(func() (State, error) {
		if s.state != StateProcessing {
			return "", s.invalid("fail")
		}
		if cause == nil {
			cause = errors.New("processing failed")
		}
		s.failure = cause
		return StateFailed, nil
	})
}

// Retry returns a failed session to FileSelected, keeping its file.
func (s *Session) Retry() error {
	return s.apply(func() (State, error) {
		if s.state != StateFailed {
			return "", s.invalid("retry")
		}
		s.failure = nil
		return StateFileSelected, nil
	})
}

// Reset is allowed from every state.
func (s *Session) Reset() {
	_ = s.apply(func() (State, error) {
		s.file = nil
		s.result = nil
		s.failure = nil
		return StateIdle, nil
	})
}
