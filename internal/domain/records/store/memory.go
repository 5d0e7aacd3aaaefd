package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"roadscan-server-go/internal/domain/records"
)

type memoryStore struct {
	mutex            sync.RWMutex
	uploads          map[string]records.Upload
	analyses         map[string]records.AnalysisResult
	analysisByUpload map[string]string
	conditions       map[string][]records.RoadCondition
	now              func() time.Time
}

// NewMemory builds a process-local store. Records are lost on restart.
func NewMemory() RecordStore {
	return &memoryStore{
		uploads:          make(map[string]records.Upload),
		analyses:         make(map[string]records.AnalysisResult),
		analysisByUpload: make(map[string]string),
		conditions:       make(map[string][]records.RoadCondition),
		now:              time.Now,
	}
}

func (s *memoryStore) InsertUpload(ctx context.Context, upload records.Upload) (records.Upload, error) {
	if err := ctx.Err(); err != nil {
		return records.Upload{}, unavailable("insert upload", err)
	}
	upload = stampUpload(upload, s.now())

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, exists := s.uploads[upload.ID]; exists {
		return records.Upload{}, ErrConflict
	}
	s.uploads[upload.ID] = upload
	return upload, nil
}

func (s *memoryStore) FindUpload(_ context.Context, id string) (records.Upload, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	upload, ok := s.uploads[id]
	if !ok {
		return records.Upload{}, notFound("upload", id)
	}
	return upload, nil
}

func (s *memoryStore) InsertAnalysis(ctx context.Context, analysis records.AnalysisResult) (records.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return records.AnalysisResult{}, unavailable("insert analysis", err)
	}
	analysis = stampAnalysis(analysis, s.now())

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, exists := s.analysisByUpload[analysis.UploadID]; exists {
		return records.AnalysisResult{}, ErrConflict
	}
	if _, exists := s.analyses[analysis.ID]; exists {
		return records.AnalysisResult{}, ErrConflict
	}
	s.analyses[analysis.ID] = analysis
	s.analysisByUpload[analysis.UploadID] = analysis.ID
	return analysis, nil
}

func (s *memoryStore) FindAnalysisByUpload(_ context.Context, uploadID string) (records.AnalysisResult, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	id, ok := s.analysisByUpload[uploadID]
	if !ok {
		return records.AnalysisResult{}, notFound("analysis for upload", uploadID)
	}
	return s.analyses[id], nil
}

func (s *memoryStore) InsertConditions(ctx context.Context, conditions []records.RoadCondition) ([]records.RoadCondition, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("insert conditions", err)
	}
	stamped := stampConditions(conditions, s.now())

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, c := range stamped {
		s.conditions[c.AnalysisID] = append(s.conditions[c.AnalysisID], c)
	}
	return stamped, nil
}

func (s *memoryStore) FindConditions(_ context.Context, analysisID string) ([]records.RoadCondition, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	found := s.conditions[analysisID]
	out := make([]records.RoadCondition, len(found))
	copy(out, found)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	conditions := 0
	for _, list := range s.conditions {
		conditions += len(list)
	}
	return map[string]any{
		"type":       "memory",
		"available":  true,
		"uploads":    len(s.uploads),
		"analyses":   len(s.analyses),
		"conditions": conditions,
	}, nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
