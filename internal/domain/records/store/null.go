package store

import (
	"context"
	"errors"

	"roadscan-server-go/internal/domain/records"
)

// nullStore is the explicit "no backend" driver.
type nullStore struct {
	reason string
}

// NewNull returns a store whose every read and write fails with ErrUnavailable.
func NewNull(reason string) RecordStore {
	if reason == "" {
		reason = "no record store configured"
	}
	return &nullStore{reason: reason}
}

func (s *nullStore) err(op string) error {
	return unavailable(op, errors.New(s.reason))
}

func (s *nullStore) InsertUpload(context.Context, records.Upload) (records.Upload, error) {
	return records.Upload{}, s.err("insert upload")
}

func (s *nullStore) FindUpload(context.Context, string) (records.Upload, error) {
	return records.Upload{}, s.err("find upload")
}

func (s *nullStore) InsertAnalysis(context.Context, records.AnalysisResult) (records.AnalysisResult, error) {
	return records.AnalysisResult{}, s.err("insert analysis")
}

func (s *nullStore) FindAnalysisByUpload(context.Context, string) (records.AnalysisResult, error) {
	return records.AnalysisResult{}, s.err("find analysis")
}

func (s *nullStore) InsertConditions(context.Context, []records.RoadCondition) ([]records.RoadCondition, error) {
	return nil, s.err("insert conditions")
}

func (s *nullStore) FindConditions(context.Context, string) ([]records.RoadCondition, error) {
	return nil, s.err("find conditions")
}

func (s *nullStore) Stats(context.Context) (map[string]any, error) {
	return map[string]any{
		"type":      "null",
		"available": false,
		"reason":    s.reason,
	}, nil
}

func (s *nullStore) Close(context.Context) error {
	return nil
}
