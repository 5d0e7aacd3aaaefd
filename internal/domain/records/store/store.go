// Package store persists road records. Every driver satisfies RecordStore;
// callers treat ErrUnavailable as non-fatal and fall back to placeholders.
package store

import (
	"context"
	"errors"
	"fmt"

	"roadscan-server-go/internal/domain/records"
)

var (
	// ErrUnavailable means the backend could not serve the call.
	ErrUnavailable = errors.New("record store unavailable")
	// ErrNotFound means the backend answered but holds no such record.
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a unique constraint rejected the insert.
	ErrConflict = errors.New("record already exists")
)

// RecordStore is the find-one / insert surface the analysis flow relies on.
// Insert methods assign an id and creation time when the record has none and
// return the stored form.
type RecordStore interface {
	InsertUpload(ctx context.Context, upload records.Upload) (records.Upload, error)
	FindUpload(ctx context.Context, id string) (records.Upload, error)
	InsertAnalysis(ctx context.Context, analysis records.AnalysisResult) (records.AnalysisResult, error)
	FindAnalysisByUpload(ctx context.Context, uploadID string) (records.AnalysisResult, error)
	InsertConditions(ctx context.Context, conditions []records.RoadCondition) ([]records.RoadCondition, error)
	FindConditions(ctx context.Context, analysisID string) ([]records.RoadCondition, error)
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
