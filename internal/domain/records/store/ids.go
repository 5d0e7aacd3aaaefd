package store

import (
	"time"

	"github.com/google/uuid"

	"roadscan-server-go/internal/domain/records"
)

func stampUpload(u records.Upload, now time.Time) records.Upload {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UserID == "" {
		u.UserID = records.AnonymousUser
	}
	if u.Status == "" {
		u.Status = records.StatusPending
	}
	return u
}

func stampAnalysis(a records.AnalysisResult, now time.Time) records.AnalysisResult {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	return a
}

func stampConditions(in []records.RoadCondition, now time.Time) []records.RoadCondition {
	out := make([]records.RoadCondition, len(in))
	for i, c := range in {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		out[i] = c
	}
	return out
}
