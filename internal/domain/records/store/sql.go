package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	"roadscan-server-go/internal/domain/records"
	"roadscan-server-go/internal/platform/storage"
)

// sqlStore backs records with gorm. The same code serves sqlite and postgres;
// dialect only shows up in Stats.
type sqlStore struct {
	db      *gorm.DB
	dialect string
	timeout time.Duration
	now     func() time.Time
}

// NewSQL wraps an already migrated gorm handle.
func NewSQL(db *gorm.DB, dialect string, timeout time.Duration) (RecordStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%s store requires database handle", dialect)
	}
	return &sqlStore{
		db:      db,
		dialect: dialect,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

func (s *sqlStore) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, s.timeout)
}

func (s *sqlStore) translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return unavailable(op, err)
	}
}

func (s *sqlStore) InsertUpload(ctx context.Context, upload records.Upload) (records.Upload, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	upload = stampUpload(upload, s.now())
	row := storage.UploadRecord{
		ID:               upload.ID,
		UserID:           upload.UserID,
		ImageURL:         upload.ImageURL,
		Status:           upload.Status,
		DamagePercentage: upload.DamagePercentage,
		CreatedAt:        upload.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return records.Upload{}, s.translate("insert upload", err)
	}
	return upload, nil
}

func (s *sqlStore) FindUpload(ctx context.Context, id string) (records.Upload, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var row storage.UploadRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return records.Upload{}, notFound("upload", id)
	}
	if err != nil {
		return records.Upload{}, s.translate("find upload", err)
	}
	return records.Upload{
		ID:               row.ID,
		UserID:           row.UserID,
		ImageURL:         row.ImageURL,
		Status:           row.Status,
		DamagePercentage: row.DamagePercentage,
		CreatedAt:        row.CreatedAt,
	}, nil
}

func (s *sqlStore) InsertAnalysis(ctx context.Context, analysis records.AnalysisResult) (records.AnalysisResult, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	analysis = stampAnalysis(analysis, s.now())
	row := storage.AnalysisRecord{
		ID:                        analysis.ID,
		UploadID:                  analysis.UploadID,
		SurfaceCondition:          analysis.SurfaceCondition,
		DefectCount:               analysis.DefectCount,
		MaintenanceRecommendation: analysis.MaintenanceRecommendation,
		CreatedAt:                 analysis.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return records.AnalysisResult{}, s.translate("insert analysis", err)
	}
	return analysis, nil
}

func (s *sqlStore) FindAnalysisByUpload(ctx context.Context, uploadID string) (records.AnalysisResult, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var row storage.AnalysisRecord
	err := s.db.WithContext(ctx).Where("upload_id = ?", uploadID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return records.AnalysisResult{}, notFound("analysis for upload", uploadID)
	}
	if err != nil {
		return records.AnalysisResult{}, s.translate("find analysis", err)
	}
	return records.AnalysisResult{
		ID:                        row.ID,
		UploadID:                  row.UploadID,
		SurfaceCondition:          row.SurfaceCondition,
		DefectCount:               row.DefectCount,
		MaintenanceRecommendation: row.MaintenanceRecommendation,
		CreatedAt:                 row.CreatedAt,
	}, nil
}

func (s *sqlStore) InsertConditions(ctx context.Context, conditions []records.RoadCondition) ([]records.RoadCondition, error) {
	if len(conditions) == 0 {
		return nil, nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	stamped := stampConditions(conditions, s.now())
	rows := make([]storage.RoadConditionRecord, 0, len(stamped))
	for _, c := range stamped {
		coords, err := sonic.Marshal(c.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("encode coordinates for %s: %w", c.ID, err)
		}
		rows = append(rows, storage.RoadConditionRecord{
			ID:            c.ID,
			AnalysisID:    c.AnalysisID,
			Location:      c.Location,
			ConditionType: c.ConditionType,
			Severity:      c.Severity,
			Coordinates:   coords,
			CreatedAt:     c.CreatedAt,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, s.translate("insert conditions", err)
	}
	return stamped, nil
}

func (s *sqlStore) FindConditions(ctx context.Context, analysisID string) ([]records.RoadCondition, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var rows []storage.RoadConditionRecord
	if err := s.db.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, s.translate("find conditions", err)
	}

	out := make([]records.RoadCondition, 0, len(rows))
	for _, row := range rows {
		c := records.RoadCondition{
			ID:            row.ID,
			AnalysisID:    row.AnalysisID,
			Location:      row.Location,
			ConditionType: row.ConditionType,
			Severity:      row.Severity,
			CreatedAt:     row.CreatedAt,
		}
		if len(row.Coordinates) > 0 {
			if err := sonic.Unmarshal(row.Coordinates, &c.Coordinates); err != nil {
				return nil, fmt.Errorf("decode coordinates for %s: %w", row.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *sqlStore) Stats(ctx context.Context) (map[string]any, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	counts := map[string]int64{}
	for name, model := range map[string]any{
		"uploads":    &storage.UploadRecord{},
		"analyses":   &storage.AnalysisRecord{},
		"conditions": &storage.RoadConditionRecord{},
	} {
		var n int64
		if err := s.db.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
			return map[string]any{"type": s.dialect, "available": false}, s.translate("stats", err)
		}
		counts[name] = n
	}
	return map[string]any{
		"type":       s.dialect,
		"available":  true,
		"uploads":    counts["uploads"],
		"analyses":   counts["analyses"],
		"conditions": counts["conditions"],
	}, nil
}

// Close is a no-op; the handle belongs to whoever opened it.
func (s *sqlStore) Close(context.Context) error {
	return nil
}
