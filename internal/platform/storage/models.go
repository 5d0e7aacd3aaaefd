package storage

import (
	"time"

	"gorm.io/datatypes"
)

// UploadRecord is a row of the uploads table.
type UploadRecord struct {
	ID               string    `gorm:"primaryKey;type:varchar(64)"`
	UserID           string    `gorm:"type:varchar(255);index;not null"`
	ImageURL         string    `gorm:"type:text;not null"`
	Status           string    `gorm:"type:varchar(32);not null"`
	DamagePercentage *float64
	CreatedAt        time.Time `gorm:"index"`
}

func (UploadRecord) TableName() string {
	return "uploads"
}

// AnalysisRecord is a row of the analysis_results table. One per upload.
type AnalysisRecord struct {
	ID                        string  `gorm:"primaryKey;type:varchar(64)"`
	UploadID                  string  `gorm:"type:varchar(64);uniqueIndex;not null"`
	SurfaceCondition          string  `gorm:"type:varchar(32);not null"`
	DefectCount               int     `gorm:"not null;default:0"`
	MaintenanceRecommendation *string `gorm:"type:text"`
	CreatedAt                 time.Time
}

func (AnalysisRecord) TableName() string {
	return "analysis_results"
}

// RoadConditionRecord is a row of the road_conditions table.
// Coordinates holds a [lat, lng] JSON pair.
type RoadConditionRecord struct {
	ID            string         `gorm:"primaryKey;type:varchar(128)"`
	AnalysisID    string         `gorm:"type:varchar(64);index;not null"`
	Location      string         `gorm:"type:varchar(255)"`
	ConditionType string         `gorm:"type:varchar(255)"`
	Severity      string         `gorm:"type:varchar(16);not null"`
	Coordinates   datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time
}

func (RoadConditionRecord) TableName() string {
	return "road_conditions"
}

// DomainEvent is the journal row for a published analysis event.
type DomainEvent struct {
	ID        uint           `gorm:"primaryKey"`
	EventType string         `gorm:"index;not null"`
	SessionID string         `gorm:"index"`
	UserID    string         `gorm:"index"`
	Data      datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"index"`
}

func (DomainEvent) TableName() string {
	return "domain_events"
}
