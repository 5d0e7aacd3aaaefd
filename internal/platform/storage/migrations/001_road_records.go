package migrations

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Table shapes as of this migration. They are frozen here so later model
// changes do not rewrite history.
type upload001 struct {
	ID               string    `gorm:"primaryKey;type:varchar(64)"`
	UserID           string    `gorm:"type:varchar(255);index;not null"`
	ImageURL         string    `gorm:"type:text;not null"`
	Status           string    `gorm:"type:varchar(32);not null"`
	DamagePercentage *float64
	CreatedAt        time.Time `gorm:"index"`
}

func (upload001) TableName() string { return "uploads" }

type analysis001 struct {
	ID                        string  `gorm:"primaryKey;type:varchar(64)"`
	UploadID                  string  `gorm:"type:varchar(64);uniqueIndex;not null"`
	SurfaceCondition          string  `gorm:"type:varchar(32);not null"`
	DefectCount               int     `gorm:"not null;default:0"`
	MaintenanceRecommendation *string `gorm:"type:text"`
	CreatedAt                 time.Time
}

func (analysis001) TableName() string { return "analysis_results" }

type roadCondition001 struct {
	ID            string         `gorm:"primaryKey;type:varchar(128)"`
	AnalysisID    string         `gorm:"type:varchar(64);index;not null"`
	Location      string         `gorm:"type:varchar(255)"`
	ConditionType string         `gorm:"type:varchar(255)"`
	Severity      string         `gorm:"type:varchar(16);not null"`
	Coordinates   datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time
}

func (roadCondition001) TableName() string { return "road_conditions" }

// Migration001RoadRecords creates the upload, analysis and condition tables.
type Migration001RoadRecords struct{}

func (m *Migration001RoadRecords) Version() string {
	return "001_road_records"
}

func (m *Migration001RoadRecords) Description() string {
	return "Create uploads, analysis_results and road_conditions tables"
}

// Up goes through the gorm migrator so the same migration runs on sqlite and postgres.
func (m *Migration001RoadRecords) Up(db *gorm.DB) error {
	migrator := db.Migrator()
	for _, table := range []any{&upload001{}, &analysis001{}, &roadCondition001{}} {
		if migrator.HasTable(table) {
			continue
		}
		if err := migrator.CreateTable(table); err != nil {
			return err
		}
	}
	return nil
}
