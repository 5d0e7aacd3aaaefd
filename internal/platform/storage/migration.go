package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"roadscan-server-go/internal/platform/errors"
	"roadscan-server-go/internal/platform/storage/migrations"
)

// Migration is one versioned change to the record tables. Versions sort
// lexically in the order they must run.
type Migration interface {
	Version() string
	Description() string
	Up(tx *gorm.DB) error
}

// SchemaMigration is the row written for each applied migration.
type SchemaMigration struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// SchemaStatus describes how far a database is migrated.
type SchemaStatus struct {
	Version string   `json:"version"`
	Applied []string `json:"applied"`
	Pending []string `json:"pending,omitempty"`
}

// Schema is the ordered migration list for one database.
type Schema struct {
	migrations []Migration
}

func NewSchema(ms ...Migration) *Schema {
	return &Schema{migrations: ms}
}

// RecordSchema covers the upload, analysis and road condition tables plus the
// event journal.
func RecordSchema() *Schema {
	return NewSchema(
		&migrations.Migration001RoadRecords{},
		&migrations.Migration002DomainEvents{},
	)
}

// Latest is the version the database reaches once every migration is applied.
func (s *Schema) Latest() string {
	if len(s.migrations) == 0 {
		return ""
	}
	return s.migrations[len(s.migrations)-1].Version()
}

// Apply runs pending migrations in order, one transaction each, and returns
// the versions it applied. Already applied versions are skipped.
func (s *Schema) Apply(db *gorm.DB) ([]string, error) {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "schema.apply", "failed to create schema_migrations table", err)
	}

	var done []string
	if err := db.Model(&SchemaMigration{}).Pluck("version", &done).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "schema.apply", "failed to read applied migrations", err)
	}
	seen := make(map[string]struct{}, len(done))
	for _, v := range done {
		seen[v] = struct{}{}
	}

	var ran []string
	for _, m := range s.migrations {
		if _, ok := seen[m.Version()]; ok {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{
				Version:   m.Version(),
				Name:      m.Description(),
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return ran, errors.Wrap(errors.KindStorage, "schema.apply", fmt.Sprintf("migration %s failed", m.Version()), err)
		}
		ran = append(ran, m.Version())
	}
	return ran, nil
}

// Status reports the applied versions and any registered migration the
// database has not seen yet.
func (s *Schema) Status(db *gorm.DB) (SchemaStatus, error) {
	var rows []SchemaMigration
	if err := db.Order("version ASC").Find(&rows).Error; err != nil {
		return SchemaStatus{}, errors.Wrap(errors.KindStorage, "schema.status", "failed to read schema_migrations", err)
	}

	status := SchemaStatus{Applied: make([]string, 0, len(rows))}
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		status.Applied = append(status.Applied, row.Version)
		seen[row.Version] = struct{}{}
	}
	if n := len(status.Applied); n > 0 {
		status.Version = status.Applied[n-1]
	}
	for _, m := range s.migrations {
		if _, ok := seen[m.Version()]; !ok {
			status.Pending = append(status.Pending, m.Version())
		}
	}
	return status, nil
}
