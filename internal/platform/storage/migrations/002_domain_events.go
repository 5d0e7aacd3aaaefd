package migrations

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type domainEvent002 struct {
	ID        uint           `gorm:"primaryKey"`
	EventType string         `gorm:"index;not null"`
	SessionID string         `gorm:"index"`
	UserID    string         `gorm:"index"`
	Data      datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"index"`
}

func (domainEvent002) TableName() string { return "domain_events" }

// Migration002DomainEvents adds the analysis event journal.
type Migration002DomainEvents struct{}

func (m *Migration002DomainEvents) Version() string {
	return "002_domain_events"
}

func (m *Migration002DomainEvents) Description() string {
	return "Create domain_events journal table"
}

func (m *Migration002DomainEvents) Up(db *gorm.DB) error {
	if db.Migrator().HasTable(&domainEvent002{}) {
		return nil
	}
	return db.Migrator().CreateTable(&domainEvent002{})
}
