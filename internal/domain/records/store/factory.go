package store

import (
	"fmt"

	"gorm.io/gorm"

	"roadscan-server-go/internal/platform/config"
)

// Dependencies carries handles opened elsewhere. The sql drivers need DB.
type Dependencies struct {
	DB *gorm.DB
}

// New builds the store named by cfg.Driver.
func New(cfg config.StoreConfig, deps Dependencies) (RecordStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverNull
	}

	switch driver {
	case config.DriverNull:
		return NewNull(""), nil
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverSQLite, config.DriverPostgres:
		if deps.DB == nil {
			return nil, fmt.Errorf("%s driver requires database handle", driver)
		}
		return NewSQL(deps.DB, driver, cfg.Timeout)
	case config.DriverRedis:
		return NewRedis(cfg.Redis, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported record store driver: %s", driver)
	}
}
