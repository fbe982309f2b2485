package store

import (
	"fmt"

	"github.com/ariebrainware/agendamento/config"
	"gorm.io/gorm"
)

// Open picks the backend named by cfg.StoreDriver. The Redis backend needs
// config.ConnectRedis to have succeeded; the gorm backend uses db.
func Open(cfg *config.Config, db *gorm.DB) (KV, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverRedis:
		rdb := config.GetRedisClient()
		if rdb == nil {
			return nil, fmt.Errorf("STORE_DRIVER=redis needs REDIS_ENABLED=true")
		}
		return NewRedisStore(rdb, cfg.AppName+":"), nil
	case config.StoreDriverGorm, "":
		if db == nil {
			return nil, fmt.Errorf("STORE_DRIVER=gorm needs a database")
		}
		return NewGormStore(db)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
