package db

import (
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const sqlitePrefix = "sqlite:"

// Open picks the dialect from the DSN: "sqlite:<path>" opens a pure-Go SQLite
// database, anything else is handed to the MySQL driver. SQL errors are
// logged through log; a nil log discards them.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: NewGormLogger(log)}
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return gorm.Open(gormsqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), cfg)
	}
	return gorm.Open(mysql.Open(dsn), cfg)
}

// Connect is Open for process entry points: it also migrates models.
func Connect(dsn string, log *zap.Logger, models ...any) (*gorm.DB, error) {
	gdb, err := Open(dsn, log)
	if err != nil {
		return nil, common.Wrap(err, "db connect")
	}
	if len(models) > 0 {
		if err := gdb.AutoMigrate(models...); err != nil {
			return nil, common.Wrap(err, "db automigrate")
		}
	}
	return gdb, nil
}
