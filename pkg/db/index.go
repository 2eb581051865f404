package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Factory maps a database type to its dialector constructor.
var Factory = map[string]func(string) gorm.Dialector{}

// Open connects to dsn with the dialector registered for dbType.
func Open(dbType, dsn string) (*gorm.DB, error) {
	factory, ok := Factory[dbType]
	if !ok {
		return nil, fmt.Errorf("db type not found %s", dbType)
	}
	return gorm.Open(factory(dsn), &gorm.Config{})
}
