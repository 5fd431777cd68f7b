// Package database handles inventory database connections and schema inspection.
//
// It provides a wrapper around GORM to configure MySQL, PostgreSQL or SQLite connections
// based on the application's configuration.
//
// # Connect
//
// Connect picks the dialector from Config.Driver, enables error translation so duplicate
// keys surface as gorm.ErrDuplicatedKey, and pings the database before returning.
//
// # Schema Inspection
//
// GetTableColumns and RequireColumns let the inventory adapter verify that the tables it
// reads have the expected columns before a snapshot is loaded.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	err = database.RequireColumns(db, "ipam_prefixes", "id", "prefix")
package database
