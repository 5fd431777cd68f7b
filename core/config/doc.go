// Package config provides configuration management for infoblox-sync.
//
// It uses Viper for loading configuration from environment variables and an optional
// .env file. Defaults come from the `default` struct tags of every section.
//
// # Configuration Structure
//
//   - Server: HTTP server settings (port, API key, timeouts)
//   - Database: inventory database connection (mysql, postgres, sqlite)
//   - Storage: S3/MinIO credentials and the report bucket
//   - Log: Logging level and format
//   - Infoblox: WAPI URL, credentials, views and request tuning
//   - Sync: default direction, workers and report archiving
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Infoblox.URL)
package config
