package server

import (
	"fmt"
	"strconv"
)

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// ReadTimeoutSeconds bounds reading a request.
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds" default:"30"`
	// WriteTimeoutSeconds bounds writing a response. Sync runs can be long.
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds" default:"600"`
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

// Validate checks the port is a usable TCP port.
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port %q", c.Port)
	}
	return nil
}
