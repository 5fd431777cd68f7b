package infoblox

import "fmt"

// Record types new active addresses are created as.
const (
	RecordHost = "host"
	RecordA    = "a"
)

// Config holds configuration for the Infoblox WAPI connection.
type Config struct {
	// URL is the appliance base URL (e.g., https://infoblox.example.com).
	URL string `mapstructure:"url" default:""`
	// Username is used for basic authentication until a session cookie is issued.
	Username string `mapstructure:"username" default:""`
	// Password is the WAPI user's password.
	Password string `mapstructure:"password" default:""`
	// VerifySSL toggles TLS certificate verification.
	VerifySSL bool `mapstructure:"verify_ssl" default:"true"`
	// WAPIVersion is the API version path segment.
	WAPIVersion string `mapstructure:"wapi_version" default:"v2.12"`
	// NetworkView scopes network and address queries.
	NetworkView string `mapstructure:"network_view" default:"default"`
	// DNSView is the view new DNS records are created in.
	DNSView string `mapstructure:"dns_view" default:"default"`
	// TimeoutSeconds bounds every WAPI request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// RecordType selects what a named active address becomes: a host record or an A record.
	RecordType string `mapstructure:"record_type" default:"host"`
	// CreatePTR creates a PTR record next to every new A record. Host records carry
	// their own reverse mapping.
	CreatePTR bool `mapstructure:"create_ptr" default:"true"`
	// LoadWorkers bounds concurrent per-network address queries during a load.
	LoadWorkers int `mapstructure:"load_workers" default:"4"`
	// CMPType and TenantID are stamped as extensible attributes on every object created.
	CMPType  string `mapstructure:"cmp_type" default:"infoblox-sync"`
	TenantID string `mapstructure:"tenant_id" default:""`
}

// Validate checks the record type.
func (c Config) Validate() error {
	switch c.RecordType {
	case "", RecordHost, RecordA:
		return nil
	default:
		return fmt.Errorf("infoblox record_type must be %q or %q, got %q", RecordHost, RecordA, c.RecordType)
	}
}
