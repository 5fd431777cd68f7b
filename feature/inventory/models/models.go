package models

import "time"

// Table names of the inventory store.
const (
	PrefixTable    = "ipam_prefixes"
	IPAddressTable = "ipam_ip_addresses"
)

// Prefix represents the 'ipam_prefixes' table.
type Prefix struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	Prefix    string    `gorm:"column:prefix;size:64;not null;uniqueIndex:idx_ipam_prefix"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName overrides the table name used by Prefix to `ipam_prefixes`
func (Prefix) TableName() string {
	return PrefixTable
}

// IPAddress represents the 'ipam_ip_addresses' table.
// An address is only unique within its owning prefix.
type IPAddress struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	Address   string    `gorm:"column:address;size:64;not null;uniqueIndex:idx_ipam_address_prefix"`
	Prefix    string    `gorm:"column:prefix;size:64;not null;uniqueIndex:idx_ipam_address_prefix;index"`
	Status    string    `gorm:"column:status;size:32"`
	DNSName   string    `gorm:"column:dns_name;size:255"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName overrides the table name used by IPAddress to `ipam_ip_addresses`
func (IPAddress) TableName() string {
	return IPAddressTable
}

// Columns lists the columns the adapter reads from each table.
var Columns = map[string][]string{
	PrefixTable:    {"id", "prefix"},
	IPAddressTable: {"id", "address", "prefix", "status", "dns_name"},
}
