package infoblox

import "strings"

// Network is a WAPI network object.
type Network struct {
	Ref         string `json:"_ref"`
	Network     string `json:"network"`
	NetworkView string `json:"network_view,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

// IPv4Address is a WAPI ipv4address object: the usage state of one address.
type IPv4Address struct {
	Ref         string   `json:"_ref"`
	IPAddress   string   `json:"ip_address"`
	Network     string   `json:"network"`
	NetworkView string   `json:"network_view,omitempty"`
	Status      string   `json:"status"`
	IsConflict  bool     `json:"is_conflict"`
	LeaseState  string   `json:"lease_state,omitempty"`
	MACAddress  string   `json:"mac_address,omitempty"`
	Names       []string `json:"names"`
	Objects     []string `json:"objects"`
	Types       []string `json:"types"`
	Usage       []string `json:"usage"`
}

// HostIPv4Addr is one address binding of a host record.
type HostIPv4Addr struct {
	Ref              string `json:"_ref,omitempty"`
	Host             string `json:"host,omitempty"`
	IPv4Addr         string `json:"ipv4addr"`
	MAC              string `json:"mac,omitempty"`
	ConfigureForDHCP bool   `json:"configure_for_dhcp,omitempty"`
}

// HostRecord is a WAPI record:host object.
type HostRecord struct {
	Ref       string         `json:"_ref"`
	Name      string         `json:"name"`
	View      string         `json:"view,omitempty"`
	IPv4Addrs []HostIPv4Addr `json:"ipv4addrs,omitempty"`
}

// ARecord is a WAPI record:a object.
type ARecord struct {
	Ref      string `json:"_ref"`
	Name     string `json:"name"`
	IPv4Addr string `json:"ipv4addr"`
	View     string `json:"view,omitempty"`
}

// PTRRecord is a WAPI record:ptr object.
type PTRRecord struct {
	Ref      string `json:"_ref"`
	Name     string `json:"name,omitempty"`
	PTRDName string `json:"ptrdname"`
	IPv4Addr string `json:"ipv4addr,omitempty"`
	View     string `json:"view,omitempty"`
}

// View is a WAPI DNS view.
type View struct {
	Ref       string `json:"_ref"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// Lease is a WAPI DHCP lease.
type Lease struct {
	Ref            string `json:"_ref"`
	Address        string `json:"address,omitempty"`
	BindingState   string `json:"binding_state,omitempty"`
	Hardware       string `json:"hardware,omitempty"`
	ClientHostname string `json:"client_hostname,omitempty"`
	Fingerprint    string `json:"fingerprint,omitempty"`
}

// Object reference prefixes.
const (
	refHost         = "record:host/"
	refA            = "record:a/"
	refPTR          = "record:ptr/"
	refFixedAddress = "fixedaddress/"
	refNetwork      = "network/"
)

// Address usage types reported in IPv4Address.Types.
const (
	typeHost         = "HOST"
	typeA            = "A"
	typeFixedAddress = "FA"
	typeReservation  = "RESERVATION"
	typeLease        = "LEASE"
)

func refKind(ref string) string {
	for _, prefix := range []string{refHost, refA, refPTR, refFixedAddress, refNetwork} {
		if strings.HasPrefix(ref, prefix) {
			return prefix
		}
	}
	return ""
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
