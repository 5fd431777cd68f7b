package infoblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	ib "github.com/infobloxopen/infoblox-go-client"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// objectManager is the part of the library's object manager the client writes through.
type objectManager interface {
	CreateNetwork(netview string, cidr string, name string) (*ib.Network, error)
	GetNetwork(netview string, cidr string, ea ib.EA) (*ib.Network, error)
	CreateHostRecord(enabledns bool, recordName string, netview string, dnsview string, cidr string, ipAddr string, macAddress string, ea ib.EA) (*ib.HostRecord, error)
	CreateARecord(netview string, dnsview string, recordname string, cidr string, ipAddr string, ea ib.EA) (*ib.RecordA, error)
	CreatePTRRecord(netview string, dnsview string, recordname string, cidr string, ipAddr string, ea ib.EA) (*ib.RecordPTR, error)
	AllocateIP(netview string, cidr string, ipAddr string, macAddress string, name string, ea ib.EA) (*ib.FixedAddress, error)
	ReleaseIP(netview string, cidr string, ipAddr string, macAddr string) (string, error)
	DeleteARecord(ref string) (string, error)
	DeletePTRRecord(ref string) (string, error)
}

// Client talks to WAPI through the infoblox-go-client connector and object manager.
type Client struct {
	cfg       Config
	host      ib.HostConfig
	connector ib.IBConnector
	objects   objectManager
	requestor *sessionRequestor
	logger    *zap.Logger
}

// NewClient creates a WAPI client from the configuration.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("infoblox: url is required")
	}
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("infoblox: invalid url %q: %w", cfg.URL, err)
	}
	if u.Scheme != "https" || u.Hostname() == "" {
		return nil, fmt.Errorf("infoblox: url %q must be an https address", cfg.URL)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WAPIVersion == "" {
		cfg.WAPIVersion = "v2.12"
	}
	if cfg.NetworkView == "" {
		cfg.NetworkView = "default"
	}
	if cfg.DNSView == "" {
		cfg.DNSView = "default"
	}
	if cfg.RecordType == "" {
		cfg.RecordType = RecordHost
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}

	host := ib.HostConfig{
		Host:     u.Hostname(),
		Version:  strings.TrimPrefix(cfg.WAPIVersion, "v"),
		Port:     port,
		Username: cfg.Username,
		Password: cfg.Password,
	}
	transport := ib.NewTransportConfig(strconv.FormatBool(cfg.VerifySSL), timeout, max(cfg.LoadWorkers, 1))
	requestor := &sessionRequestor{logger: logger}

	conn, err := ib.NewConnector(host, transport, &ib.WapiRequestBuilder{}, requestor)
	if err != nil {
		return nil, fmt.Errorf("infoblox: connect: %w", err)
	}

	return &Client{
		cfg:       cfg,
		host:      host,
		connector: conn,
		objects:   ib.NewObjectManager(conn, cfg.CMPType, cfg.TenantID),
		requestor: requestor,
		logger:    logger,
	}, nil
}

// searchObject is an ib.IBObject for objects the library has no search type for. Its
// fields are the JSON body the connector sends: search arguments on GET, values on PUT.
type searchObject struct {
	ib.IBBase    `json:"-"`
	objectType   string
	returnFields []string
	fields       map[string]interface{}
}

func search(objectType string, fields map[string]interface{}, returnFields ...string) *searchObject {
	return &searchObject{objectType: objectType, returnFields: returnFields, fields: fields}
}

func (o *searchObject) ObjectType() string     { return o.objectType }
func (o *searchObject) ReturnFields() []string { return o.returnFields }

func (o *searchObject) MarshalJSON() ([]byte, error) {
	if o.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o.fields)
}

// get runs a search and decodes the resulting list.
func get[T any](ctx context.Context, c *Client, obj *searchObject) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []T
	if err := c.connector.GetObject(obj, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

var addressFields = []string{
	"ip_address", "network", "network_view", "status", "is_conflict", "lease_state",
	"mac_address", "names", "objects", "types", "usage",
}

// GetNetworks returns every network in the configured network view.
func (c *Client) GetNetworks(ctx context.Context) ([]Network, error) {
	return get[Network](ctx, c, search("network",
		map[string]interface{}{"network_view": c.cfg.NetworkView},
		"network", "network_view", "comment"))
}

// FindNetwork returns the network with the given CIDR, or nil when there is none.
func (c *Client) FindNetwork(ctx context.Context, cidr string) (*Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := c.objects.GetNetwork(c.cfg.NetworkView, cidr, nil)
	if err != nil || n == nil {
		return nil, err
	}
	return &Network{Ref: n.Ref, Network: n.Cidr, NetworkView: n.NetviewName}, nil
}

// GetIPv4Addresses returns the addresses of a network with the given status (USED or UNUSED).
func (c *Client) GetIPv4Addresses(ctx context.Context, network, status string) ([]IPv4Address, error) {
	return get[IPv4Address](ctx, c, search("ipv4address", map[string]interface{}{
		"network":      network,
		"network_view": c.cfg.NetworkView,
		"status":       status,
	}, addressFields...))
}

// GetHostRecordsByName returns host records by FQDN.
func (c *Client) GetHostRecordsByName(ctx context.Context, fqdn string) ([]HostRecord, error) {
	return get[HostRecord](ctx, c, search("record:host", map[string]interface{}{"name": fqdn}, "name", "view", "ipv4addrs"))
}

// GetHostRecordsByIP returns host records bound to an address.
func (c *Client) GetHostRecordsByIP(ctx context.Context, ip string) ([]HostRecord, error) {
	return get[HostRecord](ctx, c, search("record:host", map[string]interface{}{"ipv4addr": ip}, "name", "view", "ipv4addrs"))
}

// GetARecordsByName returns A records by FQDN.
func (c *Client) GetARecordsByName(ctx context.Context, fqdn string) ([]ARecord, error) {
	return get[ARecord](ctx, c, search("record:a", map[string]interface{}{"name": fqdn}, "name", "ipv4addr", "view"))
}

// GetARecordsByIP returns A records pointing at an address.
func (c *Client) GetARecordsByIP(ctx context.Context, ip string) ([]ARecord, error) {
	return get[ARecord](ctx, c, search("record:a", map[string]interface{}{"ipv4addr": ip}, "name", "ipv4addr", "view"))
}

// GetPTRRecordsByName returns PTR records whose target is the FQDN.
func (c *Client) GetPTRRecordsByName(ctx context.Context, fqdn string) ([]PTRRecord, error) {
	return get[PTRRecord](ctx, c, search("record:ptr", map[string]interface{}{"ptrdname": fqdn}, "name", "ptrdname", "ipv4addr", "view"))
}

// GetPTRRecordsByIP returns PTR records of an address, matched on its reverse name.
func (c *Client) GetPTRRecordsByIP(ctx context.Context, ip string) ([]PTRRecord, error) {
	reverse, err := ReverseName(ip)
	if err != nil {
		return nil, err
	}
	return get[PTRRecord](ctx, c, search("record:ptr", map[string]interface{}{"name": reverse}, "name", "ptrdname", "ipv4addr", "view"))
}

// GetDNSViews returns every DNS view.
func (c *Client) GetDNSViews(ctx context.Context) ([]View, error) {
	return get[View](ctx, c, search("view", nil, "name", "is_default"))
}

var leaseFields = []string{"address", "binding_state", "hardware", "client_hostname", "fingerprint"}

// GetDHCPLeasesByIP returns the DHCP leases of an address.
func (c *Client) GetDHCPLeasesByIP(ctx context.Context, ip string) ([]Lease, error) {
	return get[Lease](ctx, c, search("lease", map[string]interface{}{"address": ip}, leaseFields...))
}

// GetDHCPLeasesByHostname returns the DHCP leases of a client hostname.
func (c *Client) GetDHCPLeasesByHostname(ctx context.Context, hostname string) ([]Lease, error) {
	return get[Lease](ctx, c, search("lease", map[string]interface{}{"client_hostname": hostname}, leaseFields...))
}

// CreateNetwork creates a network in the configured network view.
func (c *Client) CreateNetwork(ctx context.Context, cidr string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n, err := c.objects.CreateNetwork(c.cfg.NetworkView, cidr, "")
	if err != nil {
		return "", err
	}
	return n.Ref, nil
}

// CreateHostRecord creates a DNS-enabled host record binding fqdn to ip in network cidr.
// The appliance rejects the call with 400 when a record for the name already exists.
func (c *Client) CreateHostRecord(ctx context.Context, fqdn, cidr, ip string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec, err := c.objects.CreateHostRecord(true, fqdn, c.cfg.NetworkView, c.cfg.DNSView, cidr, ip, "", nil)
	if err != nil {
		return "", err
	}
	return rec.Ref, nil
}

// CreateARecord creates an A record binding fqdn to ip in network cidr.
func (c *Client) CreateARecord(ctx context.Context, fqdn, cidr, ip string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec, err := c.objects.CreateARecord(c.cfg.NetworkView, c.cfg.DNSView, fqdn, cidr, ip, nil)
	if err != nil {
		return "", err
	}
	return rec.Ref, nil
}

// ReverseName returns the in-addr.arpa name of ip without the trailing root dot,
// which the appliance does not accept.
func ReverseName(ip string) (string, error) {
	name, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("infoblox: reverse name for %q: %w", ip, err)
	}
	return strings.TrimSuffix(name, "."), nil
}

// CreatePTRRecord creates a PTR record pointing ip at fqdn. The appliance names the
// record after the reverse name of ip.
func (c *Client) CreatePTRRecord(ctx context.Context, fqdn, cidr, ip string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec, err := c.objects.CreatePTRRecord(c.cfg.NetworkView, c.cfg.DNSView, fqdn, cidr, ip, nil)
	if err != nil {
		return "", err
	}
	return rec.Ref, nil
}

// CreateFixedAddress reserves ip of network cidr for mac under an optional name.
func (c *Client) CreateFixedAddress(ctx context.Context, cidr, ip, mac, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fixed, err := c.objects.AllocateIP(c.cfg.NetworkView, cidr, ip, mac, name, nil)
	if err != nil {
		return "", err
	}
	return fixed.Ref, nil
}

// ReleaseFixedAddress deletes the fixed address holding ip in network cidr and returns
// its reference, or "" when there is none.
func (c *Client) ReleaseFixedAddress(ctx context.Context, cidr, ip string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.objects.ReleaseIP(c.cfg.NetworkView, cidr, ip, "")
}

// UpdateObject modifies fields of the object behind ref and returns its (possibly new) reference.
func (c *Client) UpdateObject(ctx context.Context, ref string, fields map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	objectType, _, _ := strings.Cut(ref, "/")
	return c.connector.UpdateObject(search(objectType, fields), ref)
}

// DeleteObject removes the object behind ref.
func (c *Client) DeleteObject(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	switch refKind(ref) {
	case refA:
		_, err = c.objects.DeleteARecord(ref)
	case refPTR:
		_, err = c.objects.DeletePTRRecord(ref)
	default:
		_, err = c.connector.DeleteObject(ref)
	}
	return err
}

// ErrNoAvailableIP is returned when a network has no free address left.
var ErrNoAvailableIP = errors.New("infoblox: no available ip")

// NextAvailableIP returns the next free address of a network without claiming it. The
// connector has no function-call request, so this one goes through the requestor directly.
func (c *Client) NextAvailableIP(ctx context.Context, cidr string) (string, error) {
	network, err := c.FindNetwork(ctx, cidr)
	if err != nil {
		return "", err
	}
	if network == nil {
		return "", fmt.Errorf("infoblox: network %s not found", cidr)
	}

	u := url.URL{
		Scheme:   "https",
		Host:     c.host.Host + ":" + c.host.Port,
		Path:     "/wapi/v" + c.host.Version + "/" + network.Ref,
		RawQuery: url.Values{"_function": {"next_available_ip"}}.Encode(),
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader([]byte(`{"num": 1}`)))
	if err != nil {
		return "", fmt.Errorf("infoblox: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.host.Username, c.host.Password)

	data, err := c.requestor.SendRequest(req)
	if err != nil {
		return "", err
	}
	var out struct {
		IPs []string `json:"ips"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("infoblox: decode next_available_ip: %w", err)
	}
	if len(out.IPs) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoAvailableIP, cidr)
	}
	return out.IPs[0], nil
}

// ReserveFixedAddress claims the next free address of a network as a fixed address for mac.
// The appliance picks the address, so finding and claiming it is one request.
func (c *Client) ReserveFixedAddress(ctx context.Context, cidr, mac string) (string, error) {
	network, err := c.FindNetwork(ctx, cidr)
	if err != nil {
		return "", err
	}
	if network == nil {
		return "", fmt.Errorf("infoblox: network %s not found", cidr)
	}

	ref, err := c.CreateFixedAddress(ctx, cidr, "", mac, "")
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Exhausted() {
		return "", fmt.Errorf("%w in %s: %v", ErrNoAvailableIP, cidr, err)
	}
	if err != nil {
		return "", err
	}
	ip, ok := refAddress(ref)
	if !ok {
		return "", fmt.Errorf("infoblox: no address in reference %q", ref)
	}
	return ip, nil
}

// refAddress extracts the address from a fixedaddress reference
// (fixedaddress/<id>:<ip>/<view>).
func refAddress(ref string) (string, bool) {
	_, rest, ok := strings.Cut(ref, ":")
	if !ok {
		return "", false
	}
	ip, _, _ := strings.Cut(rest, "/")
	if _, err := netip.ParseAddr(ip); err != nil {
		return "", false
	}
	return ip, true
}
