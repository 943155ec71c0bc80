// Package controller defines the boundary to the backing network
// controller. The gateway core only ever sees the Client interface;
// credential loading and real HTTP bootstrapping live outside this
// repository. The in-memory Simulator ships as the default implementation
// and doubles as the test fixture.
package controller

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a resource id or MAC is unknown.
var ErrNotFound = errors.New("resource not found")

// Device is a managed network device (switch, AP, gateway).
type Device struct {
	MAC       string `json:"mac"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	Type      string `json:"type"` // usw, uap, ugw
	IP        string `json:"ip"`
	State     string `json:"state"` // connected, disconnected, rebooting
	UptimeSec int64  `json:"uptime_sec"`
}

// Network is a configured LAN/VLAN.
type Network struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Purpose string `json:"purpose"` // corporate, guest, iot
	Subnet  string `json:"subnet"`
	VLAN    int    `json:"vlan"`
	Enabled bool   `json:"enabled"`
}

// FirewallPolicy is a zone-based firewall rule.
type FirewallPolicy struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Action     string `json:"action"` // allow, deny
	Enabled    bool   `json:"enabled"`
	SourceZone string `json:"source_zone"`
	DestZone   string `json:"dest_zone"`
	Index      int    `json:"index"`
}

// PortForward is a destination NAT rule.
type PortForward struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	DstPort  string `json:"dst_port"`
	FwdIP    string `json:"fwd_ip"`
	FwdPort  string `json:"fwd_port"`
	Protocol string `json:"protocol"` // tcp, udp, tcp_udp
}

// Station is a connected (or known) client device.
type Station struct {
	MAC      string `json:"mac"`
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
	Network  string `json:"network"`
	Wired    bool   `json:"wired"`
	Blocked  bool   `json:"blocked"`
	RxBytes  int64  `json:"rx_bytes"`
	TxBytes  int64  `json:"tx_bytes"`
}

// SystemInfo describes the controller itself.
type SystemInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	UptimeSec int64  `json:"uptime_sec"`
	Hostname  string `json:"hostname"`
}

// HealthStatus is one subsystem's health line.
type HealthStatus struct {
	Subsystem string `json:"subsystem"` // wlan, lan, wan, vpn
	Status    string `json:"status"`    // ok, warning, error
	Detail    string `json:"detail,omitempty"`
}

// Client is everything the handler set needs from the controller.
// All methods take a context so a transport-level deadline can propagate,
// and return a copy of controller state, never internal references.
type Client interface {
	ListDevices(ctx context.Context) ([]Device, error)
	GetDevice(ctx context.Context, mac string) (Device, error)
	RebootDevice(ctx context.Context, mac string) error
	RenameDevice(ctx context.Context, mac, name string) (Device, error)

	ListNetworks(ctx context.Context) ([]Network, error)
	GetNetwork(ctx context.Context, id string) (Network, error)
	CreateNetwork(ctx context.Context, n Network) (Network, error)
	UpdateNetwork(ctx context.Context, id string, updates map[string]any) (Network, error)
	DeleteNetwork(ctx context.Context, id string) error

	ListFirewallPolicies(ctx context.Context) ([]FirewallPolicy, error)
	GetFirewallPolicy(ctx context.Context, id string) (FirewallPolicy, error)
	CreateFirewallPolicy(ctx context.Context, p FirewallPolicy) (FirewallPolicy, error)
	UpdateFirewallPolicy(ctx context.Context, id string, updates map[string]any) (FirewallPolicy, error)
	SetFirewallPolicyState(ctx context.Context, id string, enabled bool) (FirewallPolicy, error)

	ListPortForwards(ctx context.Context) ([]PortForward, error)
	GetPortForward(ctx context.Context, id string) (PortForward, error)
	CreatePortForward(ctx context.Context, f PortForward) (PortForward, error)
	SetPortForwardState(ctx context.Context, id string, enabled bool) (PortForward, error)

	ListStations(ctx context.Context) ([]Station, error)
	GetStation(ctx context.Context, mac string) (Station, error)
	BlockStation(ctx context.Context, mac string) (Station, error)
	UnblockStation(ctx context.Context, mac string) (Station, error)

	SystemInfo(ctx context.Context) (SystemInfo, error)
	Health(ctx context.Context) ([]HealthStatus, error)
	TopStations(ctx context.Context, limit int) ([]Station, error)
}
