package controller

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"netgate/internal/logging"
)

// Simulator is the in-memory Client implementation. It holds a small
// seeded site so the gateway runs end to end without a real controller,
// and gives tests deterministic state to mutate.
type Simulator struct {
	mu sync.RWMutex

	devices  map[string]Device
	networks map[string]Network
	policies map[string]FirewallPolicy
	forwards map[string]PortForward
	stations map[string]Station

	nextID int
}

var _ Client = (*Simulator)(nil)

// NewSimulator returns an empty simulator. Call Seed for the fixture site.
func NewSimulator() *Simulator {
	return &Simulator{
		devices:  make(map[string]Device),
		networks: make(map[string]Network),
		policies: make(map[string]FirewallPolicy),
		forwards: make(map[string]PortForward),
		stations: make(map[string]Station),
		nextID:   100,
	}
}

// Seed loads the fixture site: two devices, two networks, a couple of
// firewall policies and port forwards, and three stations.
func (s *Simulator) Seed() *Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices["aa:bb:cc:00:00:01"] = Device{MAC: "aa:bb:cc:00:00:01", Name: "core-switch", Model: "USW-24", Type: "usw", IP: "10.0.0.2", State: "connected", UptimeSec: 86400}
	s.devices["aa:bb:cc:00:00:02"] = Device{MAC: "aa:bb:cc:00:00:02", Name: "office-ap", Model: "U6-Pro", Type: "uap", IP: "10.0.0.3", State: "connected", UptimeSec: 43200}

	s.networks["net-lan"] = Network{ID: "net-lan", Name: "LAN", Purpose: "corporate", Subnet: "10.0.0.0/24", VLAN: 1, Enabled: true}
	s.networks["net-iot"] = Network{ID: "net-iot", Name: "IoT", Purpose: "iot", Subnet: "10.0.30.0/24", VLAN: 30, Enabled: true}

	s.policies["fp-1"] = FirewallPolicy{ID: "fp-1", Name: "Block IoT to LAN", Action: "deny", Enabled: true, SourceZone: "iot", DestZone: "lan", Index: 1}
	s.policies["fp-2"] = FirewallPolicy{ID: "fp-2", Name: "Allow established", Action: "allow", Enabled: true, SourceZone: "any", DestZone: "any", Index: 2}

	s.forwards["pf-1"] = PortForward{ID: "pf-1", Name: "SSH", Enabled: true, DstPort: "22", FwdIP: "10.0.0.10", FwdPort: "22", Protocol: "tcp"}

	s.stations["11:22:33:00:00:01"] = Station{MAC: "11:22:33:00:00:01", Hostname: "laptop", IP: "10.0.0.50", Network: "LAN", Wired: false, RxBytes: 1 << 30, TxBytes: 1 << 28}
	s.stations["11:22:33:00:00:02"] = Station{MAC: "11:22:33:00:00:02", Hostname: "printer", IP: "10.0.0.60", Network: "LAN", Wired: true, RxBytes: 1 << 20, TxBytes: 1 << 22}
	s.stations["11:22:33:00:00:03"] = Station{MAC: "11:22:33:00:00:03", Hostname: "camera-1", IP: "10.0.30.20", Network: "IoT", Wired: false, RxBytes: 1 << 28, TxBytes: 1 << 31}

	logging.Get(logging.CategoryController).Info("simulator seeded: %d devices, %d networks, %d policies", len(s.devices), len(s.networks), len(s.policies))
	return s
}

func (s *Simulator) allocID(prefix string) string {
	id := fmt.Sprintf("%s-%d", prefix, s.nextID)
	s.nextID++
	return id
}

// --- devices ---

func (s *Simulator) ListDevices(ctx context.Context) ([]Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	return out, nil
}

func (s *Simulator) GetDevice(ctx context.Context, mac string) (Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[strings.ToLower(mac)]
	if !ok {
		return Device{}, fmt.Errorf("device %s: %w", mac, ErrNotFound)
	}
	return d, nil
}

func (s *Simulator) RebootDevice(ctx context.Context, mac string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[strings.ToLower(mac)]
	if !ok {
		return fmt.Errorf("device %s: %w", mac, ErrNotFound)
	}
	d.State = "rebooting"
	d.UptimeSec = 0
	s.devices[d.MAC] = d
	return nil
}

func (s *Simulator) RenameDevice(ctx context.Context, mac, name string) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[strings.ToLower(mac)]
	if !ok {
		return Device{}, fmt.Errorf("device %s: %w", mac, ErrNotFound)
	}
	d.Name = name
	s.devices[d.MAC] = d
	return d, nil
}

// --- networks ---

func (s *Simulator) ListNetworks(ctx context.Context) ([]Network, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Network, 0, len(s.networks))
	for _, n := range s.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Simulator) GetNetwork(ctx context.Context, id string) (Network, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.networks[id]
	if !ok {
		return Network{}, fmt.Errorf("network %s: %w", id, ErrNotFound)
	}
	return n, nil
}

func (s *Simulator) CreateNetwork(ctx context.Context, n Network) (Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Name == "" {
		return Network{}, fmt.Errorf("network name required")
	}
	n.ID = s.allocID("net")
	n.Enabled = true
	s.networks[n.ID] = n
	return n, nil
}

func (s *Simulator) UpdateNetwork(ctx context.Context, id string, updates map[string]any) (Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.networks[id]
	if !ok {
		return Network{}, fmt.Errorf("network %s: %w", id, ErrNotFound)
	}
	if v, ok := updates["name"].(string); ok {
		n.Name = v
	}
	if v, ok := updates["purpose"].(string); ok {
		n.Purpose = v
	}
	if v, ok := updates["subnet"].(string); ok {
		n.Subnet = v
	}
	if v, ok := toInt(updates["vlan"]); ok {
		n.VLAN = v
	}
	if v, ok := updates["enabled"].(bool); ok {
		n.Enabled = v
	}
	s.networks[id] = n
	return n, nil
}

func (s *Simulator) DeleteNetwork(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.networks[id]; !ok {
		return fmt.Errorf("network %s: %w", id, ErrNotFound)
	}
	delete(s.networks, id)
	return nil
}

// --- firewall policies ---

func (s *Simulator) ListFirewallPolicies(ctx context.Context) ([]FirewallPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FirewallPolicy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Simulator) GetFirewallPolicy(ctx context.Context, id string) (FirewallPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return FirewallPolicy{}, fmt.Errorf("firewall policy %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *Simulator) CreateFirewallPolicy(ctx context.Context, p FirewallPolicy) (FirewallPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Name == "" {
		return FirewallPolicy{}, fmt.Errorf("policy name required")
	}
	if p.Action != "allow" && p.Action != "deny" {
		return FirewallPolicy{}, fmt.Errorf("policy action must be allow or deny, got %q", p.Action)
	}
	p.ID = s.allocID("fp")
	if p.Index == 0 {
		p.Index = len(s.policies) + 1
	}
	s.policies[p.ID] = p
	return p, nil
}

func (s *Simulator) UpdateFirewallPolicy(ctx context.Context, id string, updates map[string]any) (FirewallPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return FirewallPolicy{}, fmt.Errorf("firewall policy %s: %w", id, ErrNotFound)
	}
	if v, ok := updates["name"].(string); ok {
		p.Name = v
	}
	if v, ok := updates["action"].(string); ok {
		p.Action = v
	}
	if v, ok := updates["enabled"].(bool); ok {
		p.Enabled = v
	}
	if v, ok := toInt(updates["index"]); ok {
		p.Index = v
	}
	s.policies[id] = p
	return p, nil
}

func (s *Simulator) SetFirewallPolicyState(ctx context.Context, id string, enabled bool) (FirewallPolicy, error) {
	return s.UpdateFirewallPolicy(ctx, id, map[string]any{"enabled": enabled})
}

// --- port forwards ---

func (s *Simulator) ListPortForwards(ctx context.Context) ([]PortForward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PortForward, 0, len(s.forwards))
	for _, f := range s.forwards {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Simulator) GetPortForward(ctx context.Context, id string) (PortForward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.forwards[id]
	if !ok {
		return PortForward{}, fmt.Errorf("port forward %s: %w", id, ErrNotFound)
	}
	return f, nil
}

func (s *Simulator) CreatePortForward(ctx context.Context, f PortForward) (PortForward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Name == "" || f.DstPort == "" || f.FwdIP == "" {
		return PortForward{}, fmt.Errorf("port forward requires name, dst_port and fwd_ip")
	}
	if f.Protocol == "" {
		f.Protocol = "tcp_udp"
	}
	if f.FwdPort == "" {
		f.FwdPort = f.DstPort
	}
	f.ID = s.allocID("pf")
	s.forwards[f.ID] = f
	return f, nil
}

func (s *Simulator) SetPortForwardState(ctx context.Context, id string, enabled bool) (PortForward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forwards[id]
	if !ok {
		return PortForward{}, fmt.Errorf("port forward %s: %w", id, ErrNotFound)
	}
	f.Enabled = enabled
	s.forwards[id] = f
	return f, nil
}

// --- stations ---

func (s *Simulator) ListStations(ctx context.Context) ([]Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	return out, nil
}

func (s *Simulator) GetStation(ctx context.Context, mac string) (Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stations[strings.ToLower(mac)]
	if !ok {
		return Station{}, fmt.Errorf("client %s: %w", mac, ErrNotFound)
	}
	return st, nil
}

func (s *Simulator) setBlocked(mac string, blocked bool) (Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[strings.ToLower(mac)]
	if !ok {
		return Station{}, fmt.Errorf("client %s: %w", mac, ErrNotFound)
	}
	st.Blocked = blocked
	s.stations[st.MAC] = st
	return st, nil
}

func (s *Simulator) BlockStation(ctx context.Context, mac string) (Station, error) {
	return s.setBlocked(mac, true)
}

func (s *Simulator) UnblockStation(ctx context.Context, mac string) (Station, error) {
	return s.setBlocked(mac, false)
}

// --- system / stats ---

func (s *Simulator) SystemInfo(ctx context.Context) (SystemInfo, error) {
	return SystemInfo{Name: "netgate-sim", Version: "9.0.108", UptimeSec: 172800, Hostname: "sim.local"}, nil
}

func (s *Simulator) Health(ctx context.Context) ([]HealthStatus, error) {
	return []HealthStatus{
		{Subsystem: "wan", Status: "ok"},
		{Subsystem: "lan", Status: "ok"},
		{Subsystem: "wlan", Status: "ok"},
		{Subsystem: "vpn", Status: "warning", Detail: "no active tunnels"},
	}, nil
}

func (s *Simulator) TopStations(ctx context.Context, limit int) ([]Station, error) {
	all, _ := s.ListStations(ctx)
	sort.Slice(all, func(i, j int) bool {
		return all[i].RxBytes+all[i].TxBytes > all[j].RxBytes+all[j].TxBytes
	})
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// toInt accepts the numeric types JSON decoding and YAML produce.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
