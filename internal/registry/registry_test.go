package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"netgate/internal/permissions"
)

// allowAll permits everything and counts evaluations per pair.
type countingGate struct {
	mu     sync.Mutex
	checks map[string]int
	deny   map[string]bool // category -> denied
}

func newCountingGate() *countingGate {
	return &countingGate{checks: make(map[string]int), deny: make(map[string]bool)}
}

func (g *countingGate) Allowed(category string, action permissions.Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks[category+"/"+string(action)]++
	return !g.deny[category]
}

// fakeSource hands out handlers and counts loads per name.
type fakeSource struct {
	loads   atomic.Int64
	failing map[string]bool
	release chan struct{} // when set, loads block until closed
}

func (s *fakeSource) ResolveHandler(ctx context.Context, name string) (*Handler, error) {
	if s.release != nil {
		<-s.release
	}
	s.loads.Add(1)
	if s.failing[name] {
		return nil, fmt.Errorf("import of %s exploded", name)
	}
	return &Handler{
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"tool": name}, nil
		},
	}, nil
}

func readDescriptor(name, category string) *Descriptor {
	return &Descriptor{
		Name:        name,
		Description: "test op",
		Category:    category,
		Action:      permissions.ActionRead,
		InputSchema: map[string]any{"type": "object"},
		Handler: &Handler{Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return "ok", nil
		}},
	}
}

func TestRegisterAndResolve(t *testing.T) {
	reg := New(newCountingGate(), nil)

	entry, err := reg.Register(readDescriptor("stat_read", "stat"))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if entry.Status != StatusCallable {
		t.Errorf("status = %s, want callable", entry.Status)
	}

	got, err := reg.Resolve("stat_read")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.Descriptor.Name != "stat_read" {
		t.Errorf("resolved wrong descriptor: %s", got.Descriptor.Name)
	}

	if _, err := reg.Resolve("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := New(newCountingGate(), nil)

	if _, err := reg.Register(&Descriptor{Name: "", Action: permissions.ActionRead}); !errors.Is(err, ErrNameEmpty) {
		t.Errorf("expected ErrNameEmpty, got %v", err)
	}

	d := readDescriptor("no_handler", "stat")
	d.Handler = nil
	if _, err := reg.Register(d); !errors.Is(err, ErrHandlerNil) {
		t.Errorf("expected ErrHandlerNil, got %v", err)
	}

	bad := readDescriptor("bad_action", "stat")
	bad.Action = "toggle"
	if _, err := reg.Register(bad); err == nil {
		t.Error("expected error for action outside the closed enum")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := New(newCountingGate(), nil)
	if _, err := reg.Register(readDescriptor("dupe", "stat")); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := reg.Register(readDescriptor("dupe", "stat")); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestDeniedEntryVisibleButFixed(t *testing.T) {
	gate := newCountingGate()
	gate.deny["net"] = true
	reg := New(gate, nil)

	d := readDescriptor("net_create", "net")
	d.Action = permissions.ActionCreate
	entry, err := reg.Register(d)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if entry.Status != StatusDenied {
		t.Errorf("status = %s, want denied", entry.Status)
	}

	// Denied entries stay discoverable.
	snap := reg.Snapshot()
	if len(snap) != 1 || snap[0].Descriptor.Name != "net_create" {
		t.Fatalf("denied entry missing from snapshot: %v", snap)
	}
	if snap[0].Status != StatusDenied {
		t.Errorf("snapshot status = %s, want denied", snap[0].Status)
	}

	// ResolveForCall does not re-evaluate the gate for fixed entries.
	before := gate.checks["net/create"]
	if _, err := reg.ResolveForCall(context.Background(), "net_create"); err != nil {
		t.Fatalf("ResolveForCall failed: %v", err)
	}
	if gate.checks["net/create"] != before {
		t.Error("gate re-evaluated for an entry with fixed status")
	}
}

func TestLazyLoadFixesStatusOnce(t *testing.T) {
	gate := newCountingGate()
	src := &fakeSource{}
	reg := New(gate, src)

	d := readDescriptor("lazy_read", "stat")
	d.Handler = nil
	if _, err := reg.RegisterDeferred(d); err != nil {
		t.Fatalf("RegisterDeferred failed: %v", err)
	}

	if status, _ := reg.StatusOf("lazy_read"); status != StatusUnresolved {
		t.Fatalf("status before load = %s, want unresolved", status)
	}

	entry, err := reg.ResolveForCall(context.Background(), "lazy_read")
	if err != nil {
		t.Fatalf("ResolveForCall failed: %v", err)
	}
	if entry.Status != StatusCallable {
		t.Errorf("status after load = %s, want callable", entry.Status)
	}
	if entry.Descriptor.Handler == nil {
		t.Fatal("handler not attached after lazy load")
	}

	// Second call: cache hit, no new load, no new gate check.
	loadsBefore := src.loads.Load()
	checksBefore := gate.checks["stat/read"]
	if _, err := reg.ResolveForCall(context.Background(), "lazy_read"); err != nil {
		t.Fatalf("second ResolveForCall failed: %v", err)
	}
	if src.loads.Load() != loadsBefore {
		t.Error("handler re-loaded on cache hit")
	}
	if gate.checks["stat/read"] != checksBefore {
		t.Error("gate re-evaluated on cache hit")
	}
}

// Two concurrent first-time dispatches of the same lazy operation must
// trigger exactly one handler load.
func TestSingleFlightLoad(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	reg := New(newCountingGate(), src)

	d := readDescriptor("contended", "stat")
	d.Handler = nil
	if _, err := reg.RegisterDeferred(d); err != nil {
		t.Fatalf("RegisterDeferred failed: %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = reg.ResolveForCall(context.Background(), "contended")
		}()
	}

	close(src.release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := src.loads.Load(); got != 1 {
		t.Errorf("loads = %d, want exactly 1", got)
	}
}

func TestLoadErrorIsPermanent(t *testing.T) {
	src := &fakeSource{failing: map[string]bool{"broken": true}}
	reg := New(newCountingGate(), src)

	d := readDescriptor("broken", "stat")
	d.Handler = nil
	if _, err := reg.RegisterDeferred(d); err != nil {
		t.Fatalf("RegisterDeferred failed: %v", err)
	}

	entry, err := reg.ResolveForCall(context.Background(), "broken")
	if err != nil {
		t.Fatalf("ResolveForCall returned transport error: %v", err)
	}
	if entry.Status != StatusLoadFailed {
		t.Fatalf("status = %s, want load_failed", entry.Status)
	}
	if !errors.Is(entry.LoadErr, ErrLoadFailed) {
		t.Errorf("LoadErr = %v, want ErrLoadFailed wrap", entry.LoadErr)
	}

	// Repeated dispatch attempts fail fast without re-importing.
	loads := src.loads.Load()
	entry, err = reg.ResolveForCall(context.Background(), "broken")
	if err != nil {
		t.Fatalf("second ResolveForCall failed: %v", err)
	}
	if entry.Status != StatusLoadFailed {
		t.Errorf("status = %s, want load_failed to stick", entry.Status)
	}
	if src.loads.Load() != loads {
		t.Error("broken operation was re-imported")
	}
}

func TestSnapshotSorted(t *testing.T) {
	reg := New(newCountingGate(), nil)
	for _, name := range []string{"zebra", "alpha", "mid"} {
		if _, err := reg.Register(readDescriptor(name, "stat")); err != nil {
			t.Fatalf("Register %s failed: %v", name, err)
		}
	}
	snap := reg.Snapshot()
	want := []string{"alpha", "mid", "zebra"}
	for i, e := range snap {
		if e.Descriptor.Name != want[i] {
			t.Errorf("snapshot[%d] = %s, want %s", i, e.Descriptor.Name, want[i])
		}
	}
}

func TestPopulateLazyAndEager(t *testing.T) {
	man := &Manifest{
		Version: 1,
		Tools: []ManifestEntry{
			{Name: "a_read", Category: "stat", Action: "read", Source: "builtin", Input: map[string]any{"type": "object"}},
			{Name: "b_update", Category: "net", Action: "update", Source: "builtin", Input: map[string]any{"type": "object"}},
		},
	}
	if err := man.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	t.Run("lazy", func(t *testing.T) {
		src := &fakeSource{}
		reg := New(newCountingGate(), src)
		if err := PopulateLazy(reg, man); err != nil {
			t.Fatalf("PopulateLazy failed: %v", err)
		}
		if reg.Len() != 2 {
			t.Errorf("len = %d, want 2", reg.Len())
		}
		if src.loads.Load() != 0 {
			t.Error("lazy population must not load handlers")
		}
	})

	t.Run("eager", func(t *testing.T) {
		src := &fakeSource{}
		reg := New(newCountingGate(), src)
		if err := PopulateEager(context.Background(), reg, man, src); err != nil {
			t.Fatalf("PopulateEager failed: %v", err)
		}
		if src.loads.Load() != 2 {
			t.Errorf("loads = %d, want 2", src.loads.Load())
		}
		status, _ := reg.StatusOf("a_read")
		if status != StatusCallable {
			t.Errorf("status = %s, want callable", status)
		}
	})

	t.Run("eager load failure fails startup", func(t *testing.T) {
		src := &fakeSource{failing: map[string]bool{"b_update": true}}
		reg := New(newCountingGate(), src)
		if err := PopulateEager(context.Background(), reg, man, src); err == nil {
			t.Error("expected eager population to surface the load failure")
		}
	})
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name string
		man  Manifest
	}{
		{"empty name", Manifest{Tools: []ManifestEntry{{Name: "", Action: "read", Source: "builtin"}}}},
		{"bad action", Manifest{Tools: []ManifestEntry{{Name: "x", Action: "toggle", Source: "builtin"}}}},
		{"bad source", Manifest{Tools: []ManifestEntry{{Name: "x", Action: "read", Source: "plugin"}}}},
		{"script without path", Manifest{Tools: []ManifestEntry{{Name: "x", Action: "read", Source: "script"}}}},
		{"duplicate", Manifest{Tools: []ManifestEntry{
			{Name: "x", Action: "read", Source: "builtin"},
			{Name: "x", Action: "read", Source: "builtin"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.man.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMutatingDerivedFromAction(t *testing.T) {
	for action, want := range map[permissions.Action]bool{
		permissions.ActionRead:   false,
		permissions.ActionCreate: true,
		permissions.ActionUpdate: true,
		permissions.ActionDelete: true,
	} {
		d := &Descriptor{Action: action}
		if d.Mutating() != want {
			t.Errorf("Mutating() for %s = %v, want %v", action, d.Mutating(), want)
		}
	}
}
