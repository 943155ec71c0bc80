package registry

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"netgate/internal/logging"
)

// PopulateLazy registers every manifest entry as a deferred descriptor.
// No handler code is touched; loads happen on first dispatch.
func PopulateLazy(reg *Registry, m *Manifest) error {
	for i := range m.Tools {
		if _, err := reg.RegisterDeferred(m.Tools[i].Descriptor()); err != nil {
			return err
		}
	}
	logging.Get(logging.CategoryBoot).Info("registry populated lazily: %d tools deferred", len(m.Tools))
	return nil
}

// PopulateEager resolves every manifest entry's handler up front and
// registers it with a fixed status. Handler resolution fans out across a
// bounded errgroup; script-backed handlers each pay their interpreter cost
// here instead of at first dispatch. A resolution failure fails startup:
// eager mode promises a fully resolved catalog.
func PopulateEager(ctx context.Context, reg *Registry, m *Manifest, src Source) error {
	handlers := make([]*Handler, len(m.Tools))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range m.Tools {
		i := i
		g.Go(func() error {
			h, err := src.ResolveHandler(gctx, m.Tools[i].Name)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", m.Tools[i].Name, err)
			}
			handlers[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Registration itself stays sequential so ordering is deterministic
	// and duplicate names surface with a stable message.
	for i := range m.Tools {
		d := m.Tools[i].Descriptor()
		d.Handler = handlers[i]
		if _, err := reg.Register(d); err != nil {
			return err
		}
	}
	logging.Get(logging.CategoryBoot).Info("registry populated eagerly: %d tools resolved", len(m.Tools))
	return nil
}
