package box

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Lister returns the names of the installed boxes.
type Lister interface {
	BoxList(ctx context.Context) ([]string, error)
}

// Catalog is the registry of installed box names. It is loaded once from
// the toolchain and then kept current by the operations that add or remove
// boxes. It is safe for concurrent use.
type Catalog struct {
	mu     sync.Mutex
	lister Lister
	loaded bool
	names  map[string]bool
}

// NewCatalog creates a Catalog that loads lazily from l.
func NewCatalog(l Lister) *Catalog {
	return &Catalog{lister: l, names: make(map[string]bool)}
}

// NewCatalogFrom creates an already loaded Catalog holding names.
func NewCatalogFrom(names ...string) *Catalog {
	c := &Catalog{loaded: true, names: make(map[string]bool)}
	for _, n := range names {
		c.names[n] = true
	}
	return c
}

// Load queries the installed boxes unless the catalog is already loaded.
func (c *Catalog) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Catalog) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	if c.lister == nil {
		return fmt.Errorf("box catalog has no source")
	}
	names, err := c.lister.BoxList(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		c.names[n] = true
	}
	c.loaded = true
	return nil
}

// Contains reports whether name is installed.
func (c *Catalog) Contains(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return false, err
	}
	return c.names[name], nil
}

// Names returns the installed box names in sorted order.
func (c *Catalog) Names(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(c.names))
	for n := range c.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Add records name as installed.
func (c *Catalog) Add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[name] = true
}

// Remove records name as no longer installed.
func (c *Catalog) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.names, name)
}

// Reserve picks the first free name among base, base-001, base-002, ...
// and records it as installed so concurrent callers get distinct names.
func (c *Catalog) Reserve(ctx context.Context, base string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return "", err
	}

	name := base
	for i := 1; c.names[name]; i++ {
		name = fmt.Sprintf("%s-%03d", base, i)
	}
	c.names[name] = true
	return name, nil
}
