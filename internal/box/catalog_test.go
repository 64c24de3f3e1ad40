package box

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

type countingLister struct {
	mu    sync.Mutex
	calls int
	names []string
	err   error
}

func (l *countingLister) BoxList(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.names, l.err
}

func TestCatalog_LoadsOnce(t *testing.T) {
	l := &countingLister{names: []string{"precise64", "web"}}
	c := NewCatalog(l)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.Contains(ctx, "web")
		if err != nil {
			t.Fatalf("Contains error: %v", err)
		}
		if !ok {
			t.Error("web should be installed")
		}
	}
	if l.calls != 1 {
		t.Errorf("BoxList calls = %d, want 1", l.calls)
	}

	c.Remove("web")
	c.Add("db")
	names, err := c.Names(ctx)
	if err != nil {
		t.Fatalf("Names error: %v", err)
	}
	if fmt.Sprint(names) != "[db precise64]" {
		t.Errorf("Names = %v, want [db precise64]", names)
	}
}

func TestCatalog_LoadError(t *testing.T) {
	l := &countingLister{err: fmt.Errorf("vagrant missing")}
	c := NewCatalog(l)

	if _, err := c.Contains(context.Background(), "x"); err == nil {
		t.Fatal("expected load error")
	}
	l.err = nil
	if _, err := c.Contains(context.Background(), "x"); err != nil {
		t.Fatalf("retry after failure should load: %v", err)
	}
	if l.calls != 2 {
		t.Errorf("BoxList calls = %d, want 2", l.calls)
	}
}

func TestCatalog_NoSource(t *testing.T) {
	if err := NewCatalog(nil).Load(context.Background()); err == nil {
		t.Error("expected error for catalog without source")
	}
	if err := NewCatalogFrom("a").Load(context.Background()); err != nil {
		t.Errorf("preloaded catalog should not need a source: %v", err)
	}
}

func TestCatalog_Reserve(t *testing.T) {
	c := NewCatalogFrom("precise64", "precise64-001")
	ctx := context.Background()

	tests := []struct {
		base string
		want string
	}{
		{"trusty64", "trusty64"},
		{"precise64", "precise64-002"},
		{"precise64", "precise64-003"},
		{"trusty64", "trusty64-001"},
	}

	for _, tt := range tests {
		got, err := c.Reserve(ctx, tt.base)
		if err != nil {
			t.Fatalf("Reserve(%q) error: %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("Reserve(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestCatalog_ReserveConcurrent(t *testing.T) {
	c := NewCatalogFrom()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := c.Reserve(ctx, "base")
			if err != nil {
				t.Errorf("Reserve error: %v", err)
				return
			}
			results <- name
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for name := range results {
		if seen[name] {
			t.Errorf("duplicate reservation %q", name)
		}
		seen[name] = true
	}
	if len(seen) != 20 {
		t.Errorf("reservations = %d, want 20", len(seen))
	}
}
