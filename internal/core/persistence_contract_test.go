package core

import (
	"go/types"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestLedgerStoreImplementationsHardening ensures only the vetted persistence
// packages provide concrete implementations of domain.LedgerStore. Adding a
// backend elsewhere requires updating the allowed list below.
func TestLedgerStoreImplementationsHardening(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes, Tests: true}
	pkgs, err := packages.Load(cfg, "ledgercore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var ledgerStore *types.Interface
	for _, p := range pkgs {
		if p.PkgPath != "ledgercore/pkg/domain" || p.Types == nil {
			continue
		}
		obj := p.Types.Scope().Lookup("LedgerStore")
		if obj == nil {
			t.Fatalf("domain.LedgerStore not found")
		}
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			t.Fatalf("domain.LedgerStore is not an interface")
		}
		ledgerStore = iface
	}
	if ledgerStore == nil {
		t.Fatalf("failed to resolve LedgerStore interface")
	}
	allowed := map[string]struct{}{
		"ledgercore/internal/infra/persistence/memory":   {},
		"ledgercore/internal/infra/persistence/sqlkv":    {},
		"ledgercore/internal/infra/persistence/sqlite":   {},
		"ledgercore/internal/infra/persistence/postgres": {},
		"ledgercore/internal/infra/persistence/badger":   {},
	}
	seen := make(map[string]struct{})
	for _, p := range pkgs {
		if p.Types == nil || p.Types.Scope() == nil {
			continue
		}
		for _, name := range p.Types.Scope().Names() {
			named, ok := p.Types.Scope().Lookup(name).Type().(*types.Named)
			if !ok {
				continue
			}
			if _, ok := named.Underlying().(*types.Struct); !ok {
				continue
			}
			if !types.Implements(types.NewPointer(named), ledgerStore) {
				continue
			}
			if _, ok := allowed[p.PkgPath]; !ok {
				seen[p.PkgPath+"."+name] = struct{}{}
			}
		}
	}
	if len(seen) > 0 {
		unexpected := make([]string, 0, len(seen))
		for name := range seen {
			unexpected = append(unexpected, name)
		}
		sort.Strings(unexpected)
		_, file, line, _ := runtime.Caller(0)
		t.Fatalf("unexpected LedgerStore implementations (update the allowed list when adding a backend):\nfile=%s:%d\n%s", filepath.Base(file), line, unexpected)
	}
}
