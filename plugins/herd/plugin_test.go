package herd

import (
	"context"
	"testing"

	"ledgercore/internal/core"
)

func TestPluginRegistration(t *testing.T) {
	plugin := New(0)
	registry := core.NewPluginRegistry()
	if err := plugin.Register(registry); err != nil {
		t.Fatalf("register plugin: %v", err)
	}
	if names := registry.RuleNames(); len(names) != 1 || names[0] != "herd_size_warning" {
		t.Fatalf("unexpected rules: %v", names)
	}
	if plugin.limit != DefaultLimit {
		t.Fatalf("expected default limit, got %d", plugin.limit)
	}
}

func TestHerdSizeWarning(t *testing.T) {
	ctx := context.Background()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	if err := svc.InitGenesis(ctx, core.Genesis{Balances: map[core.AccountID]core.Balance{"alice": 1_000_000}}); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	meta, err := svc.InstallPlugin(New(2))
	if err != nil {
		t.Fatalf("install herd plugin: %v", err)
	}
	if meta.Name != "herd" || len(meta.Rules) != 1 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	block := core.Block{Height: 1}
	for i := 0; i < 3; i++ {
		block.Extrinsics = append(block.Extrinsics, core.Extrinsic{Caller: "alice", Call: core.CreateCreature{}})
	}
	receipt, err := svc.ApplyBlock(ctx, block)
	if err != nil {
		t.Fatalf("apply block: %v", err)
	}
	if failed := receipt.Failed(); len(failed) != 0 {
		t.Fatalf("warnings must not fail extrinsics: %+v", failed)
	}
	for i, r := range receipt.Receipts {
		warned := len(r.Result.Violations) == 1 && r.Result.Violations[0].Severity == core.SeverityWarn
		if i < 2 && warned {
			t.Fatalf("receipt %d warned below herd size: %+v", i, r.Result)
		}
		if i == 2 && !warned {
			t.Fatalf("receipt %d expected herd warning, got %+v", i, r.Result)
		}
	}
}
