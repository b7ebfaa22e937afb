package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"ledgercore/internal/balances"
	"ledgercore/internal/claims"
	"ledgercore/internal/creatures"
	"ledgercore/internal/infra/persistence/memory"
	"ledgercore/internal/storage"
	"ledgercore/pkg/domain"
)

// Service is the ledger runtime: it applies blocks of extrinsics to the
// creature and claim registries, one atomic transaction per extrinsic, and
// answers queries against committed state.
type Service struct {
	store     domain.LedgerStore
	creatures *creatures.Registry
	claims    *claims.Registry
	balances  *balances.Ledger
	events    eventLog
	journal   blockJournal

	height  storage.Value[uint64]
	genesis storage.Value[bool]

	randomness domain.RandomnessSource
	clock      Clock
	logger     Logger
	audit      AuditRecorder
	metrics    MetricsRecorder
	tracer     Tracer
	plugins    map[string]PluginMetadata
}

// Genesis seeds the ledger before the first block.
type Genesis struct {
	Balances map[domain.AccountID]domain.Balance
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.LedgerStore, opts ...Option) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	ledger := balances.NewLedger()
	claimRegistry := claims.NewRegistry(o.claims)
	// The claim rule re-checks what the registry accepts, so both use one set of bounds.
	store.RulesEngine().Replace(ClaimIntegrityRule(claimRegistry.Config()))
	return &Service{
		store:      store,
		creatures:  creatures.NewRegistry(o.creatures, ledger),
		claims:     claimRegistry,
		balances:   ledger,
		events:     newEventLog(),
		journal:    newBlockJournal(),
		height:     storage.NewValue[uint64](TableSystem, "height"),
		genesis:    storage.NewValue[bool](TableSystem, "genesis"),
		randomness: o.randomness,
		clock:      o.clock,
		logger:     o.logger,
		audit:      o.audit,
		metrics:    o.metrics,
		tracer:     o.tracer,
		plugins:    make(map[string]PluginMetadata),
	}
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.LedgerStore { return s.store }

// Creatures returns the creature registry.
func (s *Service) Creatures() *creatures.Registry { return s.creatures }

// Claims returns the claim registry.
func (s *Service) Claims() *claims.Registry { return s.claims }

// Tables lists every table the runtime and its modules write, in a stable order.
func (s *Service) Tables() []domain.Table {
	tables := []domain.Table{TableSystem, TableEvents, TableBlocks}
	tables = append(tables, s.balances.Tables()...)
	tables = append(tables, s.creatures.Tables()...)
	tables = append(tables, s.claims.Tables()...)
	return tables
}

// InitGenesis endows the genesis accounts. It can run once per ledger.
func (s *Service) InitGenesis(ctx context.Context, genesis Genesis) error {
	accounts := make([]domain.AccountID, 0, len(genesis.Balances))
	for who := range genesis.Balances {
		accounts = append(accounts, who)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

	_, err := s.run(ctx, &operation{name: "genesis", module: domain.ModuleBalances, entity: domain.EntityBalance, action: domain.ActionCreate}, func(ctx context.Context) (domain.Result, error) {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			applied, _, err := s.genesis.Get(tx)
			if err != nil {
				return err
			}
			if applied {
				return domain.ErrGenesisApplied
			}
			for _, who := range accounts {
				if err := s.balances.Endow(tx, who, genesis.Balances[who]); err != nil {
					return err
				}
			}
			return s.genesis.Put(tx, true)
		})
	})
	return err
}

// ApplyBlock executes the extrinsics of block in order. Each extrinsic commits
// or rolls back on its own together with its outcome in the block journal; a
// rejected extrinsic is reported in its receipt and does not stop the block.
// Heights must strictly increase. Storage and context failures abort the block
// with an error; applying the same block again resumes after the last recorded
// outcome, so no extrinsic is dispatched twice.
func (s *Service) ApplyBlock(ctx context.Context, block Block) (BlockReceipt, error) {
	var (
		done   []outcome
		logged []EventRecord
	)
	err := s.store.View(ctx, func(view domain.KVReader) error {
		last, _, err := s.height.Get(view)
		if err != nil {
			return err
		}
		if block.Height <= last {
			return fmt.Errorf("apply block %d after %d: %w", block.Height, last, domain.ErrHeightRegression)
		}
		if done, err = s.journal.progress(view, block.Height, last); err != nil || len(done) == 0 {
			return err
		}
		logged, err = s.events.at(view, block.Height)
		return err
	})
	if err != nil {
		return BlockReceipt{}, err
	}
	if len(done) > len(block.Extrinsics) {
		return BlockReceipt{}, fmt.Errorf("apply block %d: %d extrinsics already applied, block has %d: %w", block.Height, len(done), len(block.Extrinsics), domain.ErrBlockMismatch)
	}
	for i, o := range done {
		if !o.matches(block.Extrinsics[i]) {
			return BlockReceipt{}, fmt.Errorf("apply block %d: extrinsic %d was %s.%s: %w", block.Height, i, o.Module, o.Call, domain.ErrBlockMismatch)
		}
	}

	bctx := domain.BlockContext{Height: block.Height, Seed: s.randomness.Seed(block.Height)}
	receipt := BlockReceipt{Height: block.Height, Seed: bctx.Seed}
	_, err = s.run(ctx, &operation{name: "apply_block", entityID: strconv.FormatUint(block.Height, 10), height: block.Height}, func(ctx context.Context) (domain.Result, error) {
		for i, ext := range block.Extrinsics {
			index := uint32(i)
			if i < len(done) {
				receipt.Receipts = append(receipt.Receipts, resumedReceipt(index, done[i], logged))
				continue
			}
			r, err := s.execute(ctx, bctx, index, ext, true)
			receipt.Receipts = append(receipt.Receipts, r)
			if err == nil {
				continue
			}
			if !isExtrinsicFailure(err) {
				return domain.Result{}, fmt.Errorf("apply block %d extrinsic %d: %w", block.Height, index, err)
			}
			if _, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				return s.journal.record(tx, block.Height, index, outcomeOf(ext, r.Err))
			}); err != nil {
				return domain.Result{}, fmt.Errorf("apply block %d record outcome %d: %w", block.Height, index, err)
			}
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return s.height.Put(tx, block.Height)
		})
	})
	if err != nil {
		return receipt, err
	}
	if len(done) > 0 {
		s.logger.Info("block resumed", "height", block.Height, "skipped", len(done))
	}
	s.logger.Info("block applied", "height", block.Height, "extrinsics", len(block.Extrinsics), "failed", len(receipt.Failed()))
	return receipt, nil
}

// Execute dispatches a single extrinsic at index within block in its own
// transaction and appends its events to the event log on success. It does not
// touch the block journal or the committed height.
func (s *Service) Execute(ctx context.Context, block domain.BlockContext, index uint32, ext Extrinsic) (Receipt, error) {
	return s.execute(ctx, block, index, ext, false)
}

func (s *Service) execute(ctx context.Context, block domain.BlockContext, index uint32, ext Extrinsic, track bool) (Receipt, error) {
	receipt := Receipt{Index: index}
	if ext.Call == nil {
		receipt.Module = "runtime"
		receipt.Err = &domain.DispatchError{Module: "runtime", Call: "", Err: domain.ErrUnknownCall}
		return receipt, receipt.Err
	}
	receipt.Module, receipt.Call = ext.Call.Module(), ext.Call.Name()

	op := operationFor(ext.Call)
	op.caller, op.height, op.index = ext.Caller, block.Height, index

	var events []domain.Event
	res, err := s.run(ctx, &op, func(ctx context.Context) (domain.Result, error) {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			d := domain.NewDispatch(tx, block, index, ext.Caller)
			id, err := s.dispatch(d, ext.Call)
			if err != nil {
				if domain.IsRejection(err) {
					return &domain.DispatchError{Module: receipt.Module, Call: receipt.Call, Err: err}
				}
				return err
			}
			if id != "" {
				op.entityID = id
			}
			events = d.Events()
			if err := s.events.append(tx, block.Height, index, events); err != nil {
				return err
			}
			if track {
				return s.journal.record(tx, block.Height, index, outcomeOf(ext, nil))
			}
			return nil
		})
	})
	receipt.Result, receipt.Err = res, err
	if err == nil {
		receipt.Events = events
	}
	return receipt, err
}

func resumedReceipt(index uint32, o outcome, logged []EventRecord) Receipt {
	r := Receipt{Index: index, Module: o.Module, Call: o.Call, Resumed: true}
	if o.Error != "" {
		r.Err = &domain.DispatchError{Module: o.Module, Call: o.Call, Err: errors.New(o.Error)}
		return r
	}
	for _, rec := range logged {
		if rec.Index == index {
			r.Events = append(r.Events, rec.Event)
		}
	}
	return r
}

// dispatch routes call to its module. It returns the id of a newly allocated
// creature for audit purposes, or "" when the call does not allocate one.
func (s *Service) dispatch(d *domain.Dispatch, call Call) (string, error) {
	switch c := call.(type) {
	case CreateCreature:
		id, err := s.creatures.Create(d)
		return creatureID(id), err
	case TransferCreature:
		return "", s.creatures.Transfer(d, c.To, c.ID)
	case BreedCreatures:
		id, err := s.creatures.Breed(d, c.A, c.B)
		return creatureID(id), err
	case CreateClaim:
		return "", s.claims.CreateClaim(d, c.Claim)
	case RevokeClaim:
		return "", s.claims.RevokeClaim(d, c.Claim)
	case TransferClaim:
		return "", s.claims.TransferClaim(d, c.Claim, c.To)
	default:
		return "", domain.ErrUnknownCall
	}
}

func creatureID(id domain.CreatureID) string {
	return strconv.FormatUint(uint64(id), 10)
}

// InstallPlugin registers a plugin, wiring its rules into the active engine.
func (s *Service) InstallPlugin(plugin Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, errors.New("plugin cannot be nil")
	}
	if _, ok := s.plugins[plugin.Name()]; ok {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", plugin.Name())
	}

	registry := NewPluginRegistry()
	if err := plugin.Register(registry); err != nil {
		return PluginMetadata{}, err
	}
	engine := s.store.RulesEngine()
	if engine == nil && len(registry.Rules()) > 0 {
		return PluginMetadata{}, fmt.Errorf("plugin %s contributes rules but the store has no rules engine", plugin.Name())
	}
	for _, rule := range registry.Rules() {
		engine.Register(rule)
	}

	meta := PluginMetadata{
		Name:    plugin.Name(),
		Version: plugin.Version(),
		Rules:   registry.RuleNames(),
	}
	s.plugins[plugin.Name()] = meta
	s.logger.Info("plugin installed", "plugin", meta.Name, "version", meta.Version, "rules", len(meta.Rules))
	return meta, nil
}

// RegisteredPlugins returns metadata describing installed plugins.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
