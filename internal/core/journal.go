package core

import (
	"errors"
	"fmt"

	"ledgercore/internal/storage"
	"ledgercore/pkg/domain"
)

// TableBlocks records the outcome of every dispatched extrinsic by height and
// index. A block whose height is not yet committed resumes after its last
// recorded outcome.
const TableBlocks domain.Table = "system.blocks"

type outcome struct {
	Module string `cbor:"1,keyasint"`
	Call   string `cbor:"2,keyasint"`
	Error  string `cbor:"3,keyasint,omitempty"`
}

// blockJournal tracks the progress of the block being applied. pending holds
// the height of the last block with recorded outcomes; it is in progress while
// it exceeds the committed height.
type blockJournal struct {
	outcomes storage.DoubleMap[uint64, uint32, outcome]
	pending  storage.Value[uint64]
}

func newBlockJournal() blockJournal {
	return blockJournal{
		outcomes: storage.NewDoubleMap[uint64, uint32, outcome](TableBlocks, storage.Uint64Key[uint64]{}, storage.Uint32Key[uint32]{}),
		pending:  storage.NewValue[uint64](TableSystem, "pending"),
	}
}

func (j blockJournal) record(tx domain.Transaction, height uint64, index uint32, o outcome) error {
	if err := j.outcomes.Put(tx, height, index, o); err != nil {
		return err
	}
	return j.pending.Put(tx, height)
}

// progress returns the outcomes already recorded for height, in index order.
// It fails when another block is in progress.
func (j blockJournal) progress(view domain.KVReader, height, last uint64) ([]outcome, error) {
	pending, ok, err := j.pending.Get(view)
	if err != nil {
		return nil, err
	}
	if !ok || pending <= last {
		return nil, nil
	}
	if pending != height {
		return nil, fmt.Errorf("apply block %d while block %d is in progress: %w", height, pending, domain.ErrBlockPending)
	}
	var (
		out      []outcome
		orderErr error
	)
	err = j.outcomes.IteratePrefix(view, height, func(index uint32, o outcome) bool {
		if index != uint32(len(out)) {
			orderErr = fmt.Errorf("block %d: outcome %d recorded out of order", height, index)
			return false
		}
		out = append(out, o)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, orderErr
}

func outcomeOf(ext Extrinsic, err error) outcome {
	o := outcome{Module: "runtime"}
	if ext.Call != nil {
		o.Module, o.Call = ext.Call.Module(), ext.Call.Name()
	}
	if err != nil {
		var de *domain.DispatchError
		if errors.As(err, &de) {
			o.Error = de.Err.Error()
		} else {
			o.Error = err.Error()
		}
	}
	return o
}

// matches reports whether ext is the extrinsic that produced o.
func (o outcome) matches(ext Extrinsic) bool {
	want := outcomeOf(ext, nil)
	return o.Module == want.Module && o.Call == want.Call
}

// isExtrinsicFailure reports whether err rejects the extrinsic itself, as
// opposed to a storage or context failure that must abort the block.
func isExtrinsicFailure(err error) bool {
	var violation domain.RuleViolationError
	if errors.As(err, &violation) {
		return true
	}
	var de *domain.DispatchError
	return errors.As(err, &de)
}
