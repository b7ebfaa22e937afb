package core

import (
	"encoding/binary"
	"fmt"

	"ledgercore/internal/storage"
	"ledgercore/pkg/domain"
)

// System tables maintained by the runtime.
const (
	TableSystem domain.Table = "system.meta"
	TableEvents domain.Table = "system.events"
)

// EventRecord is a committed event with its position in the chain.
type EventRecord struct {
	Height uint64
	Index  uint32
	Seq    uint32
	Event  domain.Event
}

type eventPosition struct {
	Index uint32
	Seq   uint32
}

type eventPositionKey struct{}

func (eventPositionKey) EncodeKey(p eventPosition) []byte {
	out := binary.BigEndian.AppendUint32(nil, p.Index)
	return binary.BigEndian.AppendUint32(out, p.Seq)
}

func (eventPositionKey) DecodeKey(b []byte) (eventPosition, error) {
	if len(b) != 8 {
		return eventPosition{}, fmt.Errorf("event position: want 8 bytes, got %d", len(b))
	}
	return eventPosition{Index: binary.BigEndian.Uint32(b[:4]), Seq: binary.BigEndian.Uint32(b[4:])}, nil
}

type eventEnvelope struct {
	Module  string `cbor:"1,keyasint"`
	Name    string `cbor:"2,keyasint"`
	Payload []byte `cbor:"3,keyasint"`
}

// eventLog persists events keyed by height, extrinsic index and sequence.
type eventLog struct {
	entries storage.DoubleMap[uint64, eventPosition, eventEnvelope]
}

func newEventLog() eventLog {
	return eventLog{
		entries: storage.NewDoubleMap[uint64, eventPosition, eventEnvelope](TableEvents, storage.Uint64Key[uint64]{}, eventPositionKey{}),
	}
}

func (l eventLog) append(tx domain.Transaction, height uint64, index uint32, events []domain.Event) error {
	for seq, event := range events {
		payload, err := storage.Encode(event)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", event.EventName(), err)
		}
		env := eventEnvelope{Module: event.Module(), Name: event.EventName(), Payload: payload}
		if err := l.entries.Put(tx, height, eventPosition{Index: index, Seq: uint32(seq)}, env); err != nil {
			return err
		}
	}
	return nil
}

func (l eventLog) at(view domain.KVReader, height uint64) ([]EventRecord, error) {
	var (
		out       []EventRecord
		decodeErr error
	)
	err := l.entries.IteratePrefix(view, height, func(pos eventPosition, env eventEnvelope) bool {
		event, ok, err := domain.DecodeEvent(env.Module, env.Name, func(target any) error {
			return storage.Decode(env.Payload, target)
		})
		if err == nil && !ok {
			err = fmt.Errorf("unknown event %s.%s", env.Module, env.Name)
		}
		if err != nil {
			decodeErr = fmt.Errorf("event %d/%d/%d: %w", height, pos.Index, pos.Seq, err)
			return false
		}
		out = append(out, EventRecord{Height: height, Index: pos.Index, Seq: pos.Seq, Event: event})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, decodeErr
}
