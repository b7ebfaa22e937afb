package domain

// SnapshotEntry is one raw key/value pair of a ledger table.
type SnapshotEntry struct {
	Table Table  `json:"table"`
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// Snapshot is a portable copy of ledger tables, ordered by table then key.
type Snapshot struct {
	Height  uint64          `json:"height"`
	Entries []SnapshotEntry `json:"entries"`
}
