package cli

import (
	"encoding/hex"
	"encoding/json"
	"io"

	"ledgercore/internal/core"
	"ledgercore/pkg/domain"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type creatureView struct {
	ID      domain.CreatureID `json:"id"`
	Genome  string            `json:"genome"`
	Owner   domain.AccountID  `json:"owner"`
	Parents *domain.Parentage `json:"parents,omitempty"`
}

func viewCreature(c domain.Creature) creatureView {
	return creatureView{ID: c.ID, Genome: c.Genome.String(), Owner: c.Owner, Parents: c.Parents}
}

type eventView struct {
	Height uint64       `json:"height"`
	Index  uint32       `json:"index"`
	Seq    uint32       `json:"seq"`
	Module string       `json:"module"`
	Name   string       `json:"name"`
	Data   domain.Event `json:"data"`
}

func viewEvents(records []core.EventRecord) []eventView {
	out := make([]eventView, 0, len(records))
	for _, r := range records {
		out = append(out, eventView{Height: r.Height, Index: r.Index, Seq: r.Seq, Module: r.Event.Module(), Name: r.Event.EventName(), Data: r.Event})
	}
	return out
}

type violationView struct {
	Rule     string          `json:"rule"`
	Severity domain.Severity `json:"severity"`
	Message  string          `json:"message"`
}

type receiptView struct {
	Index      uint32          `json:"index"`
	Module     string          `json:"module"`
	Call       string          `json:"call"`
	OK         bool            `json:"ok"`
	Resumed    bool            `json:"resumed,omitempty"`
	Error      string          `json:"error,omitempty"`
	Events     []eventView     `json:"events,omitempty"`
	Violations []violationView `json:"violations,omitempty"`
}

type blockView struct {
	Height   uint64        `json:"height"`
	Seed     string        `json:"seed"`
	Receipts []receiptView `json:"receipts"`
}

func viewBlock(b core.BlockReceipt) blockView {
	out := blockView{Height: b.Height, Seed: hex.EncodeToString(b.Seed[:]), Receipts: make([]receiptView, 0, len(b.Receipts))}
	for _, r := range b.Receipts {
		rv := receiptView{Index: r.Index, Module: r.Module, Call: r.Call, OK: r.Err == nil, Resumed: r.Resumed}
		if r.Err != nil {
			rv.Error = r.Err.Error()
		}
		for seq, e := range r.Events {
			rv.Events = append(rv.Events, eventView{Height: b.Height, Index: r.Index, Seq: uint32(seq), Module: e.Module(), Name: e.EventName(), Data: e})
		}
		for _, v := range r.Result.Violations {
			rv.Violations = append(rv.Violations, violationView{Rule: v.Rule, Severity: v.Severity, Message: v.Message})
		}
		out.Receipts = append(out.Receipts, rv)
	}
	return out
}
