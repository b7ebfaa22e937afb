package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ledgercore/pkg/domain"
)

// operation describes an audited unit of work.
type operation struct {
	name     string
	module   string
	entity   domain.EntityType
	action   domain.Action
	entityID string
	caller   domain.AccountID
	height   uint64
	index    uint32
}

func operationFor(call Call) operation {
	op := operation{name: call.Name(), module: call.Module()}
	switch c := call.(type) {
	case CreateCreature:
		op.entity, op.action = domain.EntityCreature, domain.ActionCreate
	case TransferCreature:
		op.entity, op.action = domain.EntityCreature, domain.ActionUpdate
		op.entityID = strconv.FormatUint(uint64(c.ID), 10)
	case BreedCreatures:
		op.entity, op.action = domain.EntityCreature, domain.ActionCreate
	case CreateClaim:
		op.entity, op.action, op.entityID = domain.EntityClaim, domain.ActionCreate, fmt.Sprintf("%x", c.Claim)
	case RevokeClaim:
		op.entity, op.action, op.entityID = domain.EntityClaim, domain.ActionDelete, fmt.Sprintf("%x", c.Claim)
	case TransferClaim:
		op.entity, op.action, op.entityID = domain.EntityClaim, domain.ActionUpdate, fmt.Sprintf("%x", c.Claim)
	}
	return op
}

// run wraps fn with tracing, metrics, audit and logging.
func (s *Service) run(ctx context.Context, op *operation, fn func(context.Context) (domain.Result, error)) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, op.name)
	start := s.clock.Now()

	res, err := fn(ctx)

	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op.name, err == nil, duration)
	if err != nil {
		s.recordAuditError(ctx, op, err, duration)
		s.logger.Warn("operation failed", "operation", op.name, "caller", op.caller, "height", op.height, "index", op.index, "error", err)
		return res, err
	}
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "operation", op.name, "rule", v.Rule, "severity", v.Severity, "message", v.Message)
	}
	s.recordAuditSuccess(ctx, op, duration)
	s.logger.Debug("operation committed", "operation", op.name, "caller", op.caller, "height", op.height, "index", op.index, "entity_id", op.entityID)
	return res, nil
}

func (s *Service) recordAuditSuccess(ctx context.Context, op *operation, duration time.Duration) {
	s.audit.Record(ctx, s.auditEntry(op, AuditStatusSuccess, "", duration))
}

func (s *Service) recordAuditError(ctx context.Context, op *operation, err error, duration time.Duration) {
	s.audit.Record(ctx, s.auditEntry(op, AuditStatusError, err.Error(), duration))
}

func (s *Service) auditEntry(op *operation, status AuditStatus, errMsg string, duration time.Duration) AuditEntry {
	return AuditEntry{
		Operation: op.name,
		Module:    op.module,
		Entity:    op.entity,
		Action:    op.action,
		EntityID:  op.entityID,
		Caller:    op.caller,
		Height:    op.height,
		Index:     op.index,
		Status:    status,
		Error:     errMsg,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
}
