package core

import "ledgercore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	AccountID          = domain.AccountID
	Balance            = domain.Balance
	CreatureID         = domain.CreatureID
	Creature           = domain.Creature
	Claim              = domain.Claim
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	KVReader           = domain.KVReader
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityCreature = domain.EntityCreature
	EntityClaim    = domain.EntityClaim
	EntityBalance  = domain.EntityBalance
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
