package core

import "worldtrip/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Package            = domain.Package
	Customer           = domain.Customer
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	TransitionPolicy   = domain.TransitionPolicy
)

const (
	EntityPackage  = domain.EntityPackage
	EntityCustomer = domain.EntityCustomer
	EntityOrder    = domain.EntityOrder
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

const (
	OrderStatusPending   = domain.OrderStatusPending
	OrderStatusConfirmed = domain.OrderStatusConfirmed
	OrderStatusCompleted = domain.OrderStatusCompleted
	OrderStatusCancelled = domain.OrderStatusCancelled
)
