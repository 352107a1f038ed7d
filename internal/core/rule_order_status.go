package core

import (
	"context"
	"fmt"
	"strconv"

	"worldtrip/pkg/domain"
)

// OrderStatusRule blocks order writes whose status falls outside the closed
// enumeration and consults policy for every status change.
func OrderStatusRule(policy TransitionPolicy) domain.Rule {
	if policy == nil {
		policy = domain.AnyTransition
	}
	return orderStatusRule{policy: policy}
}

type orderStatusRule struct {
	policy TransitionPolicy
}

func (orderStatusRule) Name() string { return "order_status" }

func (r orderStatusRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityOrder || change.Action == domain.ActionDelete {
			continue
		}
		after, ok := orderPayload(change.After)
		if !ok {
			continue
		}
		id := strconv.FormatInt(after.ID, 10)
		if !after.Status.Valid() {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("invalid order status %q", after.Status),
				Entity:   domain.EntityOrder,
				EntityID: id,
			})
			continue
		}
		before, ok := orderPayload(change.Before)
		if !ok || before.Status == after.Status {
			continue
		}
		if err := r.policy.Allow(before.Status, after.Status); err != nil {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  err.Error(),
				Entity:   domain.EntityOrder,
				EntityID: id,
			})
		}
	}
	return res, nil
}

func orderPayload(v any) (domain.Order, bool) {
	switch o := v.(type) {
	case domain.Order:
		return o, true
	case *domain.Order:
		if o == nil {
			return domain.Order{}, false
		}
		return *o, true
	default:
		return domain.Order{}, false
	}
}
