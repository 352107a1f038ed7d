package client

import (
	"strings"

	"worldtrip/pkg/domain"
)

// mergeBy returns remote followed by the overlay records whose key is not
// present remotely. Remote wins on collision.
func mergeBy[T any, K comparable](remote, overlay []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(remote))
	out := make([]T, 0, len(remote)+len(overlay))
	for _, r := range remote {
		seen[key(r)] = struct{}{}
		out = append(out, r)
	}
	for _, o := range overlay {
		if _, ok := seen[key(o)]; ok {
			continue
		}
		out = append(out, o)
	}
	return out
}

func packageKey(p domain.Package) int64    { return p.ID }
func orderKey(o domain.Order) int64        { return o.ID }
func customerKey(c domain.Customer) string { return strings.ToLower(strings.TrimSpace(c.Email)) }

// MergePackages unions remote and overlay packages by id.
func MergePackages(remote, overlay []domain.Package) []domain.Package {
	return mergeBy(remote, overlay, packageKey)
}

// MergeCustomers unions remote and overlay customers by email, ignoring case.
func MergeCustomers(remote, overlay []domain.Customer) []domain.Customer {
	return mergeBy(remote, overlay, customerKey)
}

// MergeOrders unions remote and overlay orders by id.
func MergeOrders(remote, overlay []domain.Order) []domain.Order {
	return mergeBy(remote, overlay, orderKey)
}

func keepLocal[T any](visible []T, isLocal func(T) bool) []T {
	var out []T
	for _, v := range visible {
		if isLocal(v) {
			out = append(out, v)
		}
	}
	return out
}

// PruneOverlay derives the overlay from a visible set: only records still
// flagged local survive, so anything the remote owns is dropped.
func PruneOverlay(visible Overlay) Overlay {
	return Overlay{
		Packages:  keepLocal(visible.Packages, func(p domain.Package) bool { return p.IsLocal }),
		Customers: keepLocal(visible.Customers, func(c domain.Customer) bool { return c.IsLocal }),
		Orders:    keepLocal(visible.Orders, func(o domain.Order) bool { return o.IsLocal }),
	}
}
