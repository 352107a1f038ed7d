package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"worldtrip/internal/blob"
	"worldtrip/pkg/domain"
)

// Overlay holds records created or changed locally because the remote call
// failed.
type Overlay struct {
	Packages  []domain.Package
	Customers []domain.Customer
	Orders    []domain.Order
}

// LocalOverlay persists an Overlay as one JSON document per entity under
// a key prefix.
type LocalOverlay struct {
	store  blob.Store
	prefix string
}

// NewLocalOverlay stores documents under prefix (default "overlay/").
func NewLocalOverlay(store blob.Store, prefix string) *LocalOverlay {
	if prefix == "" {
		prefix = "overlay/"
	}
	return &LocalOverlay{store: store, prefix: prefix}
}

func (o *LocalOverlay) key(entity domain.EntityType) string {
	return o.prefix + string(entity) + "s.json"
}

// Load reads every persisted document. Missing documents are empty.
func (o *LocalOverlay) Load(ctx context.Context) (Overlay, error) {
	var out Overlay
	if err := o.read(ctx, domain.EntityPackage, &out.Packages); err != nil {
		return Overlay{}, err
	}
	if err := o.read(ctx, domain.EntityCustomer, &out.Customers); err != nil {
		return Overlay{}, err
	}
	if err := o.read(ctx, domain.EntityOrder, &out.Orders); err != nil {
		return Overlay{}, err
	}
	return out, nil
}

func (o *LocalOverlay) read(ctx context.Context, entity domain.EntityType, into any) error {
	_, rc, err := o.store.Get(ctx, o.key(entity))
	if errors.Is(err, blob.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s overlay: %w", entity, err)
	}
	defer func() { _ = rc.Close() }()
	if err := json.NewDecoder(rc).Decode(into); err != nil {
		return fmt.Errorf("decode %s overlay: %w", entity, err)
	}
	return nil
}

// Save writes records for entity, deleting the document when there are none.
func (o *LocalOverlay) Save(ctx context.Context, entity domain.EntityType, records any) error {
	b, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if string(b) == "null" || string(b) == "[]" {
		if _, err := o.store.Delete(ctx, o.key(entity)); err != nil {
			return fmt.Errorf("clear %s overlay: %w", entity, err)
		}
		return nil
	}
	if _, err := o.store.Put(ctx, o.key(entity), bytes.NewReader(b), blob.PutOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("write %s overlay: %w", entity, err)
	}
	return nil
}
