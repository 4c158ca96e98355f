package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/coachpo/metasweep/errs"
	"github.com/coachpo/metasweep/internal/domain/catalog"
)

const dispatchComponent = "reconcile/dispatch"

// EntryRef addresses the expiration entry of a product. Strategies use whichever identifier they need.
type EntryRef struct {
	EntryID       string
	OwnerID       string
	OwnerLegacyID int64
}

// EntryDeleter removes an expiration entry. A missing entry counts as deleted.
type EntryDeleter interface {
	DeleteEntry(ctx context.Context, ref EntryRef) error
}

// DirectDeleter deletes by entry id.
type DirectDeleter struct {
	port MutatePort
}

// NewDirectDeleter constructs a deleter that addresses entries by their own id.
func NewDirectDeleter(port MutatePort) *DirectDeleter {
	return &DirectDeleter{port: port}
}

// DeleteEntry removes the entry named by ref.EntryID.
func (d *DirectDeleter) DeleteEntry(ctx context.Context, ref EntryRef) error {
	id := strings.TrimSpace(ref.EntryID)
	if id == "" {
		return errs.New(dispatchComponent, errs.CodeValidation,
			errs.WithOp("delete_entry"),
			errs.WithMessage("entry id missing"),
			errs.WithField("owner", ref.OwnerID))
	}
	if err := d.port.DeleteMetafield(ctx, id); err != nil {
		if errs.IsCode(err, errs.CodeNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// LookupDeleter re-resolves the entry through the legacy product id before deleting it.
type LookupDeleter struct {
	port   MutatePort
	lister MetafieldLister
	keys   Keys
}

// NewLookupDeleter constructs a deleter for platforms that only address entries through their owner.
func NewLookupDeleter(port MutatePort, lister MetafieldLister, keys Keys) *LookupDeleter {
	return &LookupDeleter{port: port, lister: lister, keys: keys.withDefaults()}
}

// DeleteEntry lists the owner's expiration entries and deletes each of them.
func (d *LookupDeleter) DeleteEntry(ctx context.Context, ref EntryRef) error {
	legacyID := ref.OwnerLegacyID
	if legacyID <= 0 {
		id, ok := catalog.LegacyIDFromGID(ref.OwnerID)
		if !ok {
			return errs.New(dispatchComponent, errs.CodeValidation,
				errs.WithOp("delete_entry"),
				errs.WithMessage("legacy owner id unavailable"),
				errs.WithField("owner", ref.OwnerID))
		}
		legacyID = id
	}
	entries, err := d.lister.ListMetafields(ctx, legacyID, d.keys.Namespace, d.keys.Expiration)
	if err != nil {
		if errs.IsCode(err, errs.CodeNotFound) {
			return nil
		}
		return fmt.Errorf("resolve expiration entry: %w", err)
	}
	for _, entry := range entries {
		if entry.Key != d.keys.Expiration {
			continue
		}
		if err := d.port.DeleteMetafield(ctx, entry.ID); err != nil && !errs.IsCode(err, errs.CodeNotFound) {
			return err
		}
	}
	return nil
}

// Dispatcher applies sweep actions to the remote store.
type Dispatcher struct {
	port    MutatePort
	deleter EntryDeleter
	keys    Keys
}

// NewDispatcher wires the mutate port and the entry deletion strategy.
func NewDispatcher(port MutatePort, deleter EntryDeleter, keys Keys) *Dispatcher {
	if deleter == nil {
		deleter = NewDirectDeleter(port)
	}
	return &Dispatcher{port: port, deleter: deleter, keys: keys.withDefaults()}
}

// RemoveTag overwrites the badge list with remaining. The caller filters the tag out beforehand, so
// repeating the call with the same list leaves the remote entry unchanged.
func (d *Dispatcher) RemoveTag(ctx context.Context, productID string, remaining []string) error {
	if remaining == nil {
		remaining = []string{}
	}
	value, err := json.Marshal(remaining)
	if err != nil {
		return errs.New(dispatchComponent, errs.CodeInvalid, errs.WithOp("remove_tag"), errs.WithCause(err))
	}
	return d.port.SetMetafield(ctx, catalog.MetafieldInput{
		OwnerID:   productID,
		Namespace: d.keys.Namespace,
		Key:       d.keys.Badges,
		Type:      BadgesType,
		Value:     string(value),
	})
}

// DeleteEntry removes the expiration entry through the configured strategy.
func (d *Dispatcher) DeleteEntry(ctx context.Context, ref EntryRef) error {
	return d.deleter.DeleteEntry(ctx, ref)
}

// DryRunPort logs mutations instead of sending them.
type DryRunPort struct {
	logger *log.Logger
}

// NewDryRunPort returns a MutatePort that only logs.
func NewDryRunPort(logger *log.Logger) *DryRunPort {
	if logger == nil {
		logger = log.Default()
	}
	return &DryRunPort{logger: logger}
}

// SetMetafield logs the write.
func (p *DryRunPort) SetMetafield(_ context.Context, in catalog.MetafieldInput) error {
	p.logger.Printf("dry-run: set %s.%s on %s to %s", in.Namespace, in.Key, in.OwnerID, in.Value)
	return nil
}

// DeleteMetafield logs the delete.
func (p *DryRunPort) DeleteMetafield(_ context.Context, id string) error {
	p.logger.Printf("dry-run: delete metafield %s", id)
	return nil
}
