// Package fake provides an in-memory catalog that speaks the sweep's query and mutate ports.
package fake

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/coachpo/metasweep/errs"
	"github.com/coachpo/metasweep/internal/domain/catalog"
)

const (
	// Platform names the adapter in errors and metrics.
	Platform = "fake"

	defaultPageSize  = 100
	defaultNamespace = "custom"
)

// Operation names used to inject failures.
const (
	OpFetchPage       = "fetch_page"
	OpSetMetafield    = "set_metafield"
	OpDeleteMetafield = "delete_metafield"
	OpListMetafields  = "list_metafields"
)

type productState struct {
	product catalog.Product
}

// Store is a paged catalog held in memory. It is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	pageSize  int
	products  []*productState
	byID      map[string]*productState
	byLegacy  map[int64]*productState
	nextID    int64
	nextField int64
	failures  map[string]error

	fetchCursors []string
	sets         []catalog.MetafieldInput
	deletes      []string
	lists        []int64
}

// NewStore constructs an empty store serving pages of pageSize products.
func NewStore(pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Store{
		pageSize: pageSize,
		byID:     make(map[string]*productState),
		byLegacy: make(map[int64]*productState),
		failures: make(map[string]error),
	}
}

// AddProduct appends a product carrying the given custom metafields and returns its snapshot.
// Metafields are created in key order.
func (s *Store) AddProduct(title string, fields map[string]string) catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	legacy := s.nextID
	state := &productState{product: catalog.Product{
		ID:       catalog.ProductGID(legacy),
		LegacyID: legacy,
		Title:    title,
		Cursor:   fmt.Sprintf("cursor-%d", legacy),
	}}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		state.product.Metafields = append(state.product.Metafields, s.newMetafieldLocked(catalog.MetafieldInput{
			Namespace: defaultNamespace,
			Key:       k,
			Type:      "single_line_text_field",
			Value:     fields[k],
		}))
	}
	s.products = append(s.products, state)
	s.byID[state.product.ID] = state
	s.byLegacy[legacy] = state
	return cloneProduct(state.product)
}

// FailOn makes every call of op against id return err. An empty id matches any target and a nil
// err clears the failure.
func (s *Store) FailOn(op, id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op+"|"+id)
		return
	}
	s.failures[op+"|"+id] = err
}

func (s *Store) failureLocked(op, id string) error {
	if err, ok := s.failures[op+"|"+id]; ok {
		return err
	}
	if err, ok := s.failures[op+"|"]; ok {
		return err
	}
	return nil
}

// FetchPage serves the page following cursor.
func (s *Store) FetchPage(ctx context.Context, cursor string) (catalog.Page, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Page{}, errs.New(Platform, errs.CodeTransport, errs.WithOp(OpFetchPage), errs.WithCause(err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetchCursors = append(s.fetchCursors, cursor)
	if err := s.failureLocked(OpFetchPage, cursor); err != nil {
		return catalog.Page{}, err
	}

	start := 0
	if cursor != "" {
		idx := slices.IndexFunc(s.products, func(p *productState) bool { return p.product.Cursor == cursor })
		if idx < 0 {
			return catalog.Page{}, errs.New(Platform, errs.CodeProtocol,
				errs.WithOp(OpFetchPage),
				errs.WithMessage("unknown cursor"),
				errs.WithField("cursor", cursor))
		}
		start = idx + 1
	}
	end := min(start+s.pageSize, len(s.products))

	page := catalog.Page{Products: make([]catalog.Product, 0, end-start)}
	for _, state := range s.products[start:end] {
		page.Products = append(page.Products, cloneProduct(state.product))
	}
	page.HasNext = end < len(s.products)
	if n := len(page.Products); n > 0 {
		page.Cursor = page.Products[n-1].Cursor
	}
	return page, nil
}

// SetMetafield upserts a metafield on its owner.
func (s *Store) SetMetafield(ctx context.Context, in catalog.MetafieldInput) error {
	if err := ctx.Err(); err != nil {
		return errs.New(Platform, errs.CodeTransport, errs.WithOp(OpSetMetafield), errs.WithCause(err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sets = append(s.sets, in)
	if err := s.failureLocked(OpSetMetafield, in.OwnerID); err != nil {
		return err
	}
	state, ok := s.byID[in.OwnerID]
	if !ok {
		return errs.New(Platform, errs.CodeValidation,
			errs.WithOp(OpSetMetafield),
			errs.WithFields(errs.FieldError{Field: []string{"metafields", "0", "ownerId"}, Message: "Owner does not exist"}))
	}
	for i, mf := range state.product.Metafields {
		if mf.Namespace == in.Namespace && mf.Key == in.Key {
			state.product.Metafields[i].Value = in.Value
			state.product.Metafields[i].Type = in.Type
			return nil
		}
	}
	state.product.Metafields = append(state.product.Metafields, s.newMetafieldLocked(in))
	return nil
}

// DeleteMetafield removes a metafield by id. Unknown ids report not found.
func (s *Store) DeleteMetafield(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return errs.New(Platform, errs.CodeTransport, errs.WithOp(OpDeleteMetafield), errs.WithCause(err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes = append(s.deletes, id)
	if err := s.failureLocked(OpDeleteMetafield, id); err != nil {
		return err
	}
	for _, state := range s.products {
		for i, mf := range state.product.Metafields {
			if mf.ID == id {
				state.product.Metafields = slices.Delete(state.product.Metafields, i, i+1)
				return nil
			}
		}
	}
	return errs.New(Platform, errs.CodeNotFound, errs.WithOp(OpDeleteMetafield), errs.WithField("id", id))
}

// ListMetafields returns the owner's metafields matching namespace and key.
func (s *Store) ListMetafields(ctx context.Context, legacyOwnerID int64, namespace, key string) ([]catalog.Metafield, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.New(Platform, errs.CodeTransport, errs.WithOp(OpListMetafields), errs.WithCause(err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists = append(s.lists, legacyOwnerID)
	if err := s.failureLocked(OpListMetafields, catalog.ProductGID(legacyOwnerID)); err != nil {
		return nil, err
	}
	state, ok := s.byLegacy[legacyOwnerID]
	if !ok {
		return nil, errs.New(Platform, errs.CodeNotFound, errs.WithOp(OpListMetafields))
	}
	var out []catalog.Metafield
	for _, mf := range state.product.Metafields {
		if mf.Namespace == namespace && mf.Key == key {
			out = append(out, mf)
		}
	}
	return out, nil
}

// Product returns the current snapshot of a product.
func (s *Store) Product(id string) (catalog.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.byID[id]
	if !ok {
		return catalog.Product{}, false
	}
	return cloneProduct(state.product), true
}

// FetchCursors returns the cursors passed to FetchPage, in call order.
func (s *Store) FetchCursors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.fetchCursors)
}

// Sets returns every SetMetafield input, in call order.
func (s *Store) Sets() []catalog.MetafieldInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sets)
}

// Deletes returns every id passed to DeleteMetafield, in call order.
func (s *Store) Deletes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deletes)
}

// Lists returns every legacy owner id passed to ListMetafields, in call order.
func (s *Store) Lists() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lists)
}

func (s *Store) newMetafieldLocked(in catalog.MetafieldInput) catalog.Metafield {
	s.nextField++
	return catalog.Metafield{
		ID:        catalog.MetafieldGID(s.nextField),
		Namespace: in.Namespace,
		Key:       in.Key,
		Type:      in.Type,
		Value:     in.Value,
	}
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.Metafields = slices.Clone(p.Metafields)
	return p
}
