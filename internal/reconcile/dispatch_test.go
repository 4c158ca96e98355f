package reconcile

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/metasweep/errs"
	"github.com/coachpo/metasweep/internal/domain/catalog"
	"github.com/coachpo/metasweep/internal/infra/adapters/fake"
)

func TestRemoveTagWritesFilteredListAndIsIdempotent(t *testing.T) {
	store := fake.NewStore(10)
	p := store.AddProduct("Linen Shirt", map[string]string{"badges": `["New In","Sale"]`})
	d := NewDispatcher(store, nil, DefaultKeys())
	ctx := context.Background()

	remaining := Tags{"New In", "Sale"}.Without("New In")
	require.NoError(t, d.RemoveTag(ctx, p.ID, remaining))
	require.NoError(t, d.RemoveTag(ctx, p.ID, remaining))

	sets := store.Sets()
	require.Len(t, sets, 2)
	assert.Equal(t, sets[0], sets[1])
	assert.Equal(t, catalog.MetafieldInput{
		OwnerID:   p.ID,
		Namespace: "custom",
		Key:       "badges",
		Type:      BadgesType,
		Value:     `["Sale"]`,
	}, sets[0])

	current, _ := store.Product(p.ID)
	require.Len(t, current.Metafields, 1)
	assert.Equal(t, `["Sale"]`, current.Metafields[0].Value)
}

func TestRemoveTagEncodesEmptyListForNil(t *testing.T) {
	store := fake.NewStore(10)
	p := store.AddProduct("Linen Shirt", map[string]string{"badges": `["New In"]`})
	d := NewDispatcher(store, nil, DefaultKeys())

	require.NoError(t, d.RemoveTag(context.Background(), p.ID, nil))
	assert.Equal(t, "[]", store.Sets()[0].Value)
}

func TestRemoveTagSurfacesValidationErrors(t *testing.T) {
	store := fake.NewStore(10)
	d := NewDispatcher(store, nil, DefaultKeys())

	err := d.RemoveTag(context.Background(), "gid://shopify/Product/404", []string{})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeValidation))
	assert.False(t, errs.IsFatal(err))
}

func TestDirectDeleterTreatsMissingEntryAsDeleted(t *testing.T) {
	store := fake.NewStore(10)
	p := store.AddProduct("Wool Scarf", map[string]string{"expiration_time": "2020-01-01"})
	entryID := p.Metafields[0].ID
	deleter := NewDirectDeleter(store)
	ctx := context.Background()
	ref := EntryRef{EntryID: entryID, OwnerID: p.ID}

	require.NoError(t, deleter.DeleteEntry(ctx, ref))
	require.NoError(t, deleter.DeleteEntry(ctx, ref))
	assert.Equal(t, []string{entryID, entryID}, store.Deletes())

	current, _ := store.Product(p.ID)
	assert.Empty(t, current.Metafields)
}

func TestDirectDeleterRequiresEntryID(t *testing.T) {
	err := NewDirectDeleter(fake.NewStore(1)).DeleteEntry(context.Background(), EntryRef{OwnerID: "gid://shopify/Product/1"})
	assert.True(t, errs.IsCode(err, errs.CodeValidation))
}

func TestLookupDeleterResolvesThroughLegacyID(t *testing.T) {
	store := fake.NewStore(10)
	p := store.AddProduct("Wool Scarf", map[string]string{"badges": `[]`, "expiration_time": "2020-01-01"})
	deleter := NewLookupDeleter(store, store, DefaultKeys())
	ctx := context.Background()

	require.NoError(t, deleter.DeleteEntry(ctx, EntryRef{EntryID: "stale-id", OwnerID: p.ID, OwnerLegacyID: p.LegacyID}))
	current, _ := store.Product(p.ID)
	require.Len(t, current.Metafields, 1)
	assert.Equal(t, "badges", current.Metafields[0].Key)

	// second call finds nothing to delete and still succeeds
	require.NoError(t, deleter.DeleteEntry(ctx, EntryRef{OwnerID: p.ID}))
	assert.Equal(t, []int64{p.LegacyID, p.LegacyID}, store.Lists())
	assert.Len(t, store.Deletes(), 1)
}

func TestLookupDeleterUnknownOwnerIsSuccess(t *testing.T) {
	store := fake.NewStore(10)
	deleter := NewLookupDeleter(store, store, DefaultKeys())
	require.NoError(t, deleter.DeleteEntry(context.Background(), EntryRef{OwnerLegacyID: 999}))
}

func TestLookupDeleterNeedsSomeOwnerIdentity(t *testing.T) {
	store := fake.NewStore(10)
	deleter := NewLookupDeleter(store, store, DefaultKeys())
	err := deleter.DeleteEntry(context.Background(), EntryRef{OwnerID: "not-a-gid"})
	assert.True(t, errs.IsCode(err, errs.CodeValidation))
}

func TestLookupDeleterPropagatesTransportErrors(t *testing.T) {
	store := fake.NewStore(10)
	p := store.AddProduct("Wool Scarf", map[string]string{"expiration_time": "2020-01-01"})
	store.FailOn(fake.OpListMetafields, p.ID, errs.New("fake", errs.CodeTransport))
	deleter := NewLookupDeleter(store, store, DefaultKeys())

	err := deleter.DeleteEntry(context.Background(), EntryRef{OwnerID: p.ID})
	assert.True(t, errs.IsFatal(err))
}

func TestDryRunPortOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	port := NewDryRunPort(log.New(&buf, "", 0))
	d := NewDispatcher(port, nil, DefaultKeys())
	ctx := context.Background()

	require.NoError(t, d.RemoveTag(ctx, "gid://shopify/Product/1", []string{"Sale"}))
	require.NoError(t, d.DeleteEntry(ctx, EntryRef{EntryID: "gid://shopify/Metafield/2"}))
	assert.Contains(t, buf.String(), `dry-run: set custom.badges on gid://shopify/Product/1 to ["Sale"]`)
	assert.Contains(t, buf.String(), "dry-run: delete metafield gid://shopify/Metafield/2")
}
