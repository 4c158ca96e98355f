package reconcile

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertGolden(t *testing.T, name string, s Summary) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, s.Render(&buf))
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())
}

func TestSummaryRenderComplete(t *testing.T) {
	s := newSummary("run-0001", sweepNow)
	s.Pages = 1
	s.record(RecordResult{ProductID: "gid://shopify/Product/1", Title: "Plain Tee"})
	s.record(RecordResult{
		ProductID:    "gid://shopify/Product/2",
		Title:        "Linen Shirt",
		Action:       Action{RemoveTag: "New In", DeleteEntryID: "gid://shopify/Metafield/20"},
		TagRemoved:   true,
		EntryDeleted: true,
	})
	s.record(RecordResult{
		ProductID:    "gid://shopify/Product/3",
		Title:        "Wool Scarf",
		Action:       Action{DeleteEntryID: "gid://shopify/Metafield/30"},
		EntryDeleted: true,
	})
	s.record(RecordResult{
		ProductID:    "gid://shopify/Product/4",
		Title:        "Canvas Tote",
		Action:         Action{RemoveTag: "New In", DeleteEntryID: "gid://shopify/Metafield/40"},
		DeleteDeferred: true,
		Errors:         []error{errors.New("owner locked")},
	})
	s.finish(sweepNow.Add(5*time.Second), true)

	assert.Equal(t, 4, s.Scanned)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 2, s.EntriesDeleted)
	assertGolden(t, "summary_complete", s)
}

func TestSummaryRenderNothingFound(t *testing.T) {
	s := newSummary("run-0002", sweepNow)
	s.Pages = 1
	s.record(RecordResult{ProductID: "gid://shopify/Product/1", Title: "Plain Tee"})
	s.record(RecordResult{ProductID: "gid://shopify/Product/2", Title: "Denim Jacket"})
	s.finish(sweepNow.Add(5*time.Second), true)

	assert.True(t, s.NothingFound())
	assertGolden(t, "summary_nothing", s)
}

func TestSummaryRenderIncomplete(t *testing.T) {
	s := newSummary("run-0003", sweepNow)
	s.Pages = 2
	s.record(RecordResult{
		ProductID:    "gid://shopify/Product/2",
		Title:        "Linen Shirt",
		Action:       Action{RemoveTag: "New In", DeleteEntryID: "gid://shopify/Metafield/20"},
		TagRemoved:   true,
		EntryDeleted: true,
	})
	s.finish(sweepNow.Add(5*time.Second), false)

	assertGolden(t, "summary_incomplete", s)
}

func TestRecordResultStatus(t *testing.T) {
	assert.Equal(t, StatusSkipped, RecordResult{}.Status())
	assert.Equal(t, StatusUpdated, RecordResult{Action: Action{DeleteEntryID: "x"}, EntryDeleted: true}.Status())
	assert.Equal(t, StatusFailed, RecordResult{
		Action:       Action{RemoveTag: "New In", DeleteEntryID: "x"},
		TagRemoved:   true,
		EntryDeleted: false,
		Errors:       []error{errors.New("boom")},
	}.Status())
}

func TestSummaryCountsMutationsThatLandedOnFailedRecords(t *testing.T) {
	s := newSummary("run-0004", sweepNow)
	s.record(RecordResult{
		ProductID:  "gid://shopify/Product/5",
		Title:      "Rain Coat",
		Action:     Action{RemoveTag: "New In", DeleteEntryID: "gid://shopify/Metafield/50"},
		TagRemoved: true,
		Errors:     []error{errors.New("metafield locked")},
	})

	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.TagsRemoved)
	assert.Equal(t, 0, s.EntriesDeleted)
	assert.Equal(t, []string{
		`Rain Coat [gid://shopify/Product/5]: removed tag "New In", failed to delete expiration entry`,
	}, s.Lines)
}
