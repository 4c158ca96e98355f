package reconcile

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Status is the outcome of one product.
type Status string

const (
	// StatusSkipped marks a product that needed no mutation.
	StatusSkipped Status = "skipped"
	// StatusUpdated marks a product whose mutations all succeeded.
	StatusUpdated Status = "updated"
	// StatusFailed marks a product with at least one failed mutation.
	StatusFailed Status = "failed"
)

// RecordResult captures what happened to a single product.
type RecordResult struct {
	ProductID    string
	Title        string
	Action       Action
	Expired      bool
	HasSentinel  bool
	TagRemoved   bool
	EntryDeleted bool

	// DeleteDeferred is set when the expiration entry was left in place because the tag removal failed.
	DeleteDeferred bool
	Errors         []error
}

// Status classifies the result. A record with any failed mutation is failed even if another succeeded.
func (r RecordResult) Status() Status {
	switch {
	case len(r.Errors) > 0:
		return StatusFailed
	case r.Action.IsNone():
		return StatusSkipped
	default:
		return StatusUpdated
	}
}

// Line renders the human-readable outcome for a record that required mutations.
func (r RecordResult) Line() string {
	parts := make([]string, 0, 2)
	if tag := r.Action.RemoveTag; tag != "" {
		if r.TagRemoved {
			parts = append(parts, fmt.Sprintf("removed tag %q", tag))
		} else {
			parts = append(parts, fmt.Sprintf("failed to remove tag %q", tag))
		}
	}
	if r.Action.DeleteEntryID != "" {
		switch {
		case r.EntryDeleted:
			parts = append(parts, "deleted expiration entry")
		case r.DeleteDeferred:
			parts = append(parts, "kept expiration entry")
		default:
			parts = append(parts, "failed to delete expiration entry")
		}
	}
	return fmt.Sprintf("%s [%s]: %s", r.Title, r.ProductID, strings.Join(parts, ", "))
}

// Summary is the accounting of a single run. It is owned by the driver and returned by value.
type Summary struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	Complete       bool
	Pages          int
	Scanned        int
	Skipped        int
	Failed         int
	TagsRemoved    int
	EntriesDeleted int
	// Lines holds one outcome per record that required a mutation, in encounter order.
	Lines []string
}

func newSummary(runID string, started time.Time) Summary {
	return Summary{
		RunID:     runID,
		StartedAt: started,
		Lines:     []string{},
	}
}

func (s *Summary) record(r RecordResult) {
	s.Scanned++
	if r.TagRemoved {
		s.TagsRemoved++
	}
	if r.EntryDeleted {
		s.EntriesDeleted++
	}
	switch r.Status() {
	case StatusSkipped:
		s.Skipped++
		return
	case StatusFailed:
		s.Failed++
	}
	s.Lines = append(s.Lines, r.Line())
}

func (s *Summary) finish(at time.Time, complete bool) {
	s.FinishedAt = at
	s.Complete = complete
}

// NothingFound reports whether the run neither removed a tag nor deleted an entry.
func (s Summary) NothingFound() bool {
	return s.TagsRemoved == 0 && s.EntriesDeleted == 0
}

// Render writes the terminal report.
func (s Summary) Render(w io.Writer) error {
	state := "complete"
	if !s.Complete {
		state = "INCOMPLETE"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "run %s %s\n", s.RunID, state)
	fmt.Fprintf(&b, "started:  %s\n", s.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "finished: %s\n", s.FinishedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "pages=%d scanned=%d skipped=%d failed=%d\n", s.Pages, s.Scanned, s.Skipped, s.Failed)
	fmt.Fprintf(&b, "tags removed: %d\n", s.TagsRemoved)
	fmt.Fprintf(&b, "entries deleted: %d\n", s.EntriesDeleted)
	for _, line := range s.Lines {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	if s.NothingFound() {
		b.WriteString("no qualifying records found\n")
	}
	if !s.Complete {
		b.WriteString("run aborted before the last page; counts cover processed records only\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
