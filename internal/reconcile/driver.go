package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/coachpo/metasweep/errs"
	"github.com/coachpo/metasweep/internal/domain/catalog"
)

const driverComponent = "reconcile/driver"

// Options tune a Driver. Zero values select defaults.
type Options struct {
	Keys   Keys
	Policy Policy
	// Workers bounds the number of products mutated concurrently within one page. Values below 2
	// keep processing strictly sequential.
	Workers  int
	Platform string
	Logger   *log.Logger
	Clock    func() time.Time
	RunID    func() string
}

// Driver walks the catalog and reconciles each product.
type Driver struct {
	query      QueryPort
	dispatcher *Dispatcher
	keys       Keys
	policy     Policy
	workers    int
	logger     *log.Logger
	clock      func() time.Time
	runID      func() string
	metrics    *sweepMetrics
}

// NewDriver constructs a Driver over the given ports.
func NewDriver(query QueryPort, dispatcher *Dispatcher, opts Options) *Driver {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.RunID == nil {
		opts.RunID = func() string { return uuid.NewString() }
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Driver{
		query:      query,
		dispatcher: dispatcher,
		keys:       opts.Keys.withDefaults(),
		policy:     opts.Policy,
		workers:    opts.Workers,
		logger:     opts.Logger,
		clock:      opts.Clock,
		runID:      opts.RunID,
		metrics:    newSweepMetrics(opts.Platform),
	}
}

type run struct {
	*Driver
	logger *log.Logger
	now    time.Time
}

// Run sweeps the whole catalog. The expiration instant is fixed when the run starts. On a fatal
// error the returned summary covers the records processed so far and is marked incomplete.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	now := d.clock()
	id := d.runID()
	summary := newSummary(id, now)
	r := &run{
		Driver: d,
		logger: log.New(d.logger.Writer(), d.logger.Prefix()+"run="+shortID(id)+" ", d.logger.Flags()),
		now:    now,
	}

	r.logger.Printf("sweep started: sentinel=%q namespace=%s workers=%d", r.policy.sentinel(), r.keys.Namespace, r.workers)
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			summary.finish(d.clock(), false)
			return summary, fmt.Errorf("sweep interrupted after %d pages: %w", summary.Pages, err)
		}

		started := time.Now()
		page, err := d.query.FetchPage(ctx, cursor)
		d.metrics.pageFetched(ctx, time.Since(started), err)
		if err != nil {
			summary.finish(d.clock(), false)
			return summary, fmt.Errorf("fetch page %d: %w", summary.Pages+1, err)
		}
		summary.Pages++
		r.logger.Printf("page %d: %d products", summary.Pages, len(page.Products))

		results, err := r.processPage(ctx, page.Products)
		for _, res := range results {
			if res != nil {
				summary.record(*res)
			}
		}
		if err != nil {
			summary.finish(d.clock(), false)
			return summary, err
		}

		if !page.HasNext {
			break
		}
		next, err := nextCursor(page, cursor)
		if err != nil {
			summary.finish(d.clock(), false)
			return summary, err
		}
		cursor = next
	}

	summary.finish(d.clock(), true)
	r.logger.Printf("sweep finished: pages=%d scanned=%d tags_removed=%d entries_deleted=%d failed=%d",
		summary.Pages, summary.Scanned, summary.TagsRemoved, summary.EntriesDeleted, summary.Failed)
	return summary, nil
}

// nextCursor takes the cursor of the last product on the page. A page claiming more results
// without a usable cursor would loop forever, so it is a protocol violation.
func nextCursor(page catalog.Page, previous string) (string, error) {
	next := page.Cursor
	if n := len(page.Products); n > 0 && page.Products[n-1].Cursor != "" {
		next = page.Products[n-1].Cursor
	}
	if next == "" || next == previous {
		return "", errs.New(driverComponent, errs.CodeProtocol,
			errs.WithOp("advance_cursor"),
			errs.WithMessage("page reports more results but the cursor did not advance"),
			errs.WithField("cursor", previous))
	}
	return next, nil
}

// processPage returns one slot per product. Slots stay nil for products that were never started
// because a fatal error stopped the page.
func (r *run) processPage(ctx context.Context, products []catalog.Product) ([]*RecordResult, error) {
	results := make([]*RecordResult, len(products))
	if r.workers < 2 || len(products) < 2 {
		for i, product := range products {
			res, err := r.processRecord(ctx, product)
			results[i] = &res
			if err != nil {
				return results, err
			}
		}
		return results, nil
	}

	p := pool.New().
		WithMaxGoroutines(r.workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i, product := range products {
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := r.processRecord(ctx, product)
			results[i] = &res
			return err
		})
	}
	return results, p.Wait()
}

// processRecord interprets, decides and mutates one product. Only fatal errors are returned;
// record-level failures are kept on the result. The result is meaningful in both cases.
func (r *run) processRecord(ctx context.Context, product catalog.Product) (RecordResult, error) {
	in := Interpret(product, r.keys)
	if in.TagsStatus == DecodeDefaulted {
		r.metrics.decodeFallback(ctx, r.keys.Badges)
		r.logger.Printf("warn %q: %s is not a JSON list, treating as empty", product.Title, r.keys.Badges)
	}
	if in.ExpiryStatus == DecodeDefaulted {
		r.metrics.decodeFallback(ctx, r.keys.Expiration)
		r.logger.Printf("warn %q: %s %q is not a date, treating as no expiration", product.Title, r.keys.Expiration, in.ExpirationRaw)
	}

	sentinel := r.policy.sentinel()
	action := r.policy.Decide(in, r.now, in.ExpirationEntryID)
	res := RecordResult{
		ProductID:   product.ID,
		Title:       product.Title,
		Action:      action,
		Expired:     r.policy.Expired(in, r.now),
		HasSentinel: in.Tags.Contains(sentinel),
	}
	if action.IsNone() {
		r.logger.Printf("skip %q: expired=%t has %q=%t", product.Title, res.Expired, sentinel, res.HasSentinel)
		r.metrics.recorded(ctx, res)
		return res, nil
	}

	if action.RemoveTag != "" {
		r.logger.Printf("update %q: removing %q", product.Title, action.RemoveTag)
		started := time.Now()
		err := r.dispatcher.RemoveTag(ctx, product.ID, in.Tags.Without(action.RemoveTag))
		r.metrics.mutation(ctx, "remove_tag", time.Since(started), err)
		switch {
		case err == nil:
			res.TagRemoved = true
			r.logger.Printf("updated %q: %s no longer carries %q", product.Title, r.keys.Badges, action.RemoveTag)
		case errs.IsFatal(err):
			res.Errors = append(res.Errors, err)
			return res, fmt.Errorf("remove tag from %s: %w", product.ID, err)
		default:
			res.Errors = append(res.Errors, err)
			r.logger.Printf("failed %q: remove %q: %v", product.Title, action.RemoveTag, err)
		}
	}

	if action.DeleteEntryID != "" && action.RemoveTag != "" && !res.TagRemoved {
		// keep the entry so the product still qualifies on the next run
		res.DeleteDeferred = true
		r.logger.Printf("kept %q: %s stays until %q is removed", product.Title, r.keys.Expiration, action.RemoveTag)
	} else if action.DeleteEntryID != "" {
		ref := EntryRef{EntryID: action.DeleteEntryID, OwnerID: product.ID, OwnerLegacyID: product.LegacyID}
		started := time.Now()
		err := r.dispatcher.DeleteEntry(ctx, ref)
		r.metrics.mutation(ctx, "delete_entry", time.Since(started), err)
		switch {
		case err == nil:
			res.EntryDeleted = true
			r.logger.Printf("deleted %q: expired %s removed", product.Title, r.keys.Expiration)
		case errs.IsFatal(err):
			res.Errors = append(res.Errors, err)
			return res, fmt.Errorf("delete expiration entry of %s: %w", product.ID, err)
		default:
			res.Errors = append(res.Errors, err)
			r.logger.Printf("failed %q: delete %s: %v", product.Title, r.keys.Expiration, err)
		}
	}

	r.metrics.recorded(ctx, res)
	return res, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
