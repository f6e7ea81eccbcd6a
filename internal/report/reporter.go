package report

import (
	"context"

	"go.uber.org/zap"

	"attbot/internal/candidate"
	"attbot/internal/source"
)

// Pusher accepts candidate batches for the shared cache. *source.Cache
// satisfies it.
type Pusher interface {
	Push(ctx context.Context, recs []candidate.Record) error
}

// Reporter drains a queue of inspected candidates, fills in missing byte
// lengths where it cheaply can, and submits the batch to the cache service.
type Reporter struct {
	Queue    Queue
	Pusher   Pusher
	Resolver *source.Resolver
	Enabled  bool
	Log      *zap.Logger
}

// NewReporter wires a reporter; a nil logger defaults to zap.NewNop.
func NewReporter(q Queue, p Pusher, r *source.Resolver, enabled bool, log *zap.Logger) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{Queue: q, Pusher: p, Resolver: r, Enabled: enabled, Log: log}
}

// Report enqueues candidates for eventual submission. It drops the batch
// when reporting is disabled or there is nothing to send, and it never
// surfaces queue errors to the caller beyond a log line.
func (r *Reporter) Report(ctx context.Context, recs []candidate.Record) {
	if !r.Enabled || len(recs) == 0 {
		return
	}
	if err := r.Queue.Publish(ctx, Batch{Records: recs}); err != nil {
		r.Log.Warn("report enqueue failed", zap.Error(err))
	}
}

// Run consumes batches until ctx is cancelled. Each batch gets a best-effort
// length fill before submission; candidates that still lack a length are
// sent anyway, the cache service tolerates them.
func (r *Reporter) Run(ctx context.Context) error {
	if !r.Enabled {
		<-ctx.Done()
		return ctx.Err()
	}
	batches, err := r.Queue.Consume(ctx)
	if err != nil {
		return err
	}
	for b := range batches {
		r.submit(ctx, b)
	}
	return ctx.Err()
}

func (r *Reporter) submit(ctx context.Context, b Batch) {
	recs := make([]candidate.Record, 0, len(b.Records))
	for _, rec := range b.Records {
		if !rec.Resolved() && r.Resolver != nil {
			if got, err := r.Resolver.Resolve(ctx, rec); err == nil {
				rec = got
			}
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return
	}
	if err := r.Pusher.Push(ctx, recs); err != nil {
		r.Log.Warn("cache report rejected", zap.Int("count", len(recs)), zap.Error(err))
		return
	}
	r.Log.Debug("cache report accepted", zap.Int("count", len(recs)))
}
