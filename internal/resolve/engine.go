// Package resolve implements the answer resolution engine: it races every
// configured source across every quiz option, lazily resolves poster byte
// lengths, and returns the first candidate matching the length heuristic.
package resolve

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"attbot/internal/candidate"
	"attbot/internal/source"
)

// ErrNoAnswer is returned when every candidate was inspected and none
// matched the poster length. The misses collected along the way are still
// returned for cache reporting.
var ErrNoAnswer = errors.New("no candidate matched the poster length")

// DefaultOffset is the empirically observed byte-length difference between
// the displayed poster and its canonical counterpart, plausibly a
// re-encoding artifact of the hosting site. It is configuration, not a law;
// if resolution starts missing consistently, suspect this first.
const DefaultOffset uint64 = 6

// Engine fans a question out across sources and options concurrently. The
// quiz offers no ranking hint among options, so all of them are probed in
// parallel to bound latency.
type Engine struct {
	Sources  []source.Source
	Resolver *source.Resolver
	Offset   uint64
	Log      *zap.Logger
}

// New builds an engine over the given sources.
func New(sources []source.Source, resolver *source.Resolver, offset uint64, log *zap.Logger) *Engine {
	if offset == 0 {
		offset = DefaultOffset
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{Sources: sources, Resolver: resolver, Offset: offset, Log: log}
}

// Result is a successful resolution: the matched record, the quiz option it
// answers, and every other resolved candidate inspected on the way.
type Result struct {
	Answer candidate.Record
	Option candidate.Option
	Misses []candidate.Record
}

type batch struct {
	opt  candidate.Option
	src  string
	recs []candidate.Record
}

// Resolve returns the first candidate whose byte length sits exactly
// Offset bytes from the poster's, cancelling all sibling fetches as soon as
// it is found. On ErrNoAnswer the returned misses hold every resolved
// candidate that was inspected; late results from cancelled fetches are
// discarded, never merged in.
func (e *Engine) Resolve(ctx context.Context, q candidate.Question) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One batch per (option, source) task: full capacity so no producer can
	// block after the consumer stops reading.
	results := make(chan batch, len(q.Options)*len(e.Sources))
	g := new(errgroup.Group)
	for _, opt := range q.Options {
		for _, src := range e.Sources {
			opt, src := opt, src
			g.Go(func() error {
				recs, err := src.Fetch(ctx, opt.Title)
				if err != nil {
					// Per-source failures never abort the resolution.
					e.Log.Debug("source fetch failed",
						zap.String("source", src.Name()),
						zap.String("title", opt.Title),
						zap.Error(err))
					return nil
				}
				if len(recs) == 0 {
					return nil
				}
				select {
				case results <- batch{opt: opt, src: src.Name(), recs: recs}:
				case <-ctx.Done():
				}
				return nil
			})
		}
	}
	go func() {
		g.Wait()
		close(results)
	}()

	// Single consumer: the dedup set and miss accumulator are owned here and
	// need no locking.
	seen := make(map[string]struct{})
	var misses []candidate.Record
	for b := range results {
		for _, rec := range b.recs {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}

			resolved, err := e.Resolver.Resolve(ctx, rec)
			if err != nil {
				// Length unavailable or probe failed: drop the candidate.
				e.Log.Debug("candidate dropped",
					zap.String("id", rec.ID),
					zap.String("title", rec.Title),
					zap.Error(err))
				continue
			}
			if candidate.Matches(resolved, q.Poster, e.Offset) {
				cancel()
				e.Log.Info("answer resolved",
					zap.String("id", resolved.ID),
					zap.String("title", resolved.Title),
					zap.String("source", b.src),
					zap.Uint64("byte_length", resolved.ByteLength),
					zap.Uint64("offset", e.Offset))
				return Result{Answer: resolved, Option: b.opt, Misses: misses}, nil
			}
			misses = append(misses, resolved)
		}
	}
	return Result{Misses: misses}, ErrNoAnswer
}
