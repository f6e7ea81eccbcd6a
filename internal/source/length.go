package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"attbot/internal/candidate"
)

// Resolver turns a candidate without a byte length into a resolved one by
// probing its image URL for the Content-Length header. Probed lengths are
// memoized in Redis when a client is configured, so repeat quizzes for the
// same title skip the network round trip.
type Resolver struct {
	HTTP  *http.Client
	Redis *redis.Client // optional
	TTL   time.Duration
	Log   *zap.Logger
}

// NewResolver builds a length resolver. redisClient may be nil.
func NewResolver(client *http.Client, redisClient *redis.Client, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		HTTP:  client,
		Redis: redisClient,
		TTL:   7 * 24 * time.Hour,
		Log:   log,
	}
}

func lengthKey(imgURL string) string { return "attbot:img_len:" + imgURL }

// Resolve returns the record with its byte length populated. A record that is
// already resolved passes through untouched with no network call.
func (r *Resolver) Resolve(ctx context.Context, rec candidate.Record) (candidate.Record, error) {
	if rec.Resolved() {
		return rec, nil
	}

	if r.Redis != nil {
		if n, err := r.Redis.Get(ctx, lengthKey(rec.ImgURL)).Uint64(); err == nil && n > 0 {
			rec.ByteLength = n
			return rec, nil
		}
	}

	n, err := r.probe(ctx, rec.ImgURL)
	if err != nil {
		return rec, err
	}
	rec.ByteLength = n

	if r.Redis != nil {
		if err := r.Redis.Set(ctx, lengthKey(rec.ImgURL), n, r.TTL).Err(); err != nil {
			r.Log.Debug("length memoization failed", zap.String("img", rec.ImgURL), zap.Error(err))
		}
	}
	return rec, nil
}

// probe reads only the Content-Length response header; the body is discarded
// without being consumed.
func (r *Resolver) probe(ctx context.Context, imgURL string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return 0, fmt.Errorf("length probe request: %w", err)
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return 0, unreachable(err)
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1))
		resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: image host responded %d", ErrLengthUnavailable, resp.StatusCode)
	}
	if resp.ContentLength <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrLengthUnavailable, imgURL)
	}
	return uint64(resp.ContentLength), nil
}
