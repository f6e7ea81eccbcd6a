// Package attendance drives the check-in loop for one user: wait for the
// next scheduled point, authenticate, fetch the quiz, resolve the answer
// and submit it, retrying within a budget.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"attbot/internal/candidate"
	"attbot/internal/metrics"
	"attbot/internal/notify"
	"attbot/internal/resolve"
	"attbot/internal/schedule"
	"attbot/internal/site"
)

// State is the orchestrator's current phase, exposed for the status surface.
type State string

const (
	StateIdle           State = "idle"
	StateWaiting        State = "waiting"
	StateAuthenticating State = "authenticating"
	StateFetchingQuiz   State = "fetching_quiz"
	StateResolving      State = "resolving"
	StateSubmitting     State = "submitting"
	StateSucceeded      State = "succeeded"
	StateRetrying       State = "retrying"
	StateFailed         State = "failed"
)

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Site is the slice of the session the orchestrator needs. *site.Session
// satisfies it.
type Site interface {
	User() string
	EnsureLoggedIn(ctx context.Context) error
	FetchQuestion(ctx context.Context) (candidate.Question, error)
	Submit(ctx context.Context, opt candidate.Option) error
}

// AnswerResolver picks the answer for a quiz. *resolve.Engine satisfies it.
type AnswerResolver interface {
	Resolve(ctx context.Context, q candidate.Question) (resolve.Result, error)
}

// Reporter receives the candidates inspected during an attempt.
type Reporter interface {
	Report(ctx context.Context, recs []candidate.Record)
}

// Orchestrator runs the check-in loop for a single user.
type Orchestrator struct {
	Site     Site
	Resolver AnswerResolver
	Reporter Reporter
	Repo     *Repository
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Clock    schedule.Clock
	Log      *zap.Logger

	Email  string
	Points []schedule.TimeOfDay
	Retry  int
	Delay  time.Duration

	mu     sync.Mutex
	state  State
	nextAt time.Time
}

// New fills in the optional collaborators.
func New(st Site, res AnswerResolver, rep Reporter, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		Site:     st,
		Resolver: res,
		Reporter: rep,
		Notifier: notify.Nop{},
		Clock:    schedule.System(),
		Log:      log.With(zap.String("user", st.User())),
		Retry:    3,
		Delay:    time.Second,
		state:    StateIdle,
	}
}

// Status reports the current phase and the next scheduled point.
func (o *Orchestrator) Status() (State, time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.nextAt
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) setNext(at time.Time) {
	o.mu.Lock()
	o.nextAt = at
	o.mu.Unlock()
	o.Metrics.NextCheckin(o.Site.User(), at)
}

// Run loops forever: sleep until the next point, pad past the tick, attempt.
// It returns when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		next, ok := schedule.Next(o.Points, o.Clock.Now())
		if !ok {
			return errors.New("no check-in points configured")
		}
		o.setNext(next)
		o.setState(StateWaiting)
		o.Log.Info("waiting for next check-in", zap.Time("at", next))

		if err := schedule.WaitUntil(ctx, o.Clock, next.Add(o.Delay)); err != nil {
			o.setState(StateIdle)
			return err
		}
		o.runScheduled(ctx, next)
	}
}

func (o *Orchestrator) runScheduled(ctx context.Context, scheduled time.Time) {
	out := o.attempt(ctx)
	out.When = scheduled
	o.record(ctx, out)
}

// RunOnce performs a single immediate attempt, for the one-shot CLI mode.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	out := o.attempt(ctx)
	out.When = o.Clock.Now()
	o.record(ctx, out)
	if !out.Succeeded {
		return fmt.Errorf("check-in failed: %s", out.Detail)
	}
	return nil
}

// attempt runs the authenticate/fetch/resolve/submit pipeline up to Retry
// times. A credential rejection is final; everything else is retried with
// the per-attempt errors joined into the failure detail.
func (o *Orchestrator) attempt(ctx context.Context) notify.Outcome {
	out := notify.Outcome{User: o.Site.User(), Email: o.Email}
	budget := o.Retry
	if budget <= 0 {
		budget = 1
	}

	var errs []error
	for i := 0; i < budget; i++ {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		out.Retries = i
		answer, err := o.tryOnce(ctx)
		if err == nil {
			o.setState(StateSucceeded)
			out.Succeeded = true
			out.Answer = answer
			o.Log.Info("check-in succeeded", zap.String("answer", answer), zap.Int("retries", i))
			return out
		}
		errs = append(errs, err)
		if errors.Is(err, site.ErrCredential) {
			o.Log.Error("credentials rejected, not retrying", zap.Error(err))
			break
		}
		o.setState(StateRetrying)
		o.Log.Warn("attempt failed", zap.Int("attempt", i+1), zap.Error(err))
	}

	o.setState(StateFailed)
	out.Detail = errors.Join(errs...).Error()
	return out
}

func (o *Orchestrator) tryOnce(ctx context.Context) (string, error) {
	o.setState(StateAuthenticating)
	if err := o.Site.EnsureLoggedIn(ctx); err != nil {
		return "", err
	}

	o.setState(StateFetchingQuiz)
	q, err := o.Site.FetchQuestion(ctx)
	if err != nil {
		return "", err
	}

	o.setState(StateResolving)
	start := o.Clock.Now()
	res, err := o.Resolver.Resolve(ctx, q)
	o.Metrics.ObserveResolve(o.Clock.Now().Sub(start))
	if err != nil {
		if o.Reporter != nil && len(res.Misses) > 0 {
			o.Reporter.Report(ctx, res.Misses)
		}
		return "", err
	}
	o.Metrics.Inspected(len(res.Misses) + 1)

	o.setState(StateSubmitting)
	if err := o.Site.Submit(ctx, res.Option); err != nil {
		return "", err
	}
	if o.Reporter != nil {
		o.Reporter.Report(ctx, append(res.Misses, res.Answer))
	}
	return res.Option.Title, nil
}

func (o *Orchestrator) record(ctx context.Context, out notify.Outcome) {
	outcome := OutcomeFailed
	if out.Succeeded {
		outcome = OutcomeSucceeded
	}
	o.Metrics.Attempt(out.User, outcome)

	if _, err := o.Repo.InsertAttempt(ctx, Attempt{
		User:        out.User,
		ScheduledAt: out.When,
		RetriesUsed: out.Retries,
		Outcome:     outcome,
		Detail:      out.Detail,
	}); err != nil {
		o.Log.Warn("attempt history write failed", zap.Error(err))
	}

	if err := o.Notifier.Notify(ctx, out); err != nil {
		o.Log.Warn("outcome notification failed", zap.Error(err))
	}
}
