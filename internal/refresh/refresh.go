// Package refresh runs the periodic catalog refresh independently of
// user-triggered warms. Each iteration is self-contained: a failed refresh
// is logged and the next interval retries regardless.
package refresh

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultCronExpr refreshes at the top of every hour.
const DefaultCronExpr = "0 * * * *"

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Warmer rebuilds the catalog. Satisfied by storefront.Service.
type Warmer interface {
	WarmCatalog(ctx context.Context, force bool) error
}

// Invalidator drops a source-side cache so a forced warm reaches the
// sheet itself. Optional; satisfied by source.Sheets.
type Invalidator interface {
	Invalidate()
}

// Job is the background refresh loop.
type Job struct {
	warmer   Warmer
	inval    Invalidator
	schedule cron.Schedule
	timeout  time.Duration
	out      io.Writer
}

// JobOpts holds parameters for creating a refresh Job.
type JobOpts struct {
	Warmer      Warmer
	Invalidator Invalidator   // optional
	CronExpr    string        // defaults to DefaultCronExpr
	Timeout     time.Duration // per-iteration bound; defaults to 2 minutes
	Out         io.Writer     // defaults to os.Stdout
}

// NewJob creates a refresh Job.
func NewJob(opts JobOpts) (*Job, error) {
	if opts.Warmer == nil {
		return nil, fmt.Errorf("refresh: warmer is required")
	}
	expr := opts.CronExpr
	if expr == "" {
		expr = DefaultCronExpr
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("refresh: parse schedule %q: %w", expr, err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Job{
		warmer:   opts.Warmer,
		inval:    opts.Invalidator,
		schedule: sched,
		timeout:  timeout,
		out:      out,
	}, nil
}

// Run blocks until ctx is cancelled, firing RunOnce at each scheduled time.
// Iteration failures are logged, never fatal: a refresh failure must not
// take down the daemon or block user-facing handlers.
func (j *Job) Run(ctx context.Context) {
	for {
		next := j.schedule.Next(time.Now())
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if err := j.RunOnce(ctx); err != nil {
			log.Printf("refresh: %v", err)
			continue
		}
		fmt.Fprintf(j.out, "refresh: catalog rebuilt\n")
	}
}

// RunOnce performs a single forced refresh, bypassing the source cache.
func (j *Job) RunOnce(ctx context.Context) error {
	warmCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if j.inval != nil {
		j.inval.Invalidate()
	}
	if err := j.warmer.WarmCatalog(warmCtx, true); err != nil {
		return fmt.Errorf("refresh: warm catalog: %w", err)
	}
	return nil
}
