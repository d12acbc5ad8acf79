// Package cron runs the webhook's periodic maintenance, such as evicting
// idle conversations.
package cron

import "context"

// Job is a maintenance task run on a cron schedule. The scheduler never
// runs two instances of the same job at once; a tick that lands while the
// previous run is still going is dropped.
type Job interface {
	// Name identifies the job in logs and to Scheduler.RunNow.
	// It must be unique within a scheduler.
	Name() string

	// Schedule is a standard 5-field expression, minute first.
	// Descriptors such as @every are rejected.
	Schedule() string

	// Run does one pass. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}
