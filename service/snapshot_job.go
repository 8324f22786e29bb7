package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// snapshots kept per instrument before pruning
const snapshotKeep = 3

// SnapshotJob periodically captures book snapshots through the match
// service. Capture happens on each instrument's matching goroutine, so
// the stored image is always consistent with its offset watermark.
type SnapshotJob struct {
	svc      *MatchService
	interval time.Duration
	log      zerolog.Logger
	done     chan struct{}
	stopped  chan struct{}
}

func NewSnapshotJob(svc *MatchService, interval time.Duration, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		svc:      svc,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *SnapshotJob) Start() {
	go j.run()
}

// Stop halts the ticker and takes one final snapshot so restart replays
// as little of the command stream as possible.
func (j *SnapshotJob) Stop() {
	close(j.done)
	<-j.stopped
}

func (j *SnapshotJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), j.interval)
			j.svc.SnapshotAll(ctx, snapshotKeep)
			cancel()
		case <-j.done:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			j.svc.SnapshotAll(ctx, snapshotKeep)
			cancel()
			return
		}
	}
}
