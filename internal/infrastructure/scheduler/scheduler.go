package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Scheduler runs jobs on cron specs with a seconds field. A job that is still
// running when its next tick fires is skipped, so two runs never overlap.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	onError func(name string, err error)
}

func New(onError func(name string, err error)) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if onError == nil {
		onError = func(string, error) {}
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:     ctx,
		cancel:  cancel,
		onError: onError,
	}
}

func (s *Scheduler) AddJob(name, spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.ctx); err != nil {
			s.onError(name, err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels the context handed to running jobs and waits for them to
// return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
}
