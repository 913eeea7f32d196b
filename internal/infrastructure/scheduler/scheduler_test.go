package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestScheduler(t *testing.T) {
	Convey("Given a Scheduler", t, func() {
		Convey("New function", func() {
			scheduler := New(nil)

			Convey("It should create a new scheduler successfully", func() {
				So(scheduler, ShouldNotBeNil)
				So(scheduler.cron, ShouldNotBeNil)
			})
		})

		Convey("AddJob function", func() {
			var mu sync.Mutex
			var failures []string
			scheduler := New(func(name string, err error) {
				mu.Lock()
				defer mu.Unlock()
				failures = append(failures, name+": "+err.Error())
			})

			Convey("When adding a job with a valid cron spec", func() {
				logFile := filepath.Join(t.TempDir(), "job.log")
				job := func(ctx context.Context) error {
					return os.WriteFile(logFile, []byte("executed"), 0644)
				}

				err := scheduler.AddJob("write", "* * * * * *", job)

				Convey("It should add the job successfully", func() {
					So(err, ShouldBeNil)

					scheduler.Start()
					time.Sleep(2 * time.Second)
					scheduler.Stop()

					content, err := os.ReadFile(logFile)
					So(err, ShouldBeNil)
					So(string(content), ShouldEqual, "executed")
				})
			})

			Convey("When a job returns an error", func() {
				err := scheduler.AddJob("failing", "* * * * * *", func(ctx context.Context) error {
					return errors.New("boom")
				})
				So(err, ShouldBeNil)

				scheduler.Start()
				time.Sleep(2 * time.Second)
				scheduler.Stop()

				Convey("It should report it through the error handler", func() {
					mu.Lock()
					defer mu.Unlock()
					So(len(failures), ShouldBeGreaterThan, 0)
					So(failures[0], ShouldEqual, "failing: boom")
				})
			})

			Convey("When adding a job with an invalid cron spec", func() {
				job := func(ctx context.Context) error { return nil }
				err := scheduler.AddJob("bad", "invalid spec", job)

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "expected exactly 6 fields")
				})
			})
		})

		Convey("Start and Stop methods", func() {
			scheduler := New(nil)

			Convey("When a job outlives its tick", func() {
				var running, maxRunning int32
				err := scheduler.AddJob("slow", "* * * * * *", func(ctx context.Context) error {
					n := atomic.AddInt32(&running, 1)
					defer atomic.AddInt32(&running, -1)
					for {
						m := atomic.LoadInt32(&maxRunning)
						if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
							break
						}
					}
					select {
					case <-ctx.Done():
					case <-time.After(3 * time.Second):
					}
					return nil
				})
				So(err, ShouldBeNil)

				Convey("It should never run two instances at once and cancel on stop", func() {
					scheduler.Start()
					time.Sleep(3500 * time.Millisecond)

					stopped := make(chan struct{})
					go func() {
						scheduler.Stop()
						close(stopped)
					}()

					select {
					case <-stopped:
					case <-time.After(2 * time.Second):
						t.Fatal("Stop did not cancel the running job")
					}
					So(atomic.LoadInt32(&maxRunning), ShouldEqual, 1)
				})
			})
		})
	})
}
