package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/stashd/internal/domain"
	"github.com/semmidev/stashd/internal/infrastructure/logger"
)

const testPrefix = "time-management-backup"

func archiveAt(t time.Time) string {
	return ArchiveBaseName(testPrefix, t) + ".tar.gz"
}

func TestPruner(t *testing.T) {
	Convey("Given a Pruner", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 10, 17, 2, 0, 0, 0, time.UTC)
		store := newMemStore()
		pruner := NewPruner(store, logger.NewNop(), testPrefix)
		pruner.now = func() time.Time { return now }

		Convey("When archives straddle the cutoff", func() {
			cutoff := pruner.Cutoff(30)
			before := cutoff.Add(-time.Nanosecond)

			oldID := store.seed("c", archiveAt(before), before)
			store.seed("c", archiveAt(cutoff), cutoff)
			store.seed("c", archiveAt(now), now)

			result, err := pruner.Prune(ctx, "c", 30)

			Convey("Only objects strictly before the cutoff should go", func() {
				So(err, ShouldBeNil)
				So(result.Deleted, ShouldHaveLength, 1)
				So(result.Deleted[0].ID, ShouldEqual, oldID)
				So(result.Retained, ShouldEqual, 2)
				So(store.deletes, ShouldResemble, []string{oldID})
			})
		})

		Convey("When nothing is old enough", func() {
			store.seed("c", archiveAt(now.AddDate(0, 0, -1)), now.AddDate(0, 0, -1))

			result, err := pruner.Prune(ctx, "c", 30)

			So(err, ShouldBeNil)
			So(result.Deleted, ShouldBeEmpty)
			So(store.deletes, ShouldBeEmpty)
		})

		Convey("When retention is zero", func() {
			store.seed("c", archiveAt(now.Add(-time.Second)), now.Add(-time.Second))
			store.seed("c", archiveAt(now), now)

			result, err := pruner.Prune(ctx, "c", 0)

			So(err, ShouldBeNil)
			So(result.Deleted, ShouldHaveLength, 1)
			So(result.Retained, ShouldEqual, 1)
		})

		Convey("When retention is negative", func() {
			_, err := pruner.Prune(ctx, "c", -1)
			So(err, ShouldNotBeNil)
			So(store.deletes, ShouldBeEmpty)
		})

		Convey("When foreign objects share the container", func() {
			old := now.AddDate(0, 0, -90)
			store.seed("c", "notes.txt", old)
			store.seed("c", testPrefix+"-manual.tar.gz", old)
			store.seed("other", archiveAt(old), old)

			result, err := pruner.Prune(ctx, "c", 30)

			So(err, ShouldBeNil)
			So(store.deletes, ShouldBeEmpty)
			So(result.Retained, ShouldEqual, 0)
		})

		Convey("When one deletion fails", func() {
			ids := make([]string, 0, 3)
			for i := 3; i >= 1; i-- {
				ts := now.AddDate(0, 0, -40-i)
				ids = append(ids, store.seed("c", archiveAt(ts), ts))
			}
			store.deleteErrs[ids[0]] = domain.ErrRemoteUnavailable

			result, err := pruner.Prune(ctx, "c", 30)

			Convey("The remaining deletions should still be attempted", func() {
				So(err, ShouldBeNil)
				So(store.deletes, ShouldHaveLength, 3)
				So(result.Deleted, ShouldHaveLength, 2)
				So(result.Failed, ShouldHaveLength, 1)
				So(result.Failed[0].Object.ID, ShouldEqual, ids[0])
				So(errors.Is(result.Failed[0].Err, domain.ErrPruneItem), ShouldBeTrue)
				So(errors.Is(result.Failed[0].Err, domain.ErrRemoteUnavailable), ShouldBeTrue)
			})
		})

		Convey("When an excluded object is past the cutoff", func() {
			old := now.AddDate(0, 0, -60)
			keep := store.seed("c", archiveAt(old), old)

			result, err := pruner.Prune(ctx, "c", 0, keep)

			So(err, ShouldBeNil)
			So(result.Retained, ShouldEqual, 0)
			So(store.deletes, ShouldBeEmpty)
		})

		Convey("When the store reports no creation time", func() {
			store.seed("c", archiveAt(now.AddDate(0, 0, -90)), time.Time{})

			result, err := pruner.Prune(ctx, "c", 30)

			So(err, ShouldBeNil)
			So(store.deletes, ShouldBeEmpty)
			So(result.Retained, ShouldEqual, 1)
		})

		Convey("When listing fails", func() {
			store.listErr = domain.ErrRemoteUnavailable

			_, err := pruner.Prune(ctx, "c", 30)

			So(errors.Is(err, domain.ErrRemoteUnavailable), ShouldBeTrue)
			So(store.deletes, ShouldBeEmpty)
		})
	})
}
