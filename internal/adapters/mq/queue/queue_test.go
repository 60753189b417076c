package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/rocatrun/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity two", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		So(q.Len(ctx), ShouldEqual, 0)

		Convey("When two results are enqueued", func() {
			So(q.Enqueue(ctx, model.GameResult{EventID: "r1", CharacterID: 1, Experience: 10}), ShouldBeNil)
			So(q.Enqueue(ctx, model.GameResult{EventID: "r2", CharacterID: 2, Experience: 20}), ShouldBeNil)

			Convey("Then a third is rejected as full", func() {
				err := q.Enqueue(ctx, model.GameResult{EventID: "r3"})
				So(errors.Is(err, ErrFull), ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("Then they are dequeued in order", func() {
				ch := q.Dequeue(ctx)
				So((<-ch).EventID, ShouldEqual, "r1")
				So((<-ch).EventID, ShouldEqual, "r2")
			})

			Convey("Then closing still drains what was queued", func() {
				So(q.Close(), ShouldBeNil)
				So(q.IsClosed(), ShouldBeTrue)

				var ids []string
				for e := range q.Dequeue(ctx) {
					ids = append(ids, e.EventID)
				}
				So(ids, ShouldResemble, []string{"r1", "r2"})
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue fails", func() {
				err := q.Enqueue(ctx, model.GameResult{EventID: "late"})
				So(errors.Is(err, ErrClosed), ShouldBeTrue)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then enqueue fails with the context error", func() {
				err := q.Enqueue(cctx, model.GameResult{EventID: "r1"})
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 0)
			})
		})
	})
}
