package dedupe_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/okian/nearby/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it starts empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording deliveries", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the key is new", func() {
				seen := d.SeenAndRecord(ctx, "msg-1")

				Convey("Then it is recorded", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key is redelivered", func() {
				d.SeenAndRecord(ctx, "msg-1")
				seen := d.SeenAndRecord(ctx, "msg-1")

				Convey("Then it is reported as seen", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key is empty", func() {
				So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)

				Convey("Then nothing is recorded", func() {
					So(d.Size(), ShouldEqual, 0)
				})
			})
		})

		Convey("When unrecording deliveries", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "msg-1")
			d.Unrecord(ctx, "msg-1")
			d.Unrecord(ctx, "missing")

			Convey("Then the key is accepted again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "msg-1"), ShouldBeFalse)
			})
		})

		Convey("When the window is full", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, k := range []string{"k1", "k2", "k3", "k4"} {
				So(d.SeenAndRecord(ctx, k), ShouldBeFalse)
			}

			Convey("Then the oldest key is evicted first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "k4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When a key is unrecorded inside a full window", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord(ctx, "k1")
			d.SeenAndRecord(ctx, "k2")
			d.Unrecord(ctx, "k1")
			d.SeenAndRecord(ctx, "k3")

			Convey("Then the freed slot is reused without losing newer keys", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "k2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k3"), ShouldBeTrue)
			})
		})

		Convey("When the size is not positive", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))
			for i := 0; i < 1000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i))
			}

			Convey("Then the default window applies", func() {
				So(d.Size(), ShouldEqual, 1000)
			})
		})

		Convey("When keys are very long", func() {
			d := dedupe.NewInMemoryDeduper()
			long := strings.Repeat("a", 10000)
			So(d.SeenAndRecord(ctx, long), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, long), ShouldBeTrue)
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const workers = 10
		const perWorker = 100

		Convey("When goroutines record distinct keys", func() {
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for j := 0; j < perWorker; j++ {
						d.SeenAndRecord(context.Background(), fmt.Sprintf("k-%d-%d", id, j))
					}
				}(i)
			}
			wg.Wait()

			Convey("Then every key is recorded", func() {
				So(d.Size(), ShouldEqual, int64(workers*perWorker))
			})
		})

		Convey("When goroutines race on one key", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(context.Background(), "same") {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one wins", func() {
				So(fresh, ShouldEqual, 1)
			})
		})
	})
}
