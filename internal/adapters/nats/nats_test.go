package natsadapter_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	natsadapter "github.com/okian/nearby/internal/adapters/nats"
	"github.com/okian/nearby/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

type recorder struct {
	mu     sync.Mutex
	events []model.ChangeEvent
	fail   atomic.Int32 // number of calls to reject
}

func (r *recorder) handle(_ context.Context, ev model.ChangeEvent) error {
	if r.fail.Load() > 0 {
		r.fail.Add(-1)
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
		return errors.New("backpressure")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) snapshot() []model.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ChangeEvent(nil), r.events...)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func change(op model.Operation, id string) model.ChangeEvent {
	return model.ChangeEvent{
		Operation: op,
		Row: model.RawActivity{
			ID:        model.FlexID(id),
			Title:     "Night market " + id,
			Category:  string(model.CategoryMeal),
			CreatedAt: "2025-03-01T12:00:00Z",
		},
	}
}

func TestChangeFeed(t *testing.T) {
	ns := runServer(t)
	var seq atomic.Int32

	Convey("Given a publisher and a started subscriber", t, func() {
		n := seq.Add(1)
		opts := []natsadapter.Option{
			natsadapter.WithStream(fmt.Sprintf("CHANGES_%d", n)),
			natsadapter.WithSubjectPrefix(fmt.Sprintf("test%d.changes", n)),
			natsadapter.WithDurable(fmt.Sprintf("applier-%d", n)),
			natsadapter.WithMaxDeliver(3),
			natsadapter.WithAckWait(time.Second),
		}

		conn, err := nats.Connect(ns.ClientURL())
		So(err, ShouldBeNil)
		Reset(conn.Close)

		pub, err := natsadapter.NewPublisher(conn, opts...)
		So(err, ShouldBeNil)
		sub, err := natsadapter.NewSubscriber(conn, opts...)
		So(err, ShouldBeNil)

		rec := &recorder{}
		ctx := context.Background()
		So(sub.Start(ctx, rec.handle), ShouldBeNil)
		Reset(func() { _ = sub.Close() })

		Convey("When events are published", func() {
			So(pub.Publish(ctx, change(model.OpInsert, "1")), ShouldBeNil)
			So(pub.Publish(ctx, change(model.OpUpdate, "1")), ShouldBeNil)
			So(pub.Publish(ctx, change(model.OpDelete, "1")), ShouldBeNil)

			Convey("Then they arrive in order with stream delivery ids", func() {
				So(eventually(func() bool { return len(rec.snapshot()) == 3 }), ShouldBeTrue)
				got := rec.snapshot()
				So(got[0].Operation, ShouldEqual, model.OpInsert)
				So(got[1].Operation, ShouldEqual, model.OpUpdate)
				So(got[2].Operation, ShouldEqual, model.OpDelete)
				So(string(got[0].Row.ID), ShouldEqual, "1")
				So(got[0].DeliveryID, ShouldStartWith, "js:")
				So(got[0].DeliveryID, ShouldNotEqual, got[1].DeliveryID)
			})
		})

		Convey("When an event carries its own delivery id", func() {
			ev := change(model.OpInsert, "7")
			ev.DeliveryID = "evt-7"
			So(pub.Publish(ctx, ev), ShouldBeNil)
			dup, err := pub.Send(ctx, ev)
			So(err, ShouldBeNil)
			So(dup, ShouldBeTrue)

			Convey("Then the server drops the duplicate publish", func() {
				So(eventually(func() bool { return len(rec.snapshot()) >= 1 }), ShouldBeTrue)
				time.Sleep(100 * time.Millisecond)
				got := rec.snapshot()
				So(len(got), ShouldEqual, 1)
				So(got[0].DeliveryID, ShouldEqual, "evt-7")
			})
		})

		Convey("When the handler rejects the first delivery", func() {
			rec.fail.Store(1)
			So(pub.Publish(ctx, change(model.OpInsert, "2")), ShouldBeNil)

			Convey("Then the message is redelivered with the same delivery id", func() {
				So(eventually(func() bool { return len(rec.snapshot()) == 2 }), ShouldBeTrue)
				got := rec.snapshot()
				So(got[0].DeliveryID, ShouldEqual, got[1].DeliveryID)
			})
		})

		Convey("When a malformed payload is published", func() {
			js, err := conn.JetStream()
			So(err, ShouldBeNil)
			_, err = js.Publish(pub.Subject(model.OpInsert), []byte(`{"operation":`))
			So(err, ShouldBeNil)
			So(pub.Publish(ctx, change(model.OpInsert, "3")), ShouldBeNil)

			Convey("Then it is terminated and later events still flow", func() {
				So(eventually(func() bool { return len(rec.snapshot()) == 1 }), ShouldBeTrue)
				time.Sleep(100 * time.Millisecond)
				got := rec.snapshot()
				So(len(got), ShouldEqual, 1)
				So(string(got[0].Row.ID), ShouldEqual, "3")
			})
		})

		Convey("When Start is called twice", func() {
			err := sub.Start(ctx, rec.handle)
			So(errors.Is(err, natsadapter.ErrAlreadyStarted), ShouldBeTrue)
		})
	})
}

func TestPublishRejectsUnknownOperation(t *testing.T) {
	ns := runServer(t)

	Convey("Given a publisher", t, func() {
		conn, err := nats.Connect(ns.ClientURL())
		So(err, ShouldBeNil)
		Reset(conn.Close)
		pub, err := natsadapter.NewPublisher(conn, natsadapter.WithStream("REJECT"), natsadapter.WithSubjectPrefix("reject.changes"))
		So(err, ShouldBeNil)

		Convey("When the operation is unknown", func() {
			err := pub.Publish(context.Background(), model.ChangeEvent{Operation: "upsert"})
			So(errors.Is(err, model.ErrUnknownOperation), ShouldBeTrue)
		})

		Convey("When the stream is ensured again", func() {
			js, err := conn.JetStream()
			So(err, ShouldBeNil)
			So(natsadapter.EnsureStream(js,
				natsadapter.WithStream("REJECT"),
				natsadapter.WithSubjectPrefix("reject.changes"),
				natsadapter.WithMaxAge(time.Hour)), ShouldBeNil)
		})
	})
}

func TestDecode(t *testing.T) {
	Convey("Given raw messages", t, func() {
		Convey("When the header carries a message id", func() {
			msg := nats.NewMsg("activities.changes.update")
			msg.Header.Set(nats.MsgIdHdr, "abc")
			msg.Data = []byte(`{"operation":"update","row":{"id":12}}`)
			ev, err := natsadapter.Decode(msg)
			So(err, ShouldBeNil)
			So(ev.DeliveryID, ShouldEqual, "abc")
			So(ev.Operation, ShouldEqual, model.OpUpdate)
			So(string(ev.Row.ID), ShouldEqual, "12")
		})

		Convey("When the subject and payload disagree", func() {
			msg := nats.NewMsg("activities.changes.delete")
			msg.Data = []byte(`{"operation":"insert","row":{"id":"1"}}`)
			_, err := natsadapter.Decode(msg)
			So(errors.Is(err, natsadapter.ErrMalformedPayload), ShouldBeTrue)
		})

		Convey("When the operation is unknown", func() {
			msg := nats.NewMsg("activities.changes.other")
			msg.Data = []byte(`{"operation":"merge","row":{"id":"1"}}`)
			_, err := natsadapter.Decode(msg)
			So(errors.Is(err, natsadapter.ErrMalformedPayload), ShouldBeTrue)
		})

		Convey("When the message is not from JetStream and has no id", func() {
			msg := nats.NewMsg("activities.changes.insert")
			msg.Data = []byte(`{"operation":"insert","row":{"id":"1"}}`)
			ev, err := natsadapter.Decode(msg)
			So(err, ShouldBeNil)
			So(ev.DeliveryID, ShouldBeEmpty)
		})
	})
}
