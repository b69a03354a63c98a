package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeRows struct {
	bodies []string
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.bodies) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	p, ok := dest[0].(*string)
	if !ok {
		return errors.New("unexpected scan target")
	}
	*p = r.bodies[r.pos-1]
	return nil
}

type fakeDB struct {
	rows  *fakeRows
	err   error
	query string
}

func (d *fakeDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	d.query = sql
	if d.err != nil {
		return nil, d.err
	}
	return d.rows, nil
}

func TestFetcher(t *testing.T) {
	Convey("Given a fetcher over a fake pool", t, func() {
		ctx := context.Background()

		Convey("When the table name is not an identifier", func() {
			_, err := NewFetcher(&fakeDB{}, WithTable("activities; DROP TABLE x"))
			So(errors.Is(err, ErrInvalidTable), ShouldBeTrue)
		})

		Convey("When building the query", func() {
			f, err := NewFetcher(&fakeDB{}, WithTable("posts"), WithLimit(500))
			So(err, ShouldBeNil)

			Convey("Then it orders newest first and applies the limit", func() {
				q := f.Query()
				So(q, ShouldContainSubstring, `FROM "posts"`)
				So(q, ShouldContainSubstring, "ORDER BY a.created_at DESC")
				So(strings.HasSuffix(q, "LIMIT 500"), ShouldBeTrue)
			})
		})

		Convey("When rows mix good and undecodable documents", func() {
			rows := &fakeRows{bodies: []string{
				`{"id": 7, "title": "Ride to Hsinchu", "category": "Ride", "location": {"lat": 24.8, "lng": 120.97}, "price": 150, "created_at": "2025-02-01T10:00:00+00:00"}`,
				`{"id": [1,2]}`,
				`{"id": "a-2", "title": "Board games", "latitude": 25.04, "longitude": 121.5, "photos": ["p.jpg"]}`,
			}}
			db := &fakeDB{rows: rows}
			f, _ := NewFetcher(db)
			got, err := f.FetchAll(ctx)

			Convey("Then the good rows are returned in order and the bad one skipped", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(string(got[0].ID), ShouldEqual, "7")
				So(got[0].Price.String(), ShouldEqual, "150")
				So(string(got[1].ID), ShouldEqual, "a-2")
				So(got[1].Photos, ShouldResemble, []string{"p.jpg"})
				So(rows.closed, ShouldBeTrue)
				So(db.query, ShouldContainSubstring, `FROM "activities"`)
			})
		})

		Convey("When the query fails", func() {
			boom := errors.New("connection refused")
			f, _ := NewFetcher(&fakeDB{err: boom})
			_, err := f.FetchAll(ctx)

			Convey("Then the error is wrapped", func() {
				So(errors.Is(err, ErrFetch), ShouldBeTrue)
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})

		Convey("When iteration fails midway", func() {
			boom := errors.New("conn reset")
			f, _ := NewFetcher(&fakeDB{rows: &fakeRows{bodies: []string{`{"id":"1"}`}, err: boom}})
			_, err := f.FetchAll(ctx)
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})
}
