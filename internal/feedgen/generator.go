package feedgen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/okian/nearby/internal/domain/model"
)

var titles = []string{ //nolint:gochecknoglobals // fixed vocabulary
	"Night market walk", "Rooftop yoga", "Board game evening", "Street food crawl",
	"Language exchange", "River cycling", "Jazz at the pier", "Pottery class",
	"Hiking meetup", "Bike share", "Spare desk", "Parking spot near station",
}

// Expected is the state an id must end in once every event is applied.
type Expected struct {
	Title   string
	Deleted bool
}

// Plan is an ordered event sequence and the state it converges to.
type Plan struct {
	Events []model.ChangeEvent
	Final  map[string]Expected
}

// Generate builds a plan from cfg. Events for one id are ordered; updates
// and deletes only touch ids that are live at that point in the sequence.
func Generate(cfg Config, now time.Time) Plan {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(now.UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data

	p := Plan{Final: make(map[string]Expected, cfg.Inserts)}
	live := make([]string, 0, cfg.Inserts)
	rows := make(map[string]model.RawActivity, cfg.Inserts)

	emit := func(op model.Operation, row model.RawActivity) {
		p.Events = append(p.Events, model.ChangeEvent{
			DeliveryID: uuid.NewString(),
			Operation:  op,
			Row:        row,
		})
	}

	for i := 0; i < cfg.Inserts; i++ {
		row := newRow(rng, cfg, now, i)
		id := string(row.ID)
		rows[id] = row
		live = append(live, id)
		p.Final[id] = Expected{Title: row.Title}
		emit(model.OpInsert, row)
	}

	// Interleave updates and deletes so some ids are updated after others go.
	updates, deletes := cfg.Updates, cfg.Deletes
	for (updates > 0 || deletes > 0) && len(live) > 0 {
		doDelete := deletes > 0 && (updates == 0 || rng.IntN(updates+deletes) < deletes)
		idx := rng.IntN(len(live))
		id := live[idx]
		if doDelete {
			deletes--
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
			p.Final[id] = Expected{Deleted: true}
			emit(model.OpDelete, model.RawActivity{ID: model.FlexID(id)})
			continue
		}
		updates--
		row := rows[id]
		row.Title = fmt.Sprintf("%s (rev %d)", baseTitle(row.Title), updates)
		row.CreatedAt = ""
		rows[id] = row
		p.Final[id] = Expected{Title: row.Title}
		emit(model.OpUpdate, row)
	}

	// A redelivery repeats its original right away with the same delivery id.
	for n := 0; n < cfg.Duplicates && len(p.Events) > 0; n++ {
		idx := rng.IntN(len(p.Events))
		dup := p.Events[idx]
		p.Events = append(p.Events[:idx+1], append([]model.ChangeEvent{dup}, p.Events[idx+1:]...)...)
	}
	return p
}

func newRow(rng *rand.Rand, cfg Config, now time.Time, i int) model.RawActivity {
	cats := model.AllCategories()
	lat, lng := scatter(rng, cfg)
	start := now.Add(time.Duration(rng.IntN(72)) * time.Hour).Truncate(time.Minute)
	row := model.RawActivity{
		ID:        model.FlexID(uuid.NewString()),
		Title:     fmt.Sprintf("%s #%d", titles[rng.IntN(len(titles))], i),
		Category:  string(cats[rng.IntN(len(cats))]),
		TimeStart: start.UTC().Format(time.RFC3339),
		TimeEnd:   start.Add(time.Duration(1+rng.IntN(4)) * time.Hour).UTC().Format(time.RFC3339),
		Price:     json.Number(strconv.Itoa(rng.IntN(500))),
		Unit:      "TWD",
		Location:  json.RawMessage(fmt.Sprintf("[%.6f, %.6f]", lat, lng)),
		CreatedAt: now.Add(-time.Duration(rng.IntN(7*24*60)) * time.Minute).UTC().Format(time.RFC3339),
		UserID:    "feedgen",
	}
	if rng.IntN(3) > 0 {
		row.Photos = []string{"https://img.example.com/" + string(row.ID) + ".jpg"}
	}
	return row
}

// scatter returns a point uniformly inside the configured disc.
func scatter(rng *rand.Rand, cfg Config) (lat, lng float64) {
	const kmPerDegree = 111.195
	r := cfg.RadiusKm * math.Sqrt(rng.Float64())
	theta := 2 * math.Pi * rng.Float64()
	dLat := r * math.Cos(theta) / kmPerDegree
	dLng := r * math.Sin(theta) / (kmPerDegree * math.Cos(cfg.Center.Lat*math.Pi/180))
	return cfg.Center.Lat + dLat, cfg.Center.Lng + dLng
}

func baseTitle(t string) string {
	base, _, _ := strings.Cut(t, " (rev ")
	return base
}
