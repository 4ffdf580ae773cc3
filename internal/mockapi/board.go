package mockapi

import (
	"math/rand/v2"
	"sync"
	"time"
)

const maxBookings = 20

type wirePerson struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type wireBooking struct {
	ID        int         `json:"id"`
	RideID    int         `json:"ride_id"`
	User      *wirePerson `json:"user"`
	Rider     *wirePerson `json:"rider"`
	Status    string      `json:"status"`
	Fare      float64     `json:"fare"`
	CreatedAt string      `json:"created_at"`
}

// Dashboard is the body of GET dashboard/counts and of every push.
type Dashboard struct {
	Counts   map[string]int64 `json:"counts"`
	Bookings []wireBooking    `json:"bookings"`
}

var (
	customers = []wirePerson{{"Ana", "Cruz"}, {"Ben", "Santos"}, {"Cara", "Diaz"}, {"Dan", "Uy"}, {"Eve", "Ramos"}}
	riders    = []wirePerson{{"Rico", "Lopez"}, {"Mara", "Go"}, {"Nilo", "Bautista"}}
)

// board is the simulated back office state.
type board struct {
	mu       sync.Mutex
	rng      *rand.Rand
	counts   map[string]int64
	bookings []wireBooking
	nextID   int
}

func newBoard(seed uint64, now time.Time) *board {
	b := &board{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		counts: map[string]int64{
			"active_riders":   12,
			"disabled_riders": 2,
			"admin_count":     3,
			"customers":       48,
			"completed_rides": 230,
			"verified":        10,
			"pending":         4,
		},
		nextID: 1,
	}
	for i := 0; i < 6; i++ {
		b.addBooking(now.Add(-time.Duration(6-i) * time.Minute))
	}
	return b
}

func (b *board) snapshot() Dashboard {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *board) snapshotLocked() Dashboard {
	out := Dashboard{Counts: make(map[string]int64, len(b.counts)), Bookings: make([]wireBooking, len(b.bookings))}
	for k, v := range b.counts {
		out.Counts[k] = v
	}
	copy(out.Bookings, b.bookings)
	return out
}

// tick simulates some activity: a new booking arrives and an older pending
// one may complete or be canceled.
func (b *board) tick(now time.Time) Dashboard {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addBooking(now)
	for i := len(b.bookings) - 1; i > 0; i-- {
		if b.bookings[i].Status != "Pending" {
			continue
		}
		if b.rng.IntN(4) == 0 {
			b.bookings[i].Status = "Canceled"
		} else {
			b.bookings[i].Status = "Completed"
			b.counts["completed_rides"]++
		}
		break
	}
	if b.rng.IntN(3) == 0 {
		b.counts["customers"]++
	}
	return b.snapshotLocked()
}

// addBooking expects b.mu held or b not yet shared.
func (b *board) addBooking(at time.Time) {
	c := customers[b.rng.IntN(len(customers))]
	r := riders[b.rng.IntN(len(riders))]
	booking := wireBooking{
		ID:        b.nextID,
		RideID:    1000 + b.nextID,
		User:      &c,
		Rider:     &r,
		Status:    "Pending",
		Fare:      float64(60 + b.rng.IntN(240)),
		CreatedAt: at.UTC().Format(time.RFC3339),
	}
	b.nextID++
	b.bookings = append([]wireBooking{booking}, b.bookings...)
	if len(b.bookings) > maxBookings {
		b.bookings = b.bookings[:maxBookings]
	}
}
