package mockapi

import (
	"testing"
	"time"
)

func TestBoardTickAddsNewestFirstAndCaps(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	b := newBoard(3, now)
	first := b.snapshot()
	if len(first.Bookings) != 6 {
		t.Fatalf("expected 6 seeded bookings, got %d", len(first.Bookings))
	}

	next := b.tick(now.Add(time.Minute))
	if next.Bookings[0].ID != first.Bookings[0].ID+1 {
		t.Fatalf("newest booking is not first: %+v", next.Bookings[0])
	}
	for i := 0; i < 40; i++ {
		next = b.tick(now.Add(time.Duration(i+2) * time.Minute))
	}
	if len(next.Bookings) != maxBookings {
		t.Fatalf("bookings not capped: %d", len(next.Bookings))
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	b := newBoard(1, time.Now())
	snap := b.snapshot()
	snap.Counts["customers"] = -1
	snap.Bookings[0].Status = "mutated"
	again := b.snapshot()
	if again.Counts["customers"] == -1 || again.Bookings[0].Status == "mutated" {
		t.Fatalf("snapshot shares state with the board")
	}
}

func TestPasswordCheck(t *testing.T) {
	t.Parallel()
	u, ok := findUser(SeedUsers(), " SUPER@dispatchdesk.test")
	if !ok {
		t.Fatalf("seeded user not found")
	}
	if !u.checkPassword(SeedPassword) || u.checkPassword("nope") {
		t.Fatalf("password check is wrong")
	}
}
