package dto

import "time"

type CardOutput struct {
	Title   string
	Value   int64
	Caption string
}

type VerificationOutput struct {
	Verified    int64
	Pending     int64
	VerifiedPct int
	PendingPct  int
}

type BookingOutput struct {
	ID        string
	RideID    string
	Customer  string
	Rider     string
	Status    string
	Tone      string // done, canceled or pending
	Fare      string
	CreatedAt string
}

// ViewOutput is what the dashboard shows right now.
type ViewOutput struct {
	Mounted        bool
	InitialLoading bool
	Loading        bool
	Cards          []CardOutput
	Verification   VerificationOutput
	Bookings       []BookingOutput
	TotalBookings  int
	PageSize       int
	LastError      string
	// Live is closed, connecting, open or stopped.
	Live      string
	Source    string
	Seq       uint64
	UpdatedAt time.Time
}
