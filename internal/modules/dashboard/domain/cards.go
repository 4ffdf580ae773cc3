package domain

import (
	"math"

	sessiondomain "dispatchdesk/internal/modules/session/domain"
)

const (
	CountActiveRiders   = "active_riders"
	CountDisabledRiders = "disabled_riders"
	CountAdmins         = "admin_count"
	CountAdminsLegacy   = "admincount"
	CountCustomers      = "customers"
	CountCompletedRides = "completed_rides"
	CountVerified       = "verified"
	CountPending        = "pending"
)

type Card struct {
	Title   string
	Value   int64
	Caption string
}

// Cards lists the headline metrics. Super-admins see the admin count in the
// slot other operators use for disabled riders.
func Cards(counts Counts, role sessiondomain.Role) []Card {
	second := Card{Title: "Disabled Riders", Value: counts.Get(CountDisabledRiders), Caption: "Total Disabled Riders"}
	if role == sessiondomain.RoleSuperAdmin {
		second = Card{Title: "Active Admins", Value: counts.First(CountAdmins, CountAdminsLegacy), Caption: "Total Active Admins"}
	}
	return []Card{
		{Title: "Active Riders", Value: counts.Get(CountActiveRiders), Caption: "Total Active Riders"},
		second,
		{Title: "Customers", Value: counts.Get(CountCustomers), Caption: "Total Number of Customers"},
		{Title: "Completed Rides", Value: counts.Get(CountCompletedRides), Caption: "Total Completed Rides"},
	}
}

type Verification struct {
	Verified    int64
	Pending     int64
	VerifiedPct int
	PendingPct  int
}

// VerificationOf splits riders into verified and pending. With no riders the
// verified share is 0 and pending takes the remainder.
func VerificationOf(counts Counts) Verification {
	v := Verification{Verified: counts.Get(CountVerified), Pending: counts.Get(CountPending)}
	total := v.Verified + v.Pending
	if total > 0 {
		v.VerifiedPct = int(math.Round(float64(v.Verified) / float64(total) * 100))
	}
	v.PendingPct = 100 - v.VerifiedPct
	return v
}

const (
	DefaultPageSize = 5
	MinPageSize     = 3
)

// PageSizeFor is the number of booking rows that fit into height, keeping
// one row for the header and never fewer than MinPageSize.
func PageSizeFor(height, rowHeight int) int {
	if rowHeight <= 0 {
		return DefaultPageSize
	}
	rows := height/rowHeight - 1
	if rows < MinPageSize {
		return MinPageSize
	}
	return rows
}

// Visible returns the first n bookings in source order.
func Visible(bookings []Booking, n int) []Booking {
	if n < 0 {
		n = 0
	}
	if len(bookings) < n {
		n = len(bookings)
	}
	out := make([]Booking, n)
	copy(out, bookings[:n])
	return out
}
