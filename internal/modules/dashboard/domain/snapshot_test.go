package domain

import (
	"testing"

	sessiondomain "dispatchdesk/internal/modules/session/domain"
)

func TestParseSnapshotObjectAndStringForms(t *testing.T) {
	t.Parallel()
	object := []byte(`{"counts":{"customers":5,"active_riders":"3","verified":1.0,"junk":{"x":1}},
		"bookings":[{"id":11,"ride_id":"R-9","user":{"first_name":"Ana","last_name":"Cruz"},"rider":null,"status":"Completed","fare":"120.50","created_at":"2024-01-01"}]}`)
	snap, err := ParseSnapshot(object)
	if err != nil {
		t.Fatalf("parse object: %v", err)
	}
	if snap.Counts.Get(CountCustomers) != 5 || snap.Counts.Get(CountActiveRiders) != 3 || snap.Counts.Get(CountVerified) != 1 {
		t.Fatalf("unexpected counts: %+v", snap.Counts)
	}
	if _, ok := snap.Counts["junk"]; ok {
		t.Fatalf("non numeric count kept")
	}
	if len(snap.Bookings) != 1 {
		t.Fatalf("expected one booking, got %d", len(snap.Bookings))
	}
	b := snap.Bookings[0]
	if b.ID != "11" || b.RideID != "R-9" || b.Customer.Name() != "Ana Cruz" || b.Rider.Name() != "N/A" || b.Fare != "120.50" || b.Tone() != ToneDone {
		t.Fatalf("unexpected booking: %+v", b)
	}

	encoded := []byte(`"{\"counts\":{\"customers\":6},\"bookings\":[]}"`)
	snap, err = ParseSnapshot(encoded)
	if err != nil {
		t.Fatalf("parse string form: %v", err)
	}
	if snap.Counts.Get(CountCustomers) != 6 || len(snap.Bookings) != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	if _, err := ParseSnapshot([]byte(`{"other":1}`)); err == nil {
		t.Fatalf("expected error for payload without counts or bookings")
	}
	if _, err := ParseSnapshot([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestParseSnapshotKeepsBookingOrder(t *testing.T) {
	t.Parallel()
	snap, err := ParseSnapshot([]byte(`{"bookings":[{"id":3},{"id":1},{"id":2}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := []string{snap.Bookings[0].ID, snap.Bookings[1].ID, snap.Bookings[2].ID}
	if got[0] != "3" || got[1] != "1" || got[2] != "2" {
		t.Fatalf("order changed: %v", got)
	}
}

func TestCardsDependOnRole(t *testing.T) {
	t.Parallel()
	counts := Counts{CountDisabledRiders: 4, CountAdminsLegacy: 2}
	super := Cards(counts, sessiondomain.RoleSuperAdmin)
	if super[1].Title != "Active Admins" || super[1].Value != 2 {
		t.Fatalf("super-admin card: %+v", super[1])
	}
	counts[CountAdmins] = 9
	if got := Cards(counts, sessiondomain.RoleSuperAdmin)[1].Value; got != 9 {
		t.Fatalf("admin_count should win over admincount, got %d", got)
	}
	admin := Cards(counts, sessiondomain.RoleAdmin)
	if admin[1].Title != "Disabled Riders" || admin[1].Value != 4 {
		t.Fatalf("admin card: %+v", admin[1])
	}
	if len(admin) != 4 {
		t.Fatalf("expected four cards, got %d", len(admin))
	}
}

func TestVerificationPercentages(t *testing.T) {
	t.Parallel()
	v := VerificationOf(Counts{CountVerified: 2, CountPending: 1})
	if v.VerifiedPct != 67 || v.PendingPct != 33 {
		t.Fatalf("unexpected split: %+v", v)
	}
	empty := VerificationOf(Counts{})
	if empty.VerifiedPct != 0 || empty.PendingPct != 100 {
		t.Fatalf("unexpected empty split: %+v", empty)
	}
}

func TestPageSizeFor(t *testing.T) {
	t.Parallel()
	cases := []struct {
		height, row, want int
	}{
		{height: 530, row: 53, want: 9},
		{height: 100, row: 53, want: 3},
		{height: 0, row: 53, want: 3},
		{height: 20, row: 1, want: 19},
		{height: 20, row: 0, want: DefaultPageSize},
	}
	for _, tc := range cases {
		if got := PageSizeFor(tc.height, tc.row); got != tc.want {
			t.Fatalf("PageSizeFor(%d, %d) = %d, want %d", tc.height, tc.row, got, tc.want)
		}
	}
	if got := Visible([]Booking{{ID: "1"}, {ID: "2"}}, 5); len(got) != 2 {
		t.Fatalf("visible should cap at available bookings, got %d", len(got))
	}
}
