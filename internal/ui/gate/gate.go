// Package gate decides which view an operator may see for a session state.
package gate

import sessiondto "dispatchdesk/internal/modules/session/dto"

type View string

const (
	ViewNone      View = ""
	ViewLogin     View = "login"
	ViewDashboard View = "dashboard"
	ViewAccount   View = "account"
	ViewBookings  View = "bookings"
	ViewRiders    View = "riders"
	ViewCustomers View = "customers"
	ViewAdmins    View = "admins"
)

type Outcome int

const (
	// Loading means the session is not settled yet; nothing is shown.
	Loading Outcome = iota
	Admit
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Admit:
		return "admit"
	case Redirect:
		return "redirect"
	default:
		return "loading"
	}
}

type Decision struct {
	Outcome Outcome
	Target  View
}

var protected = map[View]bool{
	ViewDashboard: true,
	ViewAccount:   true,
	ViewBookings:  true,
	ViewRiders:    true,
	ViewCustomers: true,
	ViewAdmins:    true,
}

// Decide is pure: the same session and request always give the same
// decision.
func Decide(session sessiondto.SessionOutput, requested View) Decision {
	switch session.Status {
	case sessiondto.StatusAuthenticated:
		if protected[requested] {
			return Decision{Outcome: Admit, Target: requested}
		}
		return Decision{Outcome: Redirect, Target: ViewDashboard}
	case sessiondto.StatusAnonymous:
		if requested == ViewLogin {
			return Decision{Outcome: Admit, Target: ViewLogin}
		}
		return Decision{Outcome: Redirect, Target: ViewLogin}
	default:
		return Decision{Outcome: Loading}
	}
}

type NavItem struct {
	Label string
	View  View
	// Remote items are served by the web back office; the console only
	// shows a notice for them.
	Remote bool
}

// NavItems lists the side bar for role. Manage Admin is only offered to
// super-admins.
func NavItems(role int) []NavItem {
	items := []NavItem{
		{Label: "Dashboard", View: ViewDashboard},
		{Label: "Bookings", View: ViewBookings, Remote: true},
		{Label: "Riders", View: ViewRiders, Remote: true},
		{Label: "Customers", View: ViewCustomers, Remote: true},
	}
	if role == 1 {
		items = append(items, NavItem{Label: "Manage Admin", View: ViewAdmins, Remote: true})
	}
	return append(items, NavItem{Label: "Account", View: ViewAccount})
}
