// Package portal holds the client-side route table and the guard that
// decides whether the current session may enter a protected portal view.
package portal

import (
	"strings"

	"medportal/internal/auth"
)

// Route is a client-side navigation path.
type Route string

const (
	Home          Route = "/"
	Login         Route = "/login"
	Register      Route = "/register"
	PatientPortal Route = "/patient-portal"
	DoctorPortal  Route = "/doctor-portal"
	StaffPortal   Route = "/staff-portal"
	AdminPortal   Route = "/admin-portal"
)

// RouteInfo describes one entry of the route table.
type RouteInfo struct {
	Route Route
	Title string
	// Required is the role gating the route; RoleNone for public routes.
	Required auth.Role
}

// Routes is the complete route surface.
var Routes = []RouteInfo{
	{Route: Home, Title: "Home"},
	{Route: Login, Title: "Sign in"},
	{Route: Register, Title: "Register"},
	{Route: PatientPortal, Title: "Patient Portal", Required: auth.RolePatient},
	{Route: DoctorPortal, Title: "Doctor Portal", Required: auth.RoleDoctor},
	{Route: StaffPortal, Title: "Staff Portal", Required: auth.RoleStaff},
	{Route: AdminPortal, Title: "Admin Portal", Required: auth.RoleAdmin},
}

// Resolve maps any path onto the route table. Unknown paths resolve to Home.
func Resolve(path string) Route {
	p := strings.ToLower(strings.TrimSpace(path))
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	for _, r := range Routes {
		if string(r.Route) == p {
			return r.Route
		}
	}
	return Home
}

// Info returns the table entry for r.
func Info(r Route) RouteInfo {
	for _, ri := range Routes {
		if ri.Route == r {
			return ri
		}
	}
	return Routes[0]
}

// RequiredRole returns the role gating r, or RoleNone for public routes.
func (r Route) RequiredRole() auth.Role { return Info(r).Required }

// Protected reports whether r is a portal route.
func (r Route) Protected() bool { return r.RequiredRole() != auth.RoleNone }

func (r Route) String() string { return string(r) }

// PortalFor returns the portal of role, or Login when there is none.
func PortalFor(role auth.Role) Route {
	for _, ri := range Routes {
		if ri.Required != auth.RoleNone && ri.Required == role {
			return ri.Route
		}
	}
	return Login
}
