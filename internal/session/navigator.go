package session

// Route names a view.
type Route string

const (
	RouteDashboard Route = "/dashboard"
	RouteLogin     Route = "/login"
)

// Navigator moves the UI to a route.
type Navigator interface {
	Navigate(route Route)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(Route)

func (f NavigatorFunc) Navigate(r Route) { f(r) }
