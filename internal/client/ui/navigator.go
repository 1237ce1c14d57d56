// Package ui is the terminal presentation layer: screen rendering, the
// route navigator and the interactive shell that turns commands into
// controller intents.
package ui

import "sync"

// Route is a screen of the console.
type Route string

const (
	RouteLogin    Route = "login"
	RouteHome     Route = "home"
	RouteProducts Route = "products"
	RouteUsers    Route = "users"
)

// Protected reports whether r needs a session.
func (r Route) Protected() bool { return r != RouteLogin }

// Navigator tracks the current route. It is safe for concurrent use.
type Navigator struct {
	mu         sync.Mutex
	current    Route
	redirected bool
}

// NewNavigator returns a Navigator positioned at start.
func NewNavigator(start Route) *Navigator {
	return &Navigator{current: start}
}

// Current returns the active route.
func (n *Navigator) Current() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Go switches to r.
func (n *Navigator) Go(r Route) {
	n.mu.Lock()
	n.current = r
	n.mu.Unlock()
}

// RedirectToLogin switches to the login route and remembers that the
// switch was forced.
func (n *Navigator) RedirectToLogin() {
	n.mu.Lock()
	n.current = RouteLogin
	n.redirected = true
	n.mu.Unlock()
}

// TakeRedirect reports whether a forced redirect happened since the last
// call, and resets the flag.
func (n *Navigator) TakeRedirect() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := n.redirected
	n.redirected = false
	return r
}
