// Package ctrl implements the control core: a cooperative scheduler that
// polls a fixed set of components at independent periods from a single
// control goroutine.
package ctrl

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// A Component is a pollable unit driven by the Controller.
//
// Init is called exactly once, strictly before the first Update. Update is
// invoked repeatedly from the scheduler's control goroutine and must not
// block for long, or it stalls every other component.
type Component interface {
	Named

	// Init prepares the component for polling. An error aborts the
	// component's registration.
	Init() error

	// Update polls the component once.
	Update()
}

// ComponentBase provides the functions that concrete components can use.
type ComponentBase struct {
	name string
}

// NewComponentBase creates a new ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	c := new(ComponentBase)
	c.name = name

	return c
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}
