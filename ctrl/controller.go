package ctrl

import (
	"context"
	"fmt"
	"time"
)

// A Controller owns the component registry and the scheduler that polls it.
//
// Components are initialized when added and polled in registration order.
// The controller is the sole owner of its scheduler.
type Controller struct {
	scheduler *Scheduler

	components    []Component
	compNameIndex map[string]int
}

// NewController creates a Controller that drives components through the
// given scheduler.
func NewController(scheduler *Scheduler) *Controller {
	return &Controller{
		scheduler:     scheduler,
		compNameIndex: make(map[string]int),
	}
}

// AddComponent initializes the component and schedules its Update at the
// given period. When Init returns an error or panics, the component is not
// stored and not scheduled, and the failure is returned to the caller.
// Components already registered are unaffected by a later failure.
func (c *Controller) AddComponent(comp Component, period time.Duration) error {
	name := comp.Name()

	if _, registered := c.compNameIndex[name]; registered {
		return fmt.Errorf("component %s already registered", name)
	}

	if err := initComponent(comp); err != nil {
		return fmt.Errorf("init component %s: %w", name, err)
	}

	c.components = append(c.components, comp)
	c.compNameIndex[name] = len(c.components) - 1

	c.scheduler.AddTask(name, comp.Update, period)

	return nil
}

// initComponent converts a panicking Init into an error so that one
// component's failure does not take down the caller.
func initComponent(comp Component) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during init: %v", r)
		}
	}()

	return comp.Init()
}

// Run drives the scheduler for the given number of ticks.
func (c *Controller) Run(ctx context.Context, cycles int) error {
	return c.scheduler.Run(ctx, cycles)
}

// Components returns the registered components in registration order.
func (c *Controller) Components() []Component {
	comps := make([]Component, len(c.components))
	copy(comps, c.components)

	return comps
}

// ComponentByName returns the component registered under the given name, or
// nil when there is none.
func (c *Controller) ComponentByName(name string) Component {
	index, registered := c.compNameIndex[name]
	if !registered {
		return nil
	}

	return c.components[index]
}

// Scheduler returns the scheduler that the controller owns.
func (c *Controller) Scheduler() *Scheduler {
	return c.scheduler
}
