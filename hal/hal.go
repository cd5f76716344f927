// Package hal holds the hardware abstraction layer of the demo system:
// concrete sensors and actuators that the control core polls. Value
// generation is injected so the components stay deterministic under test.
package hal

import (
	"math/rand"

	"github.com/embedlab/tact/ctrl"
)

// A Sensor is a component that reads values from its environment.
type Sensor interface {
	ctrl.Component

	Read() int
}

// An Actuator is a component that drives a value onto its environment.
type Actuator interface {
	ctrl.Component

	Write(value int)
}

// A ValueSource produces the raw values a component observes or drives. It
// stands in for hardware register access.
type ValueSource interface {
	Next() int
}

// NewRandSource returns a ValueSource producing base + [0, span) from a
// seeded generator.
func NewRandSource(seed int64, base, span int) ValueSource {
	return &randSource{
		rng:  rand.New(rand.NewSource(seed)),
		base: base,
		span: span,
	}
}

type randSource struct {
	rng  *rand.Rand
	base int
	span int
}

func (s *randSource) Next() int {
	return s.base + s.rng.Intn(s.span)
}
