package hal

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/embedlab/tact/ctrl"
)

// An LED is an actuator driven to a brightness level on every poll.
type LED struct {
	*ctrl.ComponentBase

	source ValueSource
	logger zerolog.Logger

	level int
}

// NewLED creates an LED whose drive values come from the given source.
func NewLED(name string, source ValueSource) *LED {
	return &LED{
		ComponentBase: ctrl.NewComponentBase(name),
		source:        source,
		logger:        zerolog.Nop(),
	}
}

// WithLogger configures the LED to log the values it is driven to.
func (l *LED) WithLogger(logger zerolog.Logger) *LED {
	l.logger = logger.With().Str("component", l.Name()).Logger()
	return l
}

// Init prepares the LED for polling.
func (l *LED) Init() error {
	if l.source == nil {
		return errors.New("no value source attached")
	}

	l.logger.Info().Msg("LED initialized")

	return nil
}

// Update drives the LED to the next value from its source.
func (l *LED) Update() {
	l.Write(l.source.Next())
}

// Write sets the LED brightness level.
func (l *LED) Write(value int) {
	l.level = value
	l.logger.Info().Int("level", value).Msg("LED set")
}

// Level returns the level the LED is currently driven to.
func (l *LED) Level() int {
	return l.level
}

var _ Actuator = (*LED)(nil)
