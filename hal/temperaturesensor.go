package hal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/embedlab/tact/ctrl"
	"github.com/embedlab/tact/datarecording"
	"github.com/embedlab/tact/eventbus"
)

// EventTypeAlert is the event type that sensors emit when a reading crosses
// their alert threshold.
const EventTypeAlert = "ALERT"

// TemperatureReading is the sample shape a TemperatureSensor records.
type TemperatureReading struct {
	Reading uint64
	Value   int
}

// A TemperatureSensor polls a ValueSource and reports the observed
// temperature. It can optionally record every reading and raise an ALERT
// event when a reading exceeds a threshold.
type TemperatureSensor struct {
	*ctrl.ComponentBase

	source ValueSource
	logger zerolog.Logger

	bus            *eventbus.Bus
	alertThreshold int

	recorder  datarecording.Recorder
	tableName string

	readings uint64
	last     int
}

// NewTemperatureSensor creates a TemperatureSensor reading from the given
// source.
func NewTemperatureSensor(name string, source ValueSource) *TemperatureSensor {
	return &TemperatureSensor{
		ComponentBase: ctrl.NewComponentBase(name),
		source:        source,
		logger:        zerolog.Nop(),
	}
}

// WithLogger configures the sensor to log its readings.
func (s *TemperatureSensor) WithLogger(logger zerolog.Logger) *TemperatureSensor {
	s.logger = logger.With().Str("component", s.Name()).Logger()
	return s
}

// WithAlerts configures the sensor to emit an ALERT event on the bus when a
// reading exceeds the threshold.
func (s *TemperatureSensor) WithAlerts(
	bus *eventbus.Bus,
	threshold int,
) *TemperatureSensor {
	s.bus = bus
	s.alertThreshold = threshold

	return s
}

// WithRecorder configures the sensor to record every reading.
func (s *TemperatureSensor) WithRecorder(
	recorder datarecording.Recorder,
) *TemperatureSensor {
	s.recorder = recorder
	return s
}

// Init prepares the sensor for polling.
func (s *TemperatureSensor) Init() error {
	if s.source == nil {
		return errors.New("no value source attached")
	}

	if s.recorder != nil {
		s.tableName = sampleTableName(s.Name())
		s.recorder.CreateTable(s.tableName, TemperatureReading{})
	}

	s.logger.Info().Msg("temperature sensor initialized")

	return nil
}

// Read returns the next value from the sensor's source.
func (s *TemperatureSensor) Read() int {
	return s.source.Next()
}

// Update polls the sensor once.
func (s *TemperatureSensor) Update() {
	value := s.Read()
	s.readings++
	s.last = value

	s.logger.Info().Int("value", value).Msg("temperature read")

	if s.recorder != nil {
		s.recorder.InsertSample(s.tableName, TemperatureReading{
			Reading: s.readings,
			Value:   value,
		})
	}

	if s.bus != nil && value > s.alertThreshold {
		s.bus.Emit(eventbus.Event{
			Type:    EventTypeAlert,
			Payload: fmt.Sprintf("high temperature detected: %d", value),
		})
	}
}

// LastValue returns the value of the most recent reading.
func (s *TemperatureSensor) LastValue() int {
	return s.last
}

func sampleTableName(componentName string) string {
	sanitized := strings.NewReplacer("-", "_", ".", "_", " ", "_").
		Replace(componentName)

	return sanitized + "_samples"
}

var _ Sensor = (*TemperatureSensor)(nil)
