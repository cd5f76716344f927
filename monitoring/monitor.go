// Package monitoring turns a running control loop into a small HTTP server
// for external observation: component listing and inspection, forced polls,
// event injection, resource usage, CPU profiles, and Prometheus metrics.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/embedlab/tact/ctrl"
	"github.com/embedlab/tact/eventbus"
)

// Monitor allows external observation and limited control of a running
// control loop.
type Monitor struct {
	controller *ctrl.Controller
	bus        *eventbus.Bus

	registry *prometheus.Registry
	metrics  *Metrics

	portNumber    int
	openDashboard bool
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	registry := prometheus.NewRegistry()

	return &Monitor{
		registry: registry,
		metrics:  NewMetrics(registry),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber > 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithDashboardOpen makes StartServer open the monitor page in a browser.
func (m *Monitor) WithDashboardOpen() *Monitor {
	m.openDashboard = true
	return m
}

// RegisterController registers the controller that drives the loop.
func (m *Monitor) RegisterController(c *ctrl.Controller) {
	m.controller = c
}

// RegisterBus registers the event bus the loop is wired to.
func (m *Monitor) RegisterBus(b *eventbus.Bus) {
	m.bus = b
}

// Metrics returns the hook that feeds the monitor's Prometheus counters.
// Attach it to the scheduler and the bus during wiring.
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// StartServer starts the monitor as a web server with a custom port if
// wanted.
func (m *Monitor) StartServer() {
	actualPort := ":0"
	if m.portNumber >= 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring control loop with %s\n", url)

	go func() {
		dieOnErr(http.Serve(listener, m.router()))
	}()

	if m.openDashboard {
		_ = browser.OpenURL(url)
	}
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/poll/{name}", m.pollComponent)
	r.HandleFunc("/api/emit", m.emitEvent)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(
		m.registry, promhttp.HandlerOpts{}))

	return r
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	scheduler := m.controller.Scheduler()

	fmt.Fprintf(w, "{\"now\":%q,\"tick\":%d}",
		scheduler.CurrentTime().Format(time.RFC3339Nano),
		scheduler.TickCount())
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "[")
	for i, c := range m.controller.Components() {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "%q", c.Name())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) listComponentDetails(
	w http.ResponseWriter,
	r *http.Request,
) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	dieOnErr(serializer.Serialize(w))
}

// pollComponent marks the component's task due so the control goroutine polls
// it on its next tick.
func (m *Monitor) pollComponent(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if m.findComponentOr404(w, name) == nil {
		return
	}

	m.controller.Scheduler().Expedite(name)
	w.WriteHeader(http.StatusOK)
}

type emitReq struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// emitEvent injects an event into the bus from outside the control
// goroutine. The bus serializes this with the loop's own deliveries.
func (m *Monitor) emitEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if m.bus == nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "no event bus registered")

		return
	}

	var req emitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	m.bus.Emit(eventbus.Event{Type: req.Type, Payload: req.Payload})
	w.WriteHeader(http.StatusOK)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	b, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(b)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	fmt.Fprintf(w, "{\"samples\":%d,\"duration_ns\":%d}",
		len(prof.Sample), prof.DurationNanos)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) ctrl.Component {
	component := m.controller.ComponentByName(name)
	if component == nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "component %s not found", name)
	}

	return component
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
