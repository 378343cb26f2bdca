package metrics

import (
	"log/slog"
	"time"
)

// Daemon holds the metrics recorded by the switcher and the capture loop.
// All methods are no-ops on a nil *Daemon.
type Daemon struct {
	registry *Registry
	started  time.Time

	EventsTotal       *Counter
	MirroredTotal     *Counter
	RetypesTotal      *Counter
	RetypedKeysTotal  *Counter
	EpisodesTotal     *Counter
	DeviceLostTotal   *Counter
	AcquireFailsTotal *Counter
	PanicsTotal       *Counter

	BufferLength *Gauge

	RetypeDuration *Histogram
}

// NewDaemon registers the daemon metrics in registry, or in a fresh
// "kbswitchd" registry when registry is nil.
func NewDaemon(registry *Registry) *Daemon {
	if registry == nil {
		registry = NewRegistry("kbswitchd")
	}
	return &Daemon{
		registry: registry,
		started:  time.Now(),

		EventsTotal:       registry.Counter("events_total", "Input events read from the physical keyboard"),
		MirroredTotal:     registry.Counter("mirrored_keys_total", "Key events forwarded to the virtual keyboard"),
		RetypesTotal:      registry.Counter("retypes_total", "Trigger presses that ran the retype sequence"),
		RetypedKeysTotal:  registry.Counter("retyped_keys_total", "Keys typed again by retypes"),
		EpisodesTotal:     registry.Counter("episodes_total", "Capture episodes started"),
		DeviceLostTotal:   registry.Counter("device_lost_total", "Capture episodes ended by a lost keyboard"),
		AcquireFailsTotal: registry.Counter("acquire_failures_total", "Failed attempts to grab a keyboard or create the virtual keyboard"),
		PanicsTotal:       registry.Counter("panics_total", "Capture episodes ended by a recovered panic"),

		BufferLength: registry.Gauge("buffer_length", "Keys currently remembered in the typed-text buffer"),

		RetypeDuration: registry.Histogram("retype_duration_seconds", "Wall time of one retype sequence", RetypeBuckets),
	}
}

// Registry returns the registry the metrics live in.
func (d *Daemon) Registry() *Registry {
	if d == nil {
		return nil
	}
	return d.registry
}

// Event records one event read from the keyboard.
func (d *Daemon) Event() {
	if d != nil {
		d.EventsTotal.Inc()
	}
}

// Mirrored records one key event forwarded to the virtual keyboard.
func (d *Daemon) Mirrored() {
	if d != nil {
		d.MirroredTotal.Inc()
	}
}

// Retype records a completed retype of keys keys taking elapsed.
func (d *Daemon) Retype(keys int, elapsed time.Duration) {
	if d == nil {
		return
	}
	d.RetypesTotal.Inc()
	d.RetypedKeysTotal.Add(uint64(keys))
	d.RetypeDuration.ObserveDuration(elapsed)
}

// Buffer records the current buffer length.
func (d *Daemon) Buffer(n int) {
	if d != nil {
		d.BufferLength.Set(int64(n))
	}
}

// Episode records the start of a capture episode.
func (d *Daemon) Episode() {
	if d != nil {
		d.EpisodesTotal.Inc()
	}
}

// DeviceLost records an episode that ended because the keyboard went away.
func (d *Daemon) DeviceLost() {
	if d != nil {
		d.DeviceLostTotal.Inc()
	}
}

// AcquireFailed records a failed grab or virtual keyboard creation.
func (d *Daemon) AcquireFailed() {
	if d != nil {
		d.AcquireFailsTotal.Inc()
	}
}

// Panicked records an episode ended by a recovered panic.
func (d *Daemon) Panicked() {
	if d != nil {
		d.PanicsTotal.Inc()
	}
}

// LogValue implements slog.LogValuer so the whole set can be logged as one
// group attribute.
func (d *Daemon) LogValue() slog.Value {
	if d == nil {
		return slog.GroupValue()
	}
	return slog.GroupValue(
		slog.Duration("uptime", time.Since(d.started).Round(time.Second)),
		slog.Uint64("events", d.EventsTotal.Value()),
		slog.Uint64("mirrored", d.MirroredTotal.Value()),
		slog.Uint64("retypes", d.RetypesTotal.Value()),
		slog.Uint64("retyped_keys", d.RetypedKeysTotal.Value()),
		slog.Uint64("episodes", d.EpisodesTotal.Value()),
		slog.Uint64("device_lost", d.DeviceLostTotal.Value()),
		slog.Uint64("acquire_failures", d.AcquireFailsTotal.Value()),
		slog.Uint64("panics", d.PanicsTotal.Value()),
		slog.Int64("buffer_length", d.BufferLength.Value()),
		slog.Float64("retype_mean_seconds", d.RetypeDuration.Mean()),
	)
}
