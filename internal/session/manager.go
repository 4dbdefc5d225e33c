package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/herbertwells/Volcano/internal/gatt"
	"github.com/herbertwells/Volcano/internal/protocol"
)

// ErrNotConnected is returned by commands issued while the session is not
// connected. Commands are never silently dropped.
var ErrNotConnected = errors.New("session: not connected")

var errUserDisconnect = errors.New("session: disconnect requested")

const (
	defaultPollInterval   = time.Second
	defaultRSSIInterval   = 60 * time.Second
	defaultConnectTimeout = 20 * time.Second
	defaultBackoffInitial = 3 * time.Second
	defaultBackoffMax     = 30 * time.Second
	defaultWaitInterval   = 500 * time.Millisecond
)

// Manager maintains a session with a single Volcano: connect, read device
// identity, subscribe to status notifications, poll the temperature, and
// recover from transport failures with backoff. All snapshot mutation goes
// through the manager; consumers read via Snapshot and observe via Register.
type Manager struct {
	transport gatt.Transport
	address   string
	log       *zap.SugaredLogger

	pollInterval   time.Duration
	rssiInterval   time.Duration
	connectTimeout time.Duration
	backoffInitial time.Duration
	backoffMax     time.Duration
	waitInterval   time.Duration

	observers *registry

	// wantConnected distinguishes user-initiated disconnects (no retry)
	// from transport failures (retry with backoff). nudge wakes the control
	// loop out of parking or a backoff sleep.
	wantConnected atomic.Bool
	nudge         chan struct{}

	mu      sync.RWMutex
	snap    Snapshot
	conn    gatt.Connection
	fail    context.CancelCauseFunc
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// New creates a manager for the device at the given transport address.
func New(transport gatt.Transport, address string, opts ...Option) (*Manager, error) {
	if address == "" {
		return nil, errors.New("session: device address required")
	}
	m := &Manager{
		transport:      transport,
		address:        address,
		log:            zap.NewNop().Sugar(),
		pollInterval:   defaultPollInterval,
		rssiInterval:   defaultRSSIInterval,
		connectTimeout: defaultConnectTimeout,
		backoffInitial: defaultBackoffInitial,
		backoffMax:     defaultBackoffMax,
		waitInterval:   defaultWaitInterval,
		observers:      newRegistry(),
		nudge:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Address returns the device address this manager targets.
func (m *Manager) Address() string { return m.address }

// Snapshot returns the latest device state. Safe to call from any
// goroutine; never blocks on I/O.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Register adds an observer and returns its registration token.
func (m *Manager) Register(fn Observer) uuid.UUID {
	return m.observers.register(fn)
}

// Unregister removes a previously registered observer.
func (m *Manager) Unregister(id uuid.UUID) {
	m.observers.unregister(id)
}

// Start launches the control goroutine and begins connecting.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.started = true
	m.mu.Unlock()

	m.wantConnected.Store(true)
	m.wg.Add(1)
	go m.run(ctx)
}

// Stop terminates the manager. All outstanding work is cancelled and the
// transport handle released; the manager makes no further transitions.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	started := m.started
	m.cancel = nil
	m.started = false
	m.mu.Unlock()
	if !started {
		return
	}
	cancel()
	m.wg.Wait()

	if m.Snapshot().Status != StatusDisconnected {
		m.setStatus(StatusDisconnected, "")
	}
}

// Connect requests a connection, waking the control loop if it is parked
// after a user disconnect or sleeping out a retry backoff.
func (m *Manager) Connect() {
	m.wantConnected.Store(true)
	m.wake()
}

// Disconnect tears the session down without scheduling a retry. Calling it
// while already disconnected is a no-op.
func (m *Manager) Disconnect() {
	m.wantConnected.Store(false)
	m.mu.RLock()
	fail := m.fail
	m.mu.RUnlock()
	if fail != nil {
		fail(errUserDisconnect)
	}
	m.wake()
}

func (m *Manager) wake() {
	select {
	case m.nudge <- struct{}{}:
	default:
	}
}

// run is the single owner goroutine: it drives the
// connect/serve/teardown/retry cycle until the manager is stopped.
func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	attempt := 0
	for ctx.Err() == nil {
		if !m.wantConnected.Load() {
			m.park(ctx)
			attempt = 0
			continue
		}

		connected, err := m.runSession(ctx)
		if connected {
			attempt = 0
		}
		switch {
		case ctx.Err() != nil:
			return
		case err == nil || errors.Is(err, errUserDisconnect):
			m.setStatus(StatusDisconnected, "")
		default:
			delay := backoffDelay(attempt, m.backoffInitial, m.backoffMax)
			attempt++
			m.setStatus(StatusError, err.Error())
			m.log.Warnw("session failed, scheduling retry",
				"error", err, "delay", delay, "attempt", attempt)
			select {
			case <-ctx.Done():
			case <-m.nudge:
			case <-time.After(delay):
			}
		}
	}
}

// park idles the control loop after a user disconnect until the next
// Connect call.
func (m *Manager) park(ctx context.Context) {
	if m.Snapshot().Status != StatusDisconnected {
		m.setStatus(StatusDisconnected, "")
	}
	select {
	case <-ctx.Done():
	case <-m.nudge:
	}
}

// runSession performs one full connection cycle. The returned bool reports
// whether a link was established at all, which resets the backoff counter.
func (m *Manager) runSession(ctx context.Context) (bool, error) {
	m.setStatus(StatusConnecting, "")
	m.log.Infow("connecting", "address", m.address)

	cctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	conn, err := m.transport.Connect(cctx, m.address)
	cancel()
	if err != nil {
		return false, err
	}

	// Disconnect or Stop may have raced the connect attempt.
	if ctx.Err() != nil || !m.wantConnected.Load() {
		m.teardown(conn)
		return true, errUserDisconnect
	}

	sctx, fail := context.WithCancelCause(ctx)
	defer fail(nil)

	m.mu.Lock()
	m.conn = conn
	m.fail = fail
	m.mu.Unlock()

	conn.OnDisconnect(func() {
		fail(gatt.NewError(gatt.KindPeerDisconnected, "link", nil))
	})

	m.log.Infow("connected", "address", m.address)
	m.setStatus(StatusConnected, "")

	// Static identity and setting mirrors, once per connection. Individual
	// failures leave the fields unset; they never abort the session.
	m.readDeviceInfo(conn)
	m.readSettings(conn)

	err = conn.Subscribe(protocol.UUIDStatusNotify, m.handleStatus)
	if err == nil {
		err = m.poll(sctx, conn)
	}

	m.teardown(conn)
	return true, err
}

// teardown releases the transport handle. Secondary failures during
// disconnect are logged, never escalated.
func (m *Manager) teardown(conn gatt.Connection) {
	m.mu.Lock()
	m.conn = nil
	m.fail = nil
	m.mu.Unlock()

	if err := conn.Disconnect(); err != nil {
		m.log.Debugw("disconnect during teardown", "error", err)
	}
}

// poll reads the temperature on the fast interval and signal strength on
// the slow one, until the session context is cancelled or a transport error
// escalates. Heater and pump state are not polled; they arrive through the
// notification subscription.
func (m *Manager) poll(ctx context.Context, conn gatt.Connection) error {
	// Prime immediately so consumers see a reading right after connect.
	if err := m.readTemperature(conn); err != nil {
		return err
	}
	m.readRSSI(conn)

	tempTick := time.NewTicker(m.pollInterval)
	defer tempTick.Stop()
	rssiTick := time.NewTicker(m.rssiInterval)
	defer rssiTick.Stop()

	for {
		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); cause != ctx.Err() {
				return cause
			}
			return nil
		case <-tempTick.C:
			if err := m.readTemperature(conn); err != nil {
				return err
			}
		case <-rssiTick.C:
			m.readRSSI(conn)
		}
	}
}

func (m *Manager) readTemperature(conn gatt.Connection) error {
	data, err := conn.ReadCharacteristic(protocol.UUIDCurrentTemperature)
	if err != nil {
		return err
	}
	celsius, err := protocol.DecodeTemperature(data)
	if err != nil {
		// A malformed payload affects this reading only.
		m.log.Warnw("malformed temperature payload", "len", len(data))
		m.update(func(s *Snapshot) { s.Temperature = nil })
		return nil
	}
	m.update(func(s *Snapshot) { s.Temperature = ptr(celsius) })
	return nil
}

// readRSSI polls link quality when the transport supports it. Failures and
// missing support are both non-fatal and simply leave the field unset.
func (m *Manager) readRSSI(conn gatt.Connection) {
	reader, ok := conn.(gatt.RSSIReader)
	if !ok {
		return
	}
	rssi, err := reader.RSSI()
	if err != nil {
		m.log.Debugw("rssi read failed", "error", err)
		return
	}
	m.update(func(s *Snapshot) { s.RSSI = ptr(rssi) })
}

func (m *Manager) readDeviceInfo(conn gatt.Connection) {
	firmware := m.readString(conn, protocol.UUIDFirmwareVersion, "firmware version")
	bleFirmware := m.readString(conn, protocol.UUIDBLEFirmwareVersion, "ble firmware version")
	serial := m.readString(conn, protocol.UUIDSerialNumber, "serial number")

	m.update(func(s *Snapshot) {
		if firmware != nil {
			s.FirmwareVersion = firmware
		}
		if bleFirmware != nil {
			s.BLEFirmwareVersion = bleFirmware
		}
		if serial != nil {
			s.SerialNumber = serial
		}
	})
}

func (m *Manager) readString(conn gatt.Connection, charUUID, name string) *string {
	data, err := conn.ReadCharacteristic(charUUID)
	if err != nil {
		m.log.Warnw("read "+name, "error", err)
		return nil
	}
	return ptr(protocol.DecodeString(data))
}

// readSettings primes the optimistic mirrors and operation counters from
// the device so they are populated before the first user write.
func (m *Manager) readSettings(conn gatt.Connection) {
	var brightness *uint8
	if data, err := conn.ReadCharacteristic(protocol.UUIDLEDBrightness); err != nil {
		m.log.Warnw("read led brightness", "error", err)
	} else if v, err := protocol.DecodeBrightness(data); err != nil {
		m.log.Warnw("malformed led brightness payload", "len", len(data))
	} else {
		brightness = ptr(v)
	}

	var shutoffEnabled *bool
	if data, err := conn.ReadCharacteristic(protocol.UUIDAutoShutoffEnable); err != nil {
		m.log.Warnw("read auto shutoff enable", "error", err)
	} else if v, err := protocol.DecodeBool(data); err != nil {
		m.log.Warnw("malformed auto shutoff enable payload", "len", len(data))
	} else {
		shutoffEnabled = ptr(v)
	}

	var shutoffMinutes *uint16
	if data, err := conn.ReadCharacteristic(protocol.UUIDAutoShutoffSeconds); err != nil {
		m.log.Warnw("read auto shutoff duration", "error", err)
	} else if v, err := protocol.DecodeShutoffSeconds(data); err != nil {
		m.log.Warnw("malformed auto shutoff duration payload", "len", len(data))
	} else {
		shutoffMinutes = ptr(v)
	}

	hours := m.readCounter(conn, protocol.UUIDHoursOfOperation, "hours of operation")
	minutes := m.readCounter(conn, protocol.UUIDMinutesOfOperation, "minutes of operation")

	m.update(func(s *Snapshot) {
		if brightness != nil {
			s.LEDBrightness = brightness
		}
		if shutoffEnabled != nil {
			s.AutoShutoffEnabled = shutoffEnabled
		}
		if shutoffMinutes != nil {
			s.AutoShutoffMinutes = shutoffMinutes
		}
		if hours != nil {
			s.HoursOfOperation = hours
		}
		if minutes != nil {
			s.MinutesOfOperation = minutes
		}
	})
}

func (m *Manager) readCounter(conn gatt.Connection, charUUID, name string) *uint16 {
	data, err := conn.ReadCharacteristic(charUUID)
	if err != nil {
		m.log.Warnw("read "+name, "error", err)
		return nil
	}
	v, err := protocol.DecodeUint16(data)
	if err != nil {
		m.log.Warnw("malformed "+name+" payload", "len", len(data))
		return nil
	}
	return ptr(v)
}

// handleStatus runs on the transport's notification goroutine, decoupled
// from the poll loop.
func (m *Manager) handleStatus(data []byte) {
	update, err := protocol.DecodeStatus(data)
	if err != nil {
		m.log.Warnw("malformed status notification", "len", len(data))
		return
	}
	if !update.Known {
		m.log.Debugw("unrecognized status pattern", "b0", data[0], "b1", data[1])
	}
	m.update(func(s *Snapshot) {
		s.HeaterOn = toggleToBool(update.Heater)
		s.PumpOn = toggleToBool(update.Pump)
		s.HeaterDetail = update.Detail
	})
}

func toggleToBool(t protocol.ToggleState) *bool {
	switch t {
	case protocol.ToggleOn:
		return ptr(true)
	case protocol.ToggleOff:
		return ptr(false)
	default:
		return nil
	}
}

// update applies a mutation under the lock and broadcasts the resulting
// snapshot to observers, once per logical operation.
func (m *Manager) update(mutate func(*Snapshot)) {
	m.mu.Lock()
	mutate(&m.snap)
	snap := m.snap
	m.mu.Unlock()
	m.observers.broadcast(snap)
}

func (m *Manager) setStatus(status Status, lastError string) {
	m.update(func(s *Snapshot) {
		s.Status = status
		s.LastError = lastError
	})
}

// write dispatches a command to the device. Commands are gated on the
// connected state; a transport failure escalates through the session's
// teardown-and-retry path.
func (m *Manager) write(charUUID string, payload []byte, mirror func(*Snapshot)) error {
	m.mu.RLock()
	conn := m.conn
	fail := m.fail
	connected := m.snap.Status == StatusConnected
	m.mu.RUnlock()

	if !connected || conn == nil {
		m.log.Warnw("command dropped, not connected", "characteristic", charUUID)
		return ErrNotConnected
	}
	if err := conn.WriteCharacteristic(charUUID, payload); err != nil {
		if fail != nil {
			fail(err)
		}
		return err
	}
	if mirror != nil {
		m.update(mirror)
	}
	return nil
}

// SetHeaterTemperature writes the heater setpoint, silently clamped to the
// device's 40-230 °C envelope.
func (m *Manager) SetHeaterTemperature(celsius float64) error {
	clamped := celsius
	if clamped < protocol.MinTemperature {
		clamped = protocol.MinTemperature
	}
	if clamped > protocol.MaxTemperature {
		clamped = protocol.MaxTemperature
	}
	if clamped != celsius {
		m.log.Warnw("setpoint clamped to device range",
			"requested", celsius, "clamped", clamped)
	}
	payload := protocol.EncodeTemperature(clamped, protocol.MinTemperature, protocol.MaxTemperature)
	return m.write(protocol.UUIDHeaterSetpoint, payload[:], func(s *Snapshot) {
		s.TargetTemperature = ptr(clamped)
	})
}

// SetLEDBrightness writes the LED brightness register (0-100).
func (m *Manager) SetLEDBrightness(percent uint8) error {
	if percent > 100 {
		m.log.Warnw("brightness clamped", "requested", percent)
		percent = 100
	}
	payload := protocol.EncodeBrightness(percent)
	return m.write(protocol.UUIDLEDBrightness, payload[:], func(s *Snapshot) {
		s.LEDBrightness = ptr(percent)
	})
}

// SetAutoShutoff enables or disables the auto-shutoff timer.
func (m *Manager) SetAutoShutoff(enabled bool) error {
	payload := protocol.EncodeBool(enabled)
	return m.write(protocol.UUIDAutoShutoffEnable, payload[:], func(s *Snapshot) {
		s.AutoShutoffEnabled = ptr(enabled)
	})
}

// SetAutoShutoffMinutes writes the auto-shutoff duration. The device
// register stores seconds.
func (m *Manager) SetAutoShutoffMinutes(minutes uint16) error {
	payload := protocol.EncodeShutoffMinutes(minutes)
	return m.write(protocol.UUIDAutoShutoffSeconds, payload[:], func(s *Snapshot) {
		s.AutoShutoffMinutes = ptr(minutes)
	})
}

// HeatOn turns the heater on. The resulting state change arrives through
// the status notification stream, not synchronously with the write.
func (m *Manager) HeatOn() error {
	payload := protocol.EncodeBool(true)
	return m.write(protocol.UUIDHeatOn, payload[:], nil)
}

// HeatOff turns the heater off.
func (m *Manager) HeatOff() error {
	payload := protocol.EncodeBool(false)
	return m.write(protocol.UUIDHeatOff, payload[:], nil)
}

// PumpOn turns the pump on.
func (m *Manager) PumpOn() error {
	payload := protocol.EncodeBool(true)
	return m.write(protocol.UUIDPumpOn, payload[:], nil)
}

// PumpOff turns the pump off.
func (m *Manager) PumpOff() error {
	payload := protocol.EncodeBool(false)
	return m.write(protocol.UUIDPumpOff, payload[:], nil)
}

// WriteRaw writes an arbitrary payload to a characteristic.
func (m *Manager) WriteRaw(charUUID string, payload []byte) error {
	return m.write(charUUID, payload, nil)
}

// WaitForTemperature samples the snapshot until the heater reaches target
// or timeout elapses. Best-effort: a timeout is logged, not an error, since
// the target may legitimately never be reached.
func (m *Manager) WaitForTemperature(target float64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		snap := m.Snapshot()
		if snap.Temperature != nil && *snap.Temperature >= target {
			return true
		}
		if time.Now().After(deadline) {
			m.log.Warnw("target temperature not reached",
				"target", target, "timeout", timeout)
			return false
		}
		time.Sleep(m.waitInterval)
	}
}
