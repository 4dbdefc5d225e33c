package gatt

import (
	"context"
	"errors"
	"sync"

	"tinygo.org/x/bluetooth"
)

var errCharacteristicNotFound = errors.New("characteristic not present on device")

// BluetoothTransport implements Transport on top of tinygo-org/bluetooth.
type BluetoothTransport struct {
	adapter *bluetooth.Adapter
	enabled bool

	// mu protects the connections map.
	mu          sync.Mutex
	connections map[string]*bluetoothConnection // keyed by device address
}

// NewBluetoothTransport wraps the platform default adapter.
func NewBluetoothTransport() *BluetoothTransport {
	return &BluetoothTransport{
		adapter:     bluetooth.DefaultAdapter,
		connections: make(map[string]*bluetoothConnection),
	}
}

// Enable powers on the adapter and registers the adapter-level disconnect
// handler, which is the only place the stack reports a dropped link.
func (t *BluetoothTransport) Enable() error {
	if t.enabled {
		return nil
	}
	if err := t.adapter.Enable(); err != nil {
		return NewError(KindAdapterUnavailable, "enable", err)
	}

	t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		addr := device.Address.String()
		t.mu.Lock()
		conn, ok := t.connections[addr]
		t.mu.Unlock()
		if ok {
			conn.fireDisconnect()
		}
	})

	t.enabled = true
	return nil
}

// Scan collects advertising peripherals until ctx is done, deduplicated by
// address.
func (t *BluetoothTransport) Scan(ctx context.Context) ([]Advertisement, error) {
	var mu sync.Mutex
	var found []Advertisement
	seen := make(map[string]bool)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.adapter.StopScan()
		case <-done:
		}
	}()

	err := t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := result.Address.String()
		mu.Lock()
		defer mu.Unlock()
		if seen[addr] {
			return
		}
		seen[addr] = true
		found = append(found, Advertisement{
			Name:    result.LocalName(),
			Address: addr,
			RSSI:    result.RSSI,
		})
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return nil, NewError(KindOther, "scan", err)
	}
	return found, nil
}

// Connect establishes a connection to the peripheral at the given address.
// The underlying stack blocks with its own timeout; ctx cancellation is
// honoured by returning early.
func (t *BluetoothTransport) Connect(ctx context.Context, address string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(address)

	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := t.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		return nil, NewError(KindTimeout, "connect", ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, NewError(KindOther, "connect", result.err)
		}
		conn := &bluetoothConnection{
			device: result.device,
			chars:  make(map[string]bluetooth.DeviceCharacteristic),
		}

		// Track the connection so the adapter-level disconnect handler
		// can find it and fire its OnDisconnect callback.
		t.mu.Lock()
		t.connections[address] = conn
		t.mu.Unlock()

		return conn, nil
	}
}

// Compile-time check that BluetoothTransport implements Transport.
var _ Transport = (*BluetoothTransport)(nil)

type bluetoothConnection struct {
	device bluetooth.Device

	mu           sync.Mutex
	chars        map[string]bluetooth.DeviceCharacteristic
	discovered   bool
	disconnected bool
	disconnectCb func()
}

// characteristic resolves a UUID to a discovered characteristic, running
// full service discovery on first use. The Volcano spreads its registers
// over two vendor services, so discovery is unfiltered and cached.
func (c *bluetoothConnection) characteristic(charUUID string) (bluetooth.DeviceCharacteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.discovered {
		svcs, err := c.device.DiscoverServices(nil)
		if err != nil {
			return bluetooth.DeviceCharacteristic{}, NewError(KindOther, "discover services", err)
		}
		for _, svc := range svcs {
			chars, err := svc.DiscoverCharacteristics(nil)
			if err != nil {
				return bluetooth.DeviceCharacteristic{}, NewError(KindOther, "discover characteristics", err)
			}
			for _, char := range chars {
				c.chars[char.UUID().String()] = char
			}
		}
		c.discovered = true
	}

	char, ok := c.chars[charUUID]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, NewError(KindOther, "resolve "+charUUID, errCharacteristicNotFound)
	}
	return char, nil
}

func (c *bluetoothConnection) ReadCharacteristic(charUUID string) ([]byte, error) {
	char, err := c.characteristic(charUUID)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 64)
	n, err := char.Read(buf)
	if err != nil {
		return nil, NewError(KindOther, "read "+charUUID, err)
	}
	return buf[:n], nil
}

func (c *bluetoothConnection) WriteCharacteristic(charUUID string, data []byte) error {
	char, err := c.characteristic(charUUID)
	if err != nil {
		return err
	}
	if _, err := char.WriteWithoutResponse(data); err != nil {
		return NewError(KindOther, "write "+charUUID, err)
	}
	return nil
}

func (c *bluetoothConnection) Subscribe(charUUID string, callback func(data []byte)) error {
	char, err := c.characteristic(charUUID)
	if err != nil {
		return err
	}
	if err := char.EnableNotifications(func(buf []byte) {
		callback(buf)
	}); err != nil {
		return NewError(KindOther, "subscribe "+charUUID, err)
	}
	return nil
}

func (c *bluetoothConnection) Disconnect() error {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return nil
	}
	c.disconnected = true
	c.mu.Unlock()

	if err := c.device.Disconnect(); err != nil {
		return NewError(KindOther, "disconnect", err)
	}
	return nil
}

func (c *bluetoothConnection) OnDisconnect(callback func()) {
	c.mu.Lock()
	c.disconnectCb = callback
	c.mu.Unlock()
}

func (c *bluetoothConnection) fireDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}
