package engine

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/experiment"
)

var _ experiment.Trigger = (*DLPIO8G)(nil)

var ErrNoPing = errors.New("dlp: device did not respond to ping")

// DLPIO8G drives the eight TTL lines of a DLP-IO8-G box. Lines are named
// "1" to "8"; Set raises them and Unset lowers them.
type DLPIO8G struct {
	port io.ReadWriteCloser
}

func NewDLPIO8G(device string, baudrate int) (*DLPIO8G, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	return newDLP(port)
}

// pingTimeout bounds the wait for the ping reply, so a device that is not a
// DLP-IO8-G fails the handshake instead of blocking the session start.
const pingTimeout = 500 * time.Millisecond

type readTimeouter interface {
	SetReadTimeout(time.Duration) error
}

var _ readTimeouter = serial.Port(nil)

func newDLP(port io.ReadWriteCloser) (*DLPIO8G, error) {
	if rt, ok := port.(readTimeouter); ok {
		if err := rt.SetReadTimeout(pingTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	d := &DLPIO8G{port: port}
	if !d.Ping() {
		port.Close()
		return nil, ErrNoPing
	}
	// Binary mode
	if _, err := port.Write([]byte{0x5C}); err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

func (d *DLPIO8G) Close() error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

func (d *DLPIO8G) Ping() bool {
	if _, err := d.port.Write([]byte{0x27}); err != nil {
		return false
	}
	buf := make([]byte, 1)
	n, err := d.port.Read(buf)
	return err == nil && n == 1 && buf[0] == 'Q'
}

func (d *DLPIO8G) Set(lines string) error {
	if _, err := d.port.Write([]byte(lines)); err != nil {
		return fmt.Errorf("dlp set %s: %w", lines, err)
	}
	return nil
}

var unsetCommands = strings.NewReplacer(
	"1", "Q", "2", "W", "3", "E", "4", "R",
	"5", "T", "6", "Y", "7", "U", "8", "I",
)

func (d *DLPIO8G) Unset(lines string) error {
	if _, err := d.port.Write([]byte(unsetCommands.Replace(lines))); err != nil {
		return fmt.Errorf("dlp unset %s: %w", lines, err)
	}
	return nil
}
