// Package mcu wraps the stepper-MCU serial/TCP link: it frames G-code
// text lines with an N<seq> prefix and *checksum suffix matching the
// gcode package's checksum scanner, sends them over a pooled
// connection, and translates transport failures into the shared
// kerrors.HardwareError taxonomy. Out of scope per the motion-pipeline
// design (§6): the pulse wire format and MCU framing below the line
// level are a collaborator's concern, not this package's.
package mcu

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/snksoft/crc"

	"github.com/krustylabs/krusty-host/comm"
	"github.com/krustylabs/krusty-host/kerrors"
)

var checksumTable = crc.NewTable(crc.CRC8)

func checksum(b []byte) uint8 {
	v := checksumTable.InitCrc()
	v = checksumTable.UpdateCrc(v, b)
	return uint8(checksumTable.CRC8(v))
}

// Link is a single logical connection to the stepper MCU, backed by a
// comm.Pool so a dropped connection is transparently redialed with
// backoff rather than surfaced as a permanent failure.
type Link struct {
	pool    *comm.Pool
	timeout time.Duration
	seq     int

	enabled map[string]bool
}

// NewLink dials addr (host:port) lazily via a 1-connection pool. The
// pool's dialer backs off on repeated connection failures rather than
// thrashing the link, the same behavior the comm package already
// provides for TCP-connected lab/motion controllers.
func NewLink(addr string, timeout time.Duration) *Link {
	maker := comm.BackingOffTCPConnMaker(addr, timeout)
	pool := comm.NewPool(1, 30*time.Second, maker)
	return &Link{pool: pool, timeout: timeout, enabled: map[string]bool{}}
}

// Close tears down the link's connection pool.
func (l *Link) Close() { l.pool.Close() }

// frame renders text as "N<seq> <text>*<checksum>\n", matching the
// numbered-line checksum form the gcode parser verifies.
func (l *Link) frame(text string) string {
	l.seq++
	return FrameLine(l.seq, text)
}

// FrameLine renders one numbered, checksummed line exactly as frame
// does, exposed standalone so the framing format can be tested without
// a live connection.
func FrameLine(seq int, text string) string {
	body := fmt.Sprintf("N%d %s", seq, text)
	sum := checksum([]byte(body))
	return fmt.Sprintf("%s*%d\n", body, sum)
}

// SendCommand frames and sends one line of G-code text to the MCU and
// waits for an "ok" or "err <message>" acknowledgement. Hardware reads
// time out after the configured timeout with kerrors.HardwareError{Kind: Timeout};
// this never propagates as a panic.
func (l *Link) SendCommand(text string) error {
	conn, err := l.pool.Get()
	if err != nil {
		return kerrors.NewHardwareError(kerrors.NotConnected, err)
	}

	wrap := comm.NewTimeout(conn, l.timeout)
	termed := comm.NewTerminator(wrap, '\n', '\n')

	line := l.frame(text)
	if _, err := io.WriteString(termed, strings.TrimSuffix(line, "\n")); err != nil {
		l.pool.Destroy(conn)
		return wrapSendErr(err)
	}

	buf := make([]byte, 256)
	n, err := termed.Read(buf)
	if err != nil {
		l.pool.Destroy(conn)
		return wrapSendErr(err)
	}
	l.pool.Put(conn)

	resp := string(buf[:n])
	if resp == "ok" || strings.HasPrefix(resp, "ok ") {
		return nil
	}
	return kerrors.NewHardwareError(kerrors.Serial, fmt.Errorf("mcu rejected command: %s", resp))
}

// Enable energizes the named axis's stepper driver (M17), tracking the
// reported state locally since the MCU's "ok" ack carries no state of
// its own to read back.
func (l *Link) Enable(axis string) error {
	if err := l.SendCommand(fmt.Sprintf("M17 %s", strings.ToUpper(axis))); err != nil {
		return err
	}
	l.enabled[strings.ToUpper(axis)] = true
	return nil
}

// Disable de-energizes the named axis's stepper driver (M18).
func (l *Link) Disable(axis string) error {
	if err := l.SendCommand(fmt.Sprintf("M18 %s", strings.ToUpper(axis))); err != nil {
		return err
	}
	l.enabled[strings.ToUpper(axis)] = false
	return nil
}

// GetEnabled reports the last Enable/Disable call's outcome for axis;
// an axis never explicitly enabled reads as disabled.
func (l *Link) GetEnabled(axis string) (bool, error) {
	return l.enabled[strings.ToUpper(axis)], nil
}

func wrapSendErr(err error) error {
	if err == comm.ErrTimeout {
		return kerrors.NewHardwareError(kerrors.Timeout, err)
	}
	return kerrors.NewHardwareError(kerrors.Serial, err)
}
