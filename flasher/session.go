// Package flasher implements the M16C boot-ROM serial protocol: the
// state machine over framing/handshakes/commands (Session) and the
// page-granular read-modify-write segment writer built on top of it.
//
// Grounded on greaseweazle.Client from the teacher repo: a typed
// client wraps a serial.Port for its whole lifetime, and every wire
// exchange is a write-command/read-response pair (doCommand).
package flasher

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/m16c-tools/m16cflash/status"
)

// Opcodes from the wire protocol summary, spec.md §6.
const (
	opClockValidate = 0xB0 // also baud=9600
	opBaud19200     = 0xB1
	opBaud38400     = 0xB2
	opBaud57600     = 0xB3
	opStatusClear   = 0x50
	opStatusRead    = 0x70
	opBlockErase    = 0x20
	opBlockEraseArg = 0xD0
	opPageWrite     = 0x41
	opIDCheck       = 0xF5
	opVersionRead   = 0xFB
	opPageRead      = 0xFF
	opEraseAll      = 0xA7
	opLockEnable    = 0x7A
	opLockDisable   = 0x75
)

// PageSize is the only I/O granularity the device accepts for program
// and read operations (spec.md §3 "Page").
const PageSize = 256

// MaxAddress is the theoretical top of flash address space for
// page-aligned operations; spec.md §9 Open Questions picks
// ≤0xFFFF00 over the source's inconsistent 0xffffff/0xffff00 split.
const MaxAddress = 0xFFFF00

// supportedBauds maps a baud rate to its opcode index (0=9600,
// 1=19200, 2=38400, 3=57600), per spec.md §4.2 baud_set.
var supportedBauds = map[uint32]byte{
	9600:  0,
	19200: 1,
	38400: 2,
	57600: 3,
}

var readyPollInterval = 100 * time.Millisecond
var clockPulseInterval = 20 * time.Millisecond

type sessionState int

const (
	stateUnvalidated sessionState = iota
	stateClockValidated
	stateAuthenticated
)

// Session owns a serial.Port for its lifetime and drives the M16C
// boot-ROM protocol over it. Not safe for concurrent use — like
// greaseweazle.Client, every operation assumes exclusive, sequential
// access to the port (spec.md §5).
type Session struct {
	port  serial.Port
	state sessionState
	baud  uint32
}

// Open opens the named serial port at the initial mandatory 9600 baud
// and returns a Session in the Unvalidated state.
func Open(name string, timeout time.Duration) (*Session, error) {
	mode := &serial.Mode{BaudRate: 9600}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}
	return &Session{port: port, baud: 9600}, nil
}

// Close releases the underlying serial port.
func (s *Session) Close() error {
	return s.port.Close()
}

func (s *Session) requireClockValidated() error {
	if s.state < stateClockValidated {
		return newErr(NotValidated, fmt.Errorf("clock not validated"))
	}
	return nil
}

func (s *Session) requireAuthenticated() error {
	if s.state < stateClockValidated {
		return newErr(NotValidated, fmt.Errorf("clock not validated"))
	}
	st, err := s.StatusRead()
	if err != nil {
		return err
	}
	if !st.IDOK() {
		return newErr(NotValidated, fmt.Errorf("device id not validated"))
	}
	s.state = stateAuthenticated
	return nil
}

func (s *Session) writeByte(b byte) error {
	_, err := s.port.Write([]byte{b})
	return err
}

func (s *Session) readByte() (byte, error) {
	buf := make([]byte, 1)
	n, err := io.ReadFull(s.port, buf)
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, newErr(ShortRead, fmt.Errorf("expected 1 byte, got %d", n))
	}
	return buf[0], nil
}

// ClockValidate performs the oscillator handshake (spec.md §4.2):
// send 0xB0, expect an echoed 0xB0, send sixteen 0x00 bytes spaced
// ≥20ms apart, expect a second echoed 0xB0.
func (s *Session) ClockValidate() error {
	if err := s.writeByte(opClockValidate); err != nil {
		return newErr(HandshakeFailed, err)
	}
	b, err := s.readByte()
	if err != nil {
		return newErr(HandshakeFailed, err)
	}
	if b != opClockValidate {
		return newErr(HandshakeFailed, fmt.Errorf("expected echo 0x%02x, got 0x%02x", opClockValidate, b))
	}

	for i := 0; i < 16; i++ {
		if err := s.writeByte(0x00); err != nil {
			return newErr(HandshakeFailed, err)
		}
		time.Sleep(clockPulseInterval)
	}

	b, err = s.readByte()
	if err != nil {
		return newErr(HandshakeFailed, err)
	}
	if b != opClockValidate {
		return newErr(HandshakeFailed, fmt.Errorf("expected re-echo 0x%02x, got 0x%02x", opClockValidate, b))
	}

	s.state = stateClockValidated
	s.baud = 9600
	return nil
}

// BaudSet negotiates a new link rate (spec.md §4.2): clock validation
// must already have succeeded. Sends the baud-set opcode, expects an
// echo, then reconfigures the serial port.
func (s *Session) BaudSet(rate uint32) error {
	if err := s.requireClockValidated(); err != nil {
		return err
	}
	idx, ok := supportedBauds[rate]
	if !ok {
		return newErr(InvalidBaud, fmt.Errorf("unsupported baud rate %d", rate))
	}
	cmd := opClockValidate + idx
	if err := s.writeByte(cmd); err != nil {
		return newErr(BaudNegotiation, err)
	}
	b, err := s.readByte()
	if err != nil {
		return newErr(BaudNegotiation, err)
	}
	if b != cmd {
		return newErr(BaudNegotiation, fmt.Errorf("expected echo 0x%02x, got 0x%02x", cmd, b))
	}
	if err := s.port.SetMode(&serial.Mode{BaudRate: int(rate)}); err != nil {
		return newErr(BaudNegotiation, fmt.Errorf("failed to reconfigure port to %d baud: %w", rate, err))
	}
	s.baud = rate
	return nil
}

// BaudSetForce reconfigures the serial port and marks clock
// validation complete without any wire I/O — the orchestrator's
// unsafe-mode fallback when the handshake itself fails (spec.md §4.2,
// §7).
func (s *Session) BaudSetForce(rate uint32) error {
	if _, ok := supportedBauds[rate]; !ok {
		return newErr(InvalidBaud, fmt.Errorf("unsupported baud rate %d", rate))
	}
	if err := s.port.SetMode(&serial.Mode{BaudRate: int(rate)}); err != nil {
		return newErr(BaudNegotiation, fmt.Errorf("failed to force port to %d baud: %w", rate, err))
	}
	s.baud = rate
	s.state = stateClockValidated
	return nil
}

// Baud returns the current link rate mirror (spec.md §3).
func (s *Session) Baud() uint32 {
	return s.baud
}

// IDValidate authenticates with the device ID (spec.md §4.2). addr has
// no default at this layer — the conventional 0x0FFFDF lives in
// config.Load, since only the caller knows whether zero was actually
// requested or just never set.
func (s *Session) IDValidate(id []byte, addr uint32) error {
	if err := s.requireClockValidated(); err != nil {
		return err
	}
	if len(id) > 7 {
		return newErr(IDValidationFailed, fmt.Errorf("device id too long: %d bytes (max 7)", len(id)))
	}
	cmd := make([]byte, 0, 5+len(id))
	cmd = append(cmd,
		opIDCheck,
		byte(addr&0xFF),
		byte((addr>>8)&0xFF),
		byte((addr>>16)&0xFF),
		byte(len(id)),
	)
	cmd = append(cmd, id...)
	if _, err := s.port.Write(cmd); err != nil {
		return newErr(IDValidationFailed, err)
	}

	st, err := s.StatusRead()
	if err != nil {
		return newErr(IDValidationFailed, err)
	}
	if !st.IDOK() {
		return newErr(IDValidationFailed, fmt.Errorf("device reported %s", st))
	}
	s.state = stateAuthenticated
	return nil
}

// StatusRead reads the 16-bit status register (spec.md §4.2).
func (s *Session) StatusRead() (status.Status, error) {
	if err := s.requireClockValidated(); err != nil {
		return 0, err
	}
	if err := s.writeByte(opStatusRead); err != nil {
		return 0, newErr(ShortRead, err)
	}
	buf := make([]byte, 2)
	if _, err := io.ReadFull(s.port, buf); err != nil {
		return 0, newErr(ShortRead, err)
	}
	return status.Decode(buf[0], buf[1]), nil
}

// StatusClear clears device-side sticky status (spec.md §4.2 action
// table). It requires authentication, like the lock and flash
// operations; StatusRead and VersionRead need only clock validation.
func (s *Session) StatusClear() error {
	if err := s.requireAuthenticated(); err != nil {
		return err
	}
	return s.writeByte(opStatusClear)
}

// StatusClearForce issues the status-clear opcode directly, gated only
// on clock validation rather than full authentication. The connect
// sequence's unsafe/no-validation fallback clears status right after
// forcing the baud (spec.md §4.2's "falls back to baud_set_force +
// status_clear on handshake failure"), before any id-validate has run,
// so StatusClear's authenticated precondition can never be satisfied
// there — this is the bring-up-specific counterpart, the way
// BaudSetForce is BaudSet's handshake-free counterpart.
func (s *Session) StatusClearForce() error {
	if err := s.requireClockValidated(); err != nil {
		return err
	}
	return s.writeByte(opStatusClear)
}

// VersionRead reads the 8-byte firmware identifier (spec.md §4.2).
func (s *Session) VersionRead() ([8]byte, error) {
	var out [8]byte
	if err := s.requireClockValidated(); err != nil {
		return out, err
	}
	if err := s.writeByte(opVersionRead); err != nil {
		return out, newErr(ShortRead, err)
	}
	buf := make([]byte, 8)
	n, err := io.ReadFull(s.port, buf)
	if err != nil || n != 8 {
		return out, newErr(ShortRead, fmt.Errorf("read %d of 8 version bytes: %w", n, err))
	}
	copy(out[:], buf)
	return out, nil
}

// LockEnable toggles the lock-bit policy on (spec.md §4.2).
func (s *Session) LockEnable() error {
	if err := s.requireAuthenticated(); err != nil {
		return err
	}
	return s.writeByte(opLockEnable)
}

// LockDisable toggles the lock-bit policy off (spec.md §4.2).
func (s *Session) LockDisable() error {
	if err := s.requireAuthenticated(); err != nil {
		return err
	}
	return s.writeByte(opLockDisable)
}

// waitReady polls StatusRead until the ready bit is set, sleeping
// readyPollInterval between polls. ctx bounds the wait explicitly
// (DESIGN NOTE #4), separate from the serial port's own read timeout,
// so a dead device is diagnosable rather than blocking forever.
func (s *Session) waitReady(ctx context.Context) (status.Status, error) {
	for {
		st, err := s.StatusRead()
		if err != nil {
			return 0, err
		}
		if st.Ready() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return 0, newErr(ShortRead, fmt.Errorf("timed out waiting for device ready: %w", ctx.Err()))
		case <-time.After(readyPollInterval):
		}
	}
}

func addrMidHi(addr uint32) (byte, byte) {
	return byte((addr >> 8) & 0xFF), byte((addr >> 16) & 0xFF)
}

// checkFlashStatus reads status after an operation and translates a
// non-ok flash-error field into a FlashError tagged with addr
// (spec.md §4.2 "Status decoding after operation").
func (s *Session) checkFlashStatus(addr uint32) error {
	st, err := s.StatusRead()
	if err != nil {
		return err
	}
	if !st.FlashOK() {
		return newFlashErr(addr, st.FlashError())
	}
	return nil
}

// PageRead reads one 256-byte flash page (spec.md §4.2). addr must be
// page-aligned; only the middle and high address bytes travel on the
// wire.
func (s *Session) PageRead(ctx context.Context, addr uint32) ([]byte, error) {
	if err := s.requireAuthenticated(); err != nil {
		return nil, err
	}
	if _, err := s.waitReady(ctx); err != nil {
		return nil, err
	}
	mid, hi := addrMidHi(addr)
	cmd := []byte{opPageRead, mid, hi}
	if _, err := s.port.Write(cmd); err != nil {
		return nil, newErrAt(ShortRead, addr, err)
	}
	page := make([]byte, PageSize)
	n, err := io.ReadFull(s.port, page)
	if err != nil || n != PageSize {
		return nil, newErrAt(ShortRead, addr, fmt.Errorf("read %d of %d page bytes: %w", n, PageSize, err))
	}
	if err := s.checkFlashStatus(addr); err != nil {
		return nil, err
	}
	return page, nil
}

// PageWrite programs one full 256-byte flash page (spec.md §4.2).
func (s *Session) PageWrite(ctx context.Context, addr uint32, data []byte) error {
	if len(data) != PageSize {
		return newErrAt(AddressOutOfRange, addr, fmt.Errorf("page write requires exactly %d bytes, got %d", PageSize, len(data)))
	}
	if err := s.requireAuthenticated(); err != nil {
		return err
	}
	if _, err := s.waitReady(ctx); err != nil {
		return err
	}
	mid, hi := addrMidHi(addr)
	cmd := make([]byte, 0, 3+PageSize)
	cmd = append(cmd, opPageWrite, mid, hi)
	cmd = append(cmd, data...)
	if _, err := s.port.Write(cmd); err != nil {
		return newErrAt(ShortRead, addr, err)
	}
	return s.checkFlashStatus(addr)
}

// BlockErase erases the flash block containing addr (spec.md §4.2).
func (s *Session) BlockErase(ctx context.Context, addr uint32) error {
	if err := s.requireAuthenticated(); err != nil {
		return err
	}
	if _, err := s.waitReady(ctx); err != nil {
		return err
	}
	mid, hi := addrMidHi(addr)
	cmd := []byte{opBlockErase, mid, hi, opBlockEraseArg}
	if _, err := s.port.Write(cmd); err != nil {
		return newErrAt(ShortRead, addr, err)
	}
	return s.checkFlashStatus(addr)
}

// BlockEraseAll erases every flash block (spec.md §4.2).
func (s *Session) BlockEraseAll(ctx context.Context) error {
	if err := s.requireAuthenticated(); err != nil {
		return err
	}
	if _, err := s.waitReady(ctx); err != nil {
		return err
	}
	cmd := []byte{opEraseAll, opBlockEraseArg}
	if _, err := s.port.Write(cmd); err != nil {
		return newErr(ShortRead, err)
	}
	return s.checkFlashStatus(0)
}
