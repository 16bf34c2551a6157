// Package orchestrator applies a sequence of actions against a
// FlasherSession: open the port, bring up the link, then run
// status/version/id/flash operations in order. It is a library, not a
// CLI — the cmd package is the thin cobra surface on top.
//
// Grounded on the teacher's adapter package: each of
// adapter/read.go, write.go, erase.go, and status.go is a cobra
// Run func doing "fetch config defaults, call one adapter method,
// print a result line, cobra.CheckErr on failure". Restructured here
// as library methods with no cobra dependency; errors go back to the
// cmd package. status-read and version-read print their result line to
// stdout, and the unsafe connect fallback prints a warning to stderr.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/m16c-tools/m16cflash/flasher"
	"github.com/m16c-tools/m16cflash/srec"
	"github.com/m16c-tools/m16cflash/status"
)

// Action names, spec.md §4.6.
const (
	ActionStatusRead    = "status-read"
	ActionStatusClear   = "status-clear"
	ActionVersionRead   = "version-read"
	ActionIDValidate    = "id-validate"
	ActionFlashRead     = "flash-read"
	ActionFlashWrite    = "flash-write"
	ActionFlashErase    = "flash-erase"
	ActionFlashEraseAll = "flash-erase-all"
	ActionFlashProgram  = "flash-program"
)

// AddrRange is one user-supplied `addr[:len]` range for flash-read or
// flash-erase (spec.md §6 CLI surface).
type AddrRange struct {
	Addr   uint32
	Length uint32
}

// Config holds everything the orchestrator needs to run (spec.md
// §4.6): connection parameters, authentication material, file paths,
// address ranges, and the ordered action list. It has no cobra
// dependency — the cmd package builds one from flags and config
// defaults.
type Config struct {
	Device            string
	BaudRate          uint32
	Timeout           time.Duration
	DeviceID          []byte
	DeviceIDAddr      uint32
	Unsafe            bool
	NoClockValidation bool
	InputFile         string
	OutputFile        string
	Addresses         []AddrRange
	Actions           []string
}

// session is the subset of *flasher.Session the orchestrator drives.
// Tests substitute a fake; production always passes a real Session.
type session interface {
	ClockValidate() error
	BaudSet(rate uint32) error
	BaudSetForce(rate uint32) error
	StatusRead() (status.Status, error)
	StatusClear() error
	StatusClearForce() error
	VersionRead() ([8]byte, error)
	IDValidate(id []byte, addr uint32) error
	PageRead(ctx context.Context, addr uint32) ([]byte, error)
	WriteSegment(ctx context.Context, start uint32, data []byte) error
	BlockErase(ctx context.Context, addr uint32) error
	BlockEraseAll(ctx context.Context) error
	Close() error
}

var _ session = (*flasher.Session)(nil)

// Orchestrator owns a session for its lifetime and runs its
// configured actions against it in order.
type Orchestrator struct {
	cfg  Config
	sess session
}

// New opens the configured serial port, brings the link up (clock
// validation and baud negotiation, or the unsafe/no-validation
// fallback), and returns an Orchestrator ready to Run.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Device == "" {
		return nil, newConfigErr("no device specified")
	}
	if len(cfg.Actions) == 0 {
		return nil, newConfigErr("no action specified")
	}

	sess, err := flasher.Open(cfg.Device, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{cfg: cfg, sess: sess}
	if err := o.connect(); err != nil {
		sess.Close()
		return nil, err
	}
	return o, nil
}

func newWithSession(cfg Config, sess session) *Orchestrator {
	return &Orchestrator{cfg: cfg, sess: sess}
}

// connect runs the link bring-up sequence described in spec.md §4.6.
// NoClockValidation skips the handshake outright, the way
// M16CFlashApp.py's -n/--no-clock-validation does; Unsafe only kicks in
// when the handshake is attempted and fails, forcing the baud and
// clearing status instead of aborting.
func (o *Orchestrator) connect() error {
	if o.cfg.NoClockValidation {
		if err := o.sess.BaudSetForce(o.cfg.BaudRate); err != nil {
			return err
		}
		return o.sess.StatusClearForce()
	}

	if err := o.sess.ClockValidate(); err != nil {
		if !o.cfg.Unsafe {
			return err
		}
		fmt.Fprintf(os.Stderr, "warning: clock validation failed, forcing baud: %v\n", err)
		if err := o.sess.BaudSetForce(o.cfg.BaudRate); err != nil {
			return err
		}
		return o.sess.StatusClearForce()
	}

	if o.cfg.BaudRate == 9600 {
		return nil
	}
	return o.sess.BaudSet(o.cfg.BaudRate)
}

// Close releases the underlying session.
func (o *Orchestrator) Close() error {
	return o.sess.Close()
}

// Run executes every configured action in order, stopping at the
// first error (spec.md §7 "Propagation policy": mid-segment failures
// are not retried, the device is left as-is).
func (o *Orchestrator) Run(ctx context.Context) error {
	for _, action := range o.cfg.Actions {
		if err := o.dispatch(ctx, action); err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
	}
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, action string) error {
	switch action {
	case ActionStatusRead:
		st, err := o.sess.StatusRead()
		if err != nil {
			return err
		}
		fmt.Printf("status: %s\n", st)
		return nil
	case ActionStatusClear:
		return o.sess.StatusClear()
	case ActionVersionRead:
		v, err := o.sess.VersionRead()
		if err != nil {
			return err
		}
		fmt.Printf("version: % x\n", v)
		return nil
	case ActionIDValidate:
		return o.idValidate()
	case ActionFlashRead:
		return o.flashRead(ctx)
	case ActionFlashWrite:
		return o.flashWrite(ctx)
	case ActionFlashErase:
		return o.flashErase(ctx)
	case ActionFlashEraseAll:
		return o.sess.BlockEraseAll(ctx)
	case ActionFlashProgram:
		return o.flashProgram(ctx)
	default:
		return newConfigErr("unknown action %q", action)
	}
}

func (o *Orchestrator) idValidate() error {
	if len(o.cfg.DeviceID) == 0 {
		return newConfigErr("id-validate requires a device id")
	}
	return o.sess.IDValidate(o.cfg.DeviceID, o.cfg.DeviceIDAddr)
}

func (o *Orchestrator) flashErase(ctx context.Context) error {
	if len(o.cfg.Addresses) == 0 {
		return newConfigErr("flash-erase requires at least one address")
	}
	for _, r := range o.cfg.Addresses {
		if err := checkAddrRange(r); err != nil {
			return err
		}
		if err := o.sess.BlockErase(ctx, r.Addr); err != nil {
			return err
		}
	}
	return nil
}

// checkAddrRange enforces spec.md §7's AddressOutOfRange bound at the
// orchestrator boundary, before any wire I/O — addrMidHi only ever
// sends the low 24 bits of an address, so without this check an
// out-of-range request would silently alias into valid flash instead
// of failing (flasher/segment.go's validateSegment is the equivalent
// check on the write path).
func checkAddrRange(r AddrRange) error {
	end := uint64(r.Addr) + uint64(r.Length)
	if end > flasher.MaxAddress {
		addr := r.Addr
		return &flasher.Error{
			Kind: flasher.AddressOutOfRange,
			Addr: &addr,
			Err:  fmt.Errorf("range end 0x%x exceeds max address 0x%x", end, uint32(flasher.MaxAddress)),
		}
	}
	return nil
}

func (o *Orchestrator) flashRead(ctx context.Context) error {
	if len(o.cfg.Addresses) == 0 {
		return newConfigErr("flash-read requires at least one address range")
	}
	out, closeOut, err := o.openOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	for _, r := range o.cfg.Addresses {
		if err := o.readRange(ctx, out, r); err != nil {
			return err
		}
	}
	return nil
}

// readRange reads every page overlapping [r.Addr, r.Addr+r.Length) and
// writes only the bytes the caller asked for (spec.md §4.6
// "page-at-a-time").
func (o *Orchestrator) readRange(ctx context.Context, w io.Writer, r AddrRange) error {
	if err := checkAddrRange(r); err != nil {
		return err
	}

	start := r.Addr
	end := r.Addr + r.Length
	page := start &^ uint32(flasher.PageSize-1)

	for p := page; p < end; p += flasher.PageSize {
		data, err := o.sess.PageRead(ctx, p)
		if err != nil {
			return err
		}
		lo := uint32(0)
		if start > p {
			lo = start - p
		}
		hi := uint32(flasher.PageSize)
		if p+flasher.PageSize > end {
			hi = end - p
		}
		if _, err := w.Write(data[lo:hi]); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) flashWrite(ctx context.Context) error {
	in, closeIn, err := o.openInput()
	if err != nil {
		return err
	}
	defer closeIn()

	segs, err := srec.Parse(in)
	if err != nil {
		return err
	}
	for _, seg := range segs {
		if err := o.sess.WriteSegment(ctx, seg.Addr, seg.Data); err != nil {
			return err
		}
	}
	return nil
}

// flashProgram is the convenience composite action (spec.md §4.6):
// authenticate if a device id was supplied, erase everything, then
// write the S-Record image.
func (o *Orchestrator) flashProgram(ctx context.Context) error {
	if len(o.cfg.DeviceID) > 0 {
		if err := o.idValidate(); err != nil {
			return err
		}
	}
	if err := o.sess.BlockEraseAll(ctx); err != nil {
		return err
	}
	return o.flashWrite(ctx)
}

func (o *Orchestrator) openInput() (io.Reader, func(), error) {
	if o.cfg.InputFile == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(o.cfg.InputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func (o *Orchestrator) openOutput() (io.Writer, func(), error) {
	if o.cfg.OutputFile == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(o.cfg.OutputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
