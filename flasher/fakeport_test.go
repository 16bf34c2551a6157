package flasher

import (
	"bytes"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/m16c-tools/m16cflash/status"
)

// fakePort is a scripted stand-in for a real serial.Port, used to
// drive Session through the wire protocol without hardware. The
// teacher pack has no serial-port fake to borrow (its own tests
// exercise pure functions only), so this is grounded directly on the
// shape of doCommand: every exchange is a Write followed by a Read.
type fakePort struct {
	toDevice   bytes.Buffer
	fromDevice bytes.Buffer
	mode       serial.Mode
	modeCalls  []serial.Mode
	closed     bool
}

func newFakePort() *fakePort {
	return &fakePort{}
}

// queue appends bytes to what the device will return on subsequent
// reads.
func (p *fakePort) queue(b ...byte) {
	p.fromDevice.Write(b)
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.fromDevice.Len() == 0 {
		return 0, io.EOF
	}
	return p.fromDevice.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	return p.toDevice.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) SetMode(m *serial.Mode) error {
	p.mode = *m
	p.modeCalls = append(p.modeCalls, *m)
	return nil
}

func (p *fakePort) SetDTR(bool) error                                   { return nil }
func (p *fakePort) SetRTS(bool) error                                   { return nil }
func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return &serial.ModemStatusBits{}, nil }
func (p *fakePort) ResetInputBuffer() error                             { return nil }
func (p *fakePort) ResetOutputBuffer() error                            { return nil }
func (p *fakePort) SetReadTimeout(time.Duration) error                  { return nil }
func (p *fakePort) Break(time.Duration) error                           { return nil }
func (p *fakePort) Drain() error                                        { return nil }

var _ serial.Port = (*fakePort)(nil)

func newTestSession(p *fakePort) *Session {
	return &Session{port: p, baud: 9600}
}

// mockDevice is a stateful serial.Port simulating an authenticated,
// always-ready M16C device. The flat fakePort queue above is fine for
// the handshake/baud tests, where every byte on the wire is scripted
// by hand, but the flash operations (PageRead/PageWrite/BlockErase)
// interleave status polls with a 256-byte data phase in a sequence
// that depends on Session's internal call order. Session always
// writes one full command — opcode, address bytes, and any payload —
// in a single Write call (see session.go), so mockDevice parses each
// Write by its opcode and stages the matching response instead of
// requiring the test to pre-count status words.
type mockDevice struct {
	mem        map[uint32][]byte
	pageReads  []uint32
	pageWrites []uint32
	erasedAll  bool

	forceErr             status.FlashErrorKind
	truncateNextPageRead bool

	respBuf   bytes.Buffer
	modeCalls []serial.Mode
}

func newMockDevice() *mockDevice {
	return &mockDevice{mem: map[uint32][]byte{}}
}

func (d *mockDevice) setPage(addr uint32, data []byte) {
	buf := make([]byte, PageSize)
	copy(buf, data)
	d.mem[addr] = buf
}

func (d *mockDevice) getPage(addr uint32) []byte {
	if buf, ok := d.mem[addr]; ok {
		return buf
	}
	return make([]byte, PageSize)
}

func addrFromMidHi(mid, hi byte) uint32 {
	return uint32(hi)<<16 | uint32(mid)<<8
}

// pushStatus stages a ready, authenticated status word, folding in
// forceErr's flash-error bits (spec.md §4.1) when set.
func (d *mockDevice) pushStatus() {
	raw := uint16(0x0C80) // ready (0x0080) | device id valid (0x0C00)
	switch d.forceErr {
	case status.InvalidCommand:
		raw |= 0x18
	case status.InvalidBlock:
		raw |= 0x10
	case status.PageLocked:
		raw |= 0x08
	case status.WriteFailed:
		raw |= 0x04
	}
	d.respBuf.WriteByte(byte(raw & 0xFF))
	d.respBuf.WriteByte(byte(raw >> 8))
}

func (d *mockDevice) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	switch b[0] {
	case opStatusRead:
		d.pushStatus()
	case opPageRead:
		addr := addrFromMidHi(b[1], b[2])
		d.pageReads = append(d.pageReads, addr)
		page := d.getPage(addr)
		if d.truncateNextPageRead {
			page = page[:PageSize-1]
			d.truncateNextPageRead = false
		}
		d.respBuf.Write(page)
	case opPageWrite:
		addr := addrFromMidHi(b[1], b[2])
		data := append([]byte(nil), b[3:]...)
		d.mem[addr] = data
		d.pageWrites = append(d.pageWrites, addr)
	case opBlockErase:
		// nothing staged; the caller follows up with its own status read.
	case opEraseAll:
		d.erasedAll = true
	}
	return len(b), nil
}

func (d *mockDevice) Read(b []byte) (int, error) {
	if d.respBuf.Len() == 0 {
		return 0, io.EOF
	}
	return d.respBuf.Read(b)
}

func (d *mockDevice) Close() error { return nil }

func (d *mockDevice) SetMode(m *serial.Mode) error {
	d.modeCalls = append(d.modeCalls, *m)
	return nil
}

func (d *mockDevice) SetDTR(bool) error                                    { return nil }
func (d *mockDevice) SetRTS(bool) error                                    { return nil }
func (d *mockDevice) GetModemStatusBits() (*serial.ModemStatusBits, error) { return &serial.ModemStatusBits{}, nil }
func (d *mockDevice) ResetInputBuffer() error                              { return nil }
func (d *mockDevice) ResetOutputBuffer() error                             { return nil }
func (d *mockDevice) SetReadTimeout(time.Duration) error                   { return nil }
func (d *mockDevice) Break(time.Duration) error                            { return nil }
func (d *mockDevice) Drain() error                                         { return nil }

var _ serial.Port = (*mockDevice)(nil)
