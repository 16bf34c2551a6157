package flasher

import (
	"context"
	"fmt"
)

// WriteSegment writes an arbitrary (start, bytes) segment to flash
// using only the page-write primitive, read-modify-writing any page
// whose head or tail isn't fully covered by the segment (spec.md
// §4.3). This is the only read-modify-write path in the system: M16C
// flash pages can only be programmed in their entirety, so partial
// edges must preserve existing contents.
func (s *Session) WriteSegment(ctx context.Context, start uint32, data []byte) error {
	if err := validateSegment(start, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	page := start & 0xFFFF00
	last := (start + uint32(len(data)) + 0xFF) & 0xFFFF00

	sent := 0
	addr := start
	for p := page; p < last; p += PageSize {
		remaining := len(data) - sent
		startOff := 0
		if addr > p {
			startOff = int(addr - p)
		}
		endOff := PageSize
		if startOff+remaining < PageSize {
			endOff = startOff + remaining
		}
		size := endOff - startOff

		var buf []byte
		if startOff != 0 || endOff != PageSize {
			existing, err := s.PageRead(ctx, p)
			if err != nil {
				return err
			}
			buf = existing
			copy(buf[startOff:endOff], data[sent:sent+size])
		} else {
			buf = data[sent : sent+size]
		}

		if len(buf) != PageSize {
			return newErrAt(Internal, p, fmt.Errorf("segment writer built a %d-byte page buffer, want %d", len(buf), PageSize))
		}

		if err := s.PageWrite(ctx, p, buf); err != nil {
			return err
		}

		sent += size
		addr += uint32(size)
	}

	if sent != len(data) {
		return newErrAt(Internal, start, fmt.Errorf("segment writer sent %d of %d bytes", sent, len(data)))
	}
	return nil
}

// validateSegment enforces spec.md §4.3 step 1: start >= 0 is
// guaranteed by the unsigned type; the remaining check is the upper
// bound.
func validateSegment(start uint32, length int) error {
	end := uint64(start) + uint64(length)
	if end > MaxAddress {
		return newErrAt(AddressOutOfRange, start, fmt.Errorf("segment end 0x%x exceeds max address 0x%x", end, MaxAddress))
	}
	return nil
}
