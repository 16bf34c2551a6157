package orchestrator

import (
	"strconv"
	"strings"

	"github.com/m16c-tools/m16cflash/flasher"
)

// ParseAddrRange parses the repeatable `--address addr[:len]` CLI
// value (spec.md §6). addr and len accept any base strconv
// recognizes (a bare "0x" prefix selects hex, as used throughout this
// protocol). A range with no ":len" suffix defaults to one flash page.
func ParseAddrRange(s string) (AddrRange, error) {
	addrPart, lenPart, hasLen := strings.Cut(s, ":")

	addr, err := strconv.ParseUint(addrPart, 0, 32)
	if err != nil {
		return AddrRange{}, newConfigErr("invalid address %q: %w", addrPart, err)
	}

	length := uint64(flasher.PageSize)
	if hasLen {
		length, err = strconv.ParseUint(lenPart, 0, 32)
		if err != nil {
			return AddrRange{}, newConfigErr("invalid length %q: %w", lenPart, err)
		}
	}

	return AddrRange{Addr: uint32(addr), Length: uint32(length)}, nil
}
