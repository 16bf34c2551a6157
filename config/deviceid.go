package config

import (
	"fmt"
	"strconv"
	"strings"
)

// maxDeviceIDFields mirrors flasher.Session.IDValidate's own contract
// (device id ≤ 7 bytes, per spec.md §4.2), not a format sflash.py
// invented — M16CFlashApp.py's own default, "0:0:0:0:0:0:0", is itself
// seven colon-separated fields.
const maxDeviceIDFields = 7

// ParseDeviceID parses the colon-separated hex device-id format
// (e.g. "ae:23:3a:dd:ea:32") used by both predecessor CLIs. An empty
// string returns a nil slice with no error, matching "device id not
// specified". Any field count from 0 up to maxDeviceIDFields is
// accepted, since IDValidate itself only bounds the id at 7 bytes and
// never requires a fixed width.
func ParseDeviceID(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	fields := strings.Split(strings.TrimSpace(s), ":")
	if len(fields) > maxDeviceIDFields {
		return nil, fmt.Errorf("device id must have at most %d colon-separated fields, got %d", maxDeviceIDFields, len(fields))
	}

	id := make([]byte, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("device id field %d (%q) out of range 0-255: %w", i, f, err)
		}
		id[i] = byte(v)
	}
	return id, nil
}
