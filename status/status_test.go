package status

import "testing"

// TestFlashErrorPriority checks the §8 "status error priority"
// property: for every combination of the error bits, FlashError picks
// InvalidCommand over InvalidBlock over PageLocked over WriteFailed.
func TestFlashErrorPriority(t *testing.T) {
	cases := []struct {
		name string
		raw  uint16
		want FlashErrorKind
	}{
		{"all clear", 0x0000, Ok},
		{"bit2 only", 0x0004, WriteFailed},
		{"bit3 only", 0x0008, PageLocked},
		{"bit4 only", 0x0010, InvalidBlock},
		{"bits4:3 both", 0x0018, InvalidCommand},
		{"bits4:3 plus bit2", 0x001c, InvalidCommand},
		{"bit3 plus bit2", 0x000c, PageLocked},
		{"bit4 plus bit2", 0x0014, InvalidBlock},
		{"ready and write failed after write", 0x0084, WriteFailed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := Status(c.raw)
			if got := s.FlashError(); got != c.want {
				t.Errorf("FlashError(0x%04x) = %s, want %s", c.raw, got, c.want)
			}
		})
	}
}

func TestReady(t *testing.T) {
	if Status(0x0000).Ready() {
		t.Error("Ready() true for 0x0000")
	}
	if !Status(0x0080).Ready() {
		t.Error("Ready() false for 0x0080")
	}
}

func TestIDOK(t *testing.T) {
	cases := []struct {
		raw  uint16
		want bool
	}{
		{0x0000, false},
		{0x0400, false},
		{0x0800, false},
		{0x0C00, true},
	}
	for _, c := range cases {
		if got := Status(c.raw).IDOK(); got != c.want {
			t.Errorf("IDOK(0x%04x) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestCheckOK(t *testing.T) {
	if Status(0x0000).CheckOK() {
		t.Error("CheckOK() true for 0x0000")
	}
	if !Status(0x2000).CheckOK() {
		t.Error("CheckOK() false for 0x2000")
	}
}

func TestDecode(t *testing.T) {
	s := Decode(0x80, 0x0c)
	if !s.Ready() || !s.IDOK() {
		t.Errorf("Decode(0x80,0x0c) = %s, want ready && id-ok", s)
	}
	if s.Raw() != 0x0c80 {
		t.Errorf("Raw() = 0x%04x, want 0x0c80", s.Raw())
	}
}

func TestFlashOK(t *testing.T) {
	if !Status(0x0080).FlashOK() {
		t.Error("FlashOK() false for status with no error bits")
	}
	if Status(0x0088).FlashOK() {
		t.Error("FlashOK() true for status with PageLocked bit set")
	}
}
