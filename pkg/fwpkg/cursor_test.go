package fwpkg

import (
	"errors"
	"testing"
)

func TestCursor_TakeFixedWidth(t *testing.T) {
	c := newCursor([]byte{0x01, 0x02, 0x03, 0x04, 0x05})

	u8, err := c.TakeU8()
	if err != nil || u8 != 0x01 {
		t.Fatalf("TakeU8: %v, %v", u8, err)
	}
	u16, err := c.TakeU16()
	if err != nil || u16 != 0x0302 {
		t.Fatalf("TakeU16: %#x, %v", u16, err)
	}
	if c.Remaining() != 2 {
		t.Fatalf("Remaining() = %d, want 2", c.Remaining())
	}
}

func TestCursor_TruncatedReads(t *testing.T) {
	c := newCursor([]byte{0x01})
	if _, err := c.TakeU16(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
	if err := c.Skip(5); !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestCursor_TakeStringAndBytes(t *testing.T) {
	c := newCursor([]byte("hello!"))
	s, err := c.TakeString(5)
	if err != nil || s != "hello" {
		t.Fatalf("TakeString: %q, %v", s, err)
	}
	rest, err := c.TakeBytes(c.Remaining())
	if err != nil || string(rest) != "!" {
		t.Fatalf("TakeBytes: %q, %v", rest, err)
	}
}
