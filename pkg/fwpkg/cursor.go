package fwpkg

import "encoding/binary"

// cursor is a view over a contiguous, immutable byte slice plus a read
// position. Only TakeArray, TakeBytes and TakeString allocate, each
// returning a fresh copy of the bytes it reads; it is value-like: callers
// hold it by pointer and mutate it in place as they consume the underlying
// slice.
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) cursor {
	return cursor{data: data}
}

// Remaining reports how many unread bytes are left.
func (c *cursor) Remaining() int {
	return len(c.data) - c.pos
}

func (c *cursor) require(n int) error {
	if c.Remaining() < n {
		return ErrTruncated
	}
	return nil
}

// TakeU8 reads one byte.
func (c *cursor) TakeU8() (uint8, error) {
	if err := c.require(1); err != nil {
		return 0, err
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

// TakeU16 reads a little-endian uint16.
func (c *cursor) TakeU16() (uint16, error) {
	if err := c.require(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.data[c.pos : c.pos+2])
	c.pos += 2
	return v, nil
}

// TakeU32 reads a little-endian uint32.
func (c *cursor) TakeU32() (uint32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

// TakeArray copies out exactly n bytes into a new slice of length n.
func (c *cursor) TakeArray(n int) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.data[c.pos:c.pos+n])
	c.pos += n
	return out, nil
}

// TakeBytes copies out n bytes as an opaque buffer. Identical to TakeArray;
// kept as a distinct name to mirror the spec's take_bytes/take_array split
// at call sites where the distinction documents intent.
func (c *cursor) TakeBytes(n int) ([]byte, error) {
	return c.TakeArray(n)
}

// TakeString copies out n bytes and interprets them as a string, with no
// encoding validation beyond the UTF-8 pass-through Go strings already give
// a []byte conversion.
func (c *cursor) TakeString(n int) (string, error) {
	b, err := c.TakeArray(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Skip advances the cursor by n bytes without reading them.
func (c *cursor) Skip(n int) error {
	if err := c.require(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}
