package fwpkg

import (
	"bytes"
	"errors"
	"testing"
)

// encodeDescriptor builds the wire bytes for one descriptor record:
// {type:u16 LE, length:u16 LE, payload}. Mirrors the original test
// suite's buildDescriptorBytes helper, one raw builder per variant.
func encodeDescriptor(typ DescriptorType, payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	out[0] = byte(typ)
	out[1] = byte(typ >> 8)
	out[2] = byte(len(payload))
	out[3] = byte(len(payload) >> 8)
	copy(out[4:], payload)
	return out
}

func TestDecodeDescriptor_AllVariants(t *testing.T) {
	cases := []struct {
		name    string
		typ     DescriptorType
		payload []byte
		want    Descriptor
	}{
		{"PciVendorID", TypePciVendorID, []byte{0x34, 0x12}, PciVendorID{ID: 0x1234}},
		{"IanaEnterpriseID", TypeIanaEnterpriseID, []byte{0x78, 0x56, 0x34, 0x12}, IanaEnterpriseID{ID: 0x12345678}},
		{
			"UUID", TypeUUID,
			[]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
			UUIDDescriptor{ID: [16]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}},
		},
		{"PnpVendorID", TypePnpVendorID, []byte{'O', 'B', 'M'}, PnpVendorID{ID: [3]byte{'O', 'B', 'M'}}},
		{"AcpiVendorID", TypeAcpiVendorID, []byte{0xEF, 0xCD, 0xAB, 0x90}, AcpiVendorID{ID: 0x90ABCDEF}},
		{"PciDeviceID", TypePciDeviceID, []byte{0x78, 0x56}, PciDeviceID{ID: 0x5678}},
		{"PciSubsystemVendorID", TypePciSubsystemVendorID, []byte{0x11, 0x22}, PciSubsystemVendorID{ID: 0x2211}},
		{"PciSubsystemID", TypePciSubsystemID, []byte{0x33, 0x44}, PciSubsystemID{ID: 0x4433}},
		{"PciRevisionID", TypePciRevisionID, []byte{0x07}, PciRevisionID{ID: 0x07}},
		{"PnpProductID", TypePnpProductID, []byte{0x01, 0x00, 0x00, 0x00}, PnpProductID{ID: 1}},
		{"AcpiProductID", TypeAcpiProductID, []byte{0x02, 0x00, 0x00, 0x00}, AcpiProductID{ID: 2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wire := encodeDescriptor(tc.typ, tc.payload)
			got, n, err := DecodeDescriptor(wire)
			if err != nil {
				t.Fatalf("DecodeDescriptor: %v", err)
			}
			if n != len(wire) {
				t.Fatalf("consumed %d bytes, want %d", n, len(wire))
			}
			if got != tc.want {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
			if got.Type() != tc.typ {
				t.Fatalf("Type() = %v, want %v", got.Type(), tc.typ)
			}
		})
	}
}

func TestDecodeDescriptor_VendorDefined(t *testing.T) {
	payload := append([]byte{0x00, 0x04}, []byte("Acme\x01\x02\x03")...)
	wire := encodeDescriptor(TypeVendorDefined, payload)

	got, n, err := DecodeDescriptor(wire)
	if err != nil {
		t.Fatalf("DecodeDescriptor: %v", err)
	}
	if n != len(wire) {
		t.Fatalf("consumed %d, want %d", n, len(wire))
	}
	vd, ok := got.(VendorDefined)
	if !ok {
		t.Fatalf("got %T, want VendorDefined", got)
	}
	if vd.Title != "Acme" {
		t.Fatalf("Title = %q, want %q", vd.Title, "Acme")
	}
	if !bytes.Equal(vd.Data, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("Data = %v, want [1 2 3]", vd.Data)
	}
}

func TestDecodeDescriptor_VendorDefinedTitleLenTooLarge(t *testing.T) {
	payload := []byte{0x00, 0xFF} // title_len=255 but nothing follows
	wire := encodeDescriptor(TypeVendorDefined, payload)

	_, _, err := DecodeDescriptor(wire)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestDecodeDescriptor_UnknownType(t *testing.T) {
	wire := encodeDescriptor(0x9999, []byte{0x01})
	_, _, err := DecodeDescriptor(wire)
	if !errors.Is(err, ErrUnknownDescriptorType) {
		t.Fatalf("err = %v, want ErrUnknownDescriptorType", err)
	}
}

func TestDecodeDescriptor_FixedWidthTruncated(t *testing.T) {
	wire := encodeDescriptor(TypePciVendorID, []byte{0x01})
	_, _, err := DecodeDescriptor(wire)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestIncludesSubset(t *testing.T) {
	super := []Descriptor{
		PciVendorID{ID: 1},
		PciVendorID{ID: 2},
		IanaEnterpriseID{ID: 100},
	}
	SortDescriptors(super)

	t.Run("empty subset always included", func(t *testing.T) {
		if !IncludesSubset(super, nil) {
			t.Fatal("expected empty subset to be included")
		}
	})

	t.Run("proper subset included", func(t *testing.T) {
		sub := []Descriptor{IanaEnterpriseID{ID: 100}, PciVendorID{ID: 2}}
		SortDescriptors(sub)
		if !IncludesSubset(super, sub) {
			t.Fatal("expected subset to be included")
		}
	})

	t.Run("missing element rejected", func(t *testing.T) {
		sub := []Descriptor{PciVendorID{ID: 3}}
		if IncludesSubset(super, sub) {
			t.Fatal("expected non-member descriptor to be rejected")
		}
	})

	t.Run("duplicate demands duplicate", func(t *testing.T) {
		sub := []Descriptor{PciVendorID{ID: 1}, PciVendorID{ID: 1}}
		if IncludesSubset(super, sub) {
			t.Fatal("expected multiset inclusion to require two matches")
		}
	})
}

func TestSortDescriptors_OrdersByTypeThenPayload(t *testing.T) {
	ds := []Descriptor{
		IanaEnterpriseID{ID: 1},
		PciVendorID{ID: 2},
		PciVendorID{ID: 1},
	}
	SortDescriptors(ds)

	want := []Descriptor{PciVendorID{ID: 1}, PciVendorID{ID: 2}, IanaEnterpriseID{ID: 1}}
	for i := range ds {
		if ds[i] != want[i] {
			t.Fatalf("position %d: got %#v, want %#v", i, ds[i], want[i])
		}
	}
}
