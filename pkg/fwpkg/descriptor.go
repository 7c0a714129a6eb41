package fwpkg

import (
	"bytes"
	"fmt"
)

// DescriptorType is the wire tag identifying a descriptor variant (spec §3).
type DescriptorType uint16

const (
	TypePciVendorID           DescriptorType = 0x0000
	TypeIanaEnterpriseID      DescriptorType = 0x0001
	TypeUUID                  DescriptorType = 0x0002
	TypePnpVendorID           DescriptorType = 0x0003
	TypeAcpiVendorID          DescriptorType = 0x0004
	TypePciDeviceID           DescriptorType = 0x0100
	TypePciSubsystemVendorID  DescriptorType = 0x0101
	TypePciSubsystemID        DescriptorType = 0x0102
	TypePciRevisionID         DescriptorType = 0x0103
	TypePnpProductID          DescriptorType = 0x0104
	TypeAcpiProductID         DescriptorType = 0x0105
	TypeVendorDefined         DescriptorType = 0xFFFF
)

// Descriptor is the sum type of the twelve device/firmware identifiers the
// package header can carry. Concrete variants implement it by reporting
// their tag and the raw bytes used for ordering.
type Descriptor interface {
	Type() DescriptorType
	payload() []byte
}

// Compare gives the total order descriptor sets are sorted and
// subset-matched by: ascending tag, then ascending payload bytes. Any
// deterministic order that agrees with equality would do; this one is
// simple and portable across reimplementations (spec §9).
func Compare(a, b Descriptor) int {
	if a.Type() != b.Type() {
		if a.Type() < b.Type() {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.payload(), b.payload())
}

// SortDescriptors sorts a descriptor slice in place by Compare.
func SortDescriptors(ds []Descriptor) {
	insertionSort(ds)
}

// insertionSort keeps descriptor lists (typically a handful of entries per
// device record or consumer) sorted without pulling in sort.Slice's
// reflection-based comparator for such small inputs.
func insertionSort(ds []Descriptor) {
	for i := 1; i < len(ds); i++ {
		for j := i; j > 0 && Compare(ds[j-1], ds[j]) > 0; j-- {
			ds[j-1], ds[j] = ds[j], ds[j-1]
		}
	}
}

// IncludesSubset reports whether subset is contained in superset as a
// sorted multiset: every element of subset has a matching element in
// superset, using a two-pointer scan over both (already sorted) slices.
// O(len(superset)+len(subset)).
func IncludesSubset(superset, subset []Descriptor) bool {
	i := 0
	for _, want := range subset {
		for i < len(superset) && Compare(superset[i], want) < 0 {
			i++
		}
		if i >= len(superset) || Compare(superset[i], want) != 0 {
			return false
		}
		i++
	}
	return true
}

type PciVendorID struct{ ID uint16 }
type IanaEnterpriseID struct{ ID uint32 }
type UUIDDescriptor struct{ ID [16]byte }
type PnpVendorID struct{ ID [3]byte }
type AcpiVendorID struct{ ID uint32 } // LE u32, per spec §9's resolved open question
type PciDeviceID struct{ ID uint16 }
type PciSubsystemVendorID struct{ ID uint16 }
type PciSubsystemID struct{ ID uint16 }
type PciRevisionID struct{ ID uint8 }
type PnpProductID struct{ ID uint32 }
type AcpiProductID struct{ ID uint32 }

// VendorDefined carries a vendor-chosen title and opaque trailing data; the
// outer record length is authoritative for how much data is read (spec §3).
type VendorDefined struct {
	Title string
	Data  []byte
}

func (d PciVendorID) Type() DescriptorType { return TypePciVendorID }
func (d PciVendorID) payload() []byte      { return le16(d.ID) }

func (d IanaEnterpriseID) Type() DescriptorType { return TypeIanaEnterpriseID }
func (d IanaEnterpriseID) payload() []byte      { return le32(d.ID) }

func (d UUIDDescriptor) Type() DescriptorType { return TypeUUID }
func (d UUIDDescriptor) payload() []byte      { return d.ID[:] }

func (d PnpVendorID) Type() DescriptorType { return TypePnpVendorID }
func (d PnpVendorID) payload() []byte      { return d.ID[:] }

func (d AcpiVendorID) Type() DescriptorType { return TypeAcpiVendorID }
func (d AcpiVendorID) payload() []byte      { return le32(d.ID) }

func (d PciDeviceID) Type() DescriptorType { return TypePciDeviceID }
func (d PciDeviceID) payload() []byte      { return le16(d.ID) }

func (d PciSubsystemVendorID) Type() DescriptorType { return TypePciSubsystemVendorID }
func (d PciSubsystemVendorID) payload() []byte      { return le16(d.ID) }

func (d PciSubsystemID) Type() DescriptorType { return TypePciSubsystemID }
func (d PciSubsystemID) payload() []byte      { return le16(d.ID) }

func (d PciRevisionID) Type() DescriptorType { return TypePciRevisionID }
func (d PciRevisionID) payload() []byte      { return []byte{d.ID} }

func (d PnpProductID) Type() DescriptorType { return TypePnpProductID }
func (d PnpProductID) payload() []byte      { return le32(d.ID) }

func (d AcpiProductID) Type() DescriptorType { return TypeAcpiProductID }
func (d AcpiProductID) payload() []byte      { return le32(d.ID) }

func (d VendorDefined) Type() DescriptorType { return TypeVendorDefined }
func (d VendorDefined) payload() []byte {
	out := make([]byte, 0, 1+len(d.Title)+len(d.Data))
	out = append(out, byte(len(d.Title)))
	out = append(out, []byte(d.Title)...)
	out = append(out, d.Data...)
	return out
}

func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// DecodeDescriptor decodes one tagged descriptor record
// {type:u16, length:u16, payload[length]} per spec §4.2, returning the
// decoded variant and the total bytes consumed (4 + length).
func DecodeDescriptor(b []byte) (Descriptor, int, error) {
	c := newCursor(b)
	rawType, err := c.TakeU16()
	if err != nil {
		return nil, 0, err
	}
	length, err := c.TakeU16()
	if err != nil {
		return nil, 0, err
	}

	payloadStart := c.pos
	if err := c.require(int(length)); err != nil {
		return nil, 0, err
	}
	payload := c.data[payloadStart : payloadStart+int(length)]

	typ := DescriptorType(rawType)
	switch typ {
	case TypePciVendorID:
		v, err := fixedU16(payload)
		return PciVendorID{ID: v}, 4 + int(length), err
	case TypeIanaEnterpriseID:
		v, err := fixedU32(payload)
		return IanaEnterpriseID{ID: v}, 4 + int(length), err
	case TypeUUID:
		var arr [16]byte
		if len(payload) != 16 {
			return nil, 0, ErrTruncated
		}
		copy(arr[:], payload)
		return UUIDDescriptor{ID: arr}, 4 + int(length), nil
	case TypePnpVendorID:
		var arr [3]byte
		if len(payload) != 3 {
			return nil, 0, ErrTruncated
		}
		copy(arr[:], payload)
		return PnpVendorID{ID: arr}, 4 + int(length), nil
	case TypeAcpiVendorID:
		v, err := fixedU32(payload)
		return AcpiVendorID{ID: v}, 4 + int(length), err
	case TypePciDeviceID:
		v, err := fixedU16(payload)
		return PciDeviceID{ID: v}, 4 + int(length), err
	case TypePciSubsystemVendorID:
		v, err := fixedU16(payload)
		return PciSubsystemVendorID{ID: v}, 4 + int(length), err
	case TypePciSubsystemID:
		v, err := fixedU16(payload)
		return PciSubsystemID{ID: v}, 4 + int(length), err
	case TypePciRevisionID:
		if len(payload) != 1 {
			return nil, 0, ErrTruncated
		}
		return PciRevisionID{ID: payload[0]}, 4 + int(length), nil
	case TypePnpProductID:
		v, err := fixedU32(payload)
		return PnpProductID{ID: v}, 4 + int(length), err
	case TypeAcpiProductID:
		v, err := fixedU32(payload)
		return AcpiProductID{ID: v}, 4 + int(length), err
	case TypeVendorDefined:
		vd, err := decodeVendorDefined(payload)
		return vd, 4 + int(length), err
	default:
		return nil, 0, fmt.Errorf("%w: 0x%04X", ErrUnknownDescriptorType, rawType)
	}
}

// fixedU16/fixedU32 decode a whole-payload fixed-width field: the outer
// length is authoritative, so a payload shorter than the field width is
// Truncated and any extra trailing bytes are ignored per spec §4.2's
// tie-break policy.
func fixedU16(payload []byte) (uint16, error) {
	c := newCursor(payload)
	return c.TakeU16()
}

func fixedU32(payload []byte) (uint32, error) {
	c := newCursor(payload)
	return c.TakeU32()
}

// decodeVendorDefined parses {reserved:1, title_len:u8, title[title_len],
// data[...]} from a sub-cursor bounded to the outer record's length.
func decodeVendorDefined(payload []byte) (VendorDefined, error) {
	c := newCursor(payload)
	if err := c.Skip(1); err != nil {
		return VendorDefined{}, err
	}
	titleLen, err := c.TakeU8()
	if err != nil {
		return VendorDefined{}, err
	}
	title, err := c.TakeString(int(titleLen))
	if err != nil {
		return VendorDefined{}, err
	}
	data, err := c.TakeBytes(c.Remaining())
	if err != nil {
		return VendorDefined{}, err
	}
	return VendorDefined{Title: title, Data: data}, nil
}
