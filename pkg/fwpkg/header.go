package fwpkg

import "fmt"

// descriptorMatcher is the runtime object derived from one device record:
// the sorted descriptor list and the bitmap of component images it applies
// to (spec §3, "Descriptor matcher").
type descriptorMatcher struct {
	applicableComponents []byte // bit i = byte i/8, bit i%8, LSB-first
	descriptors          []Descriptor
}

func (m descriptorMatcher) appliesTo(imageIndex int) bool {
	byteOffset := imageIndex / 8
	bitOffset := uint(imageIndex % 8)
	if byteOffset >= len(m.applicableComponents) {
		return false
	}
	return m.applicableComponents[byteOffset]&(1<<bitOffset) != 0
}

// imagePlanEntry is one assignment produced at the end of header parsing:
// the byte range (relative to package start) to forward to consumer, or a
// nil consumer when no registered route claimed the image (spec §3, "Image
// plan entry").
type imagePlanEntry struct {
	offset   uint32
	length   uint32
	consumer ImageCallback
}

// parseDeviceRecords decodes recordCount device records, each self-
// delimited by its own record_length field (spec §4.3, "Device record").
func (p *Parser) parseDeviceRecords(c *cursor, recordCount uint8, bitmapLengthBytes uint16) ([]descriptorMatcher, error) {
	matchers := make([]descriptorMatcher, 0, recordCount)

	for i := uint8(0); i < recordCount; i++ {
		remainingBefore := c.Remaining()

		recordLength, err := c.TakeU16()
		if err != nil {
			return nil, err
		}
		descriptorCount, err := c.TakeU8()
		if err != nil {
			return nil, err
		}
		if err := c.Skip(5); err != nil { // reserved
			return nil, err
		}
		versionStringLength, err := c.TakeU8()
		if err != nil {
			return nil, err
		}
		packageDataLength, err := c.TakeU16()
		if err != nil {
			return nil, err
		}

		bitmap, err := c.TakeBytes(int(bitmapLengthBytes))
		if err != nil {
			return nil, err
		}
		if err := c.Skip(int(versionStringLength)); err != nil {
			return nil, err
		}

		descriptors := make([]Descriptor, 0, descriptorCount)
		for d := uint8(0); d < descriptorCount; d++ {
			desc, n, err := DecodeDescriptor(c.data[c.pos:])
			if err != nil {
				p.logger.Error("failed to decode descriptor in device record",
					"record", i, "descriptor_index", d, "error", err)
				return nil, err
			}
			c.pos += n
			descriptors = append(descriptors, desc)
		}
		SortDescriptors(descriptors)

		if err := c.Skip(int(packageDataLength)); err != nil {
			return nil, err
		}

		consumed := remainingBefore - c.Remaining()
		if consumed != int(recordLength) {
			p.logger.Error("device record byte count mismatch",
				"record", i, "declared", recordLength, "consumed", consumed)
			return nil, fmt.Errorf("%w: device record %d declared %d bytes, consumed %d", ErrMalformedRecord, i, recordLength, consumed)
		}

		matchers = append(matchers, descriptorMatcher{
			applicableComponents: bitmap,
			descriptors:          descriptors,
		})
	}

	return matchers, nil
}

// parseComponentImages decodes imageCount component image infos, matching
// each against the device-record matchers and, transitively, the
// registered consumer whose descriptors are a subset of the matching
// record's (spec §4.3, "Component image info").
func (p *Parser) parseComponentImages(c *cursor, matchers []descriptorMatcher, imageCount uint16) ([]imagePlanEntry, error) {
	plan := make([]imagePlanEntry, 0, imageCount)
	matchFound := false

	for i := uint16(0); i < imageCount; i++ {
		if err := c.Skip(12); err != nil { // reserved/metadata
			return nil, err
		}
		offset, err := c.TakeU32()
		if err != nil {
			return nil, err
		}
		length, err := c.TakeU32()
		if err != nil {
			return nil, err
		}
		// The package ends where its last non-empty image ends, so any gap
		// before or between images counts toward the bytes still expected.
		if end := uint64(offset) + uint64(length); length > 0 && end > p.totalBytesToReceive {
			p.totalBytesToReceive = end
		}

		if err := c.Skip(1); err != nil { // version string type
			return nil, err
		}
		versionStringLength, err := c.TakeU8()
		if err != nil {
			return nil, err
		}
		if err := c.Skip(int(versionStringLength)); err != nil {
			return nil, err
		}

		matcherIdx := -1
		for mi := range matchers {
			if matchers[mi].appliesTo(int(i)) {
				matcherIdx = mi
				break
			}
		}
		if matcherIdx < 0 {
			p.logger.Error("no device record applies to component image", "image_index", i)
			return nil, fmt.Errorf("%w: no device record applies to image %d", ErrMalformedRecord, i)
		}

		entry := imagePlanEntry{offset: offset, length: length}
		for _, consumer := range p.registeredComponents {
			if IncludesSubset(matchers[matcherIdx].descriptors, consumer.descriptors) {
				entry.consumer = consumer.callback
				matchFound = true
				break
			}
		}
		plan = append(plan, entry)
	}

	if !matchFound {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, ErrNoMatchingConsumer)
	}
	return plan, nil
}

// parseHeader decodes the full header (spec §4.3's layout table) from the
// accumulated scratch buffer and populates the parser's image plan.
func (p *Parser) parseHeader() error {
	c := newCursor(p.headerBytes)

	if err := c.Skip(32); err != nil { // magic + reserved, already verified
		return err
	}

	bitmapLengthBits, err := c.TakeU16()
	if err != nil {
		return err
	}
	if bitmapLengthBits%8 != 0 {
		return fmt.Errorf("%w: component_bitmap_length %d is not a multiple of 8", ErrMalformedRecord, bitmapLengthBits)
	}
	bitmapLengthBytes := bitmapLengthBits / 8

	if err := c.Skip(1); err != nil { // version-string type
		return err
	}
	versionStringLength, err := c.TakeU8()
	if err != nil {
		return err
	}
	if err := c.Skip(int(versionStringLength)); err != nil {
		return err
	}

	recordCount, err := c.TakeU8()
	if err != nil {
		return err
	}

	matchers, err := p.parseDeviceRecords(&c, recordCount, bitmapLengthBytes)
	if err != nil {
		return err
	}

	imageCount, err := c.TakeU16()
	if err != nil {
		return err
	}

	p.totalBytesToReceive = uint64(p.headerSize)
	plan, err := p.parseComponentImages(&c, matchers, imageCount)
	if err != nil {
		return err
	}
	p.images = plan

	if _, err := c.TakeU32(); err != nil { // header CRC, not validated
		return err
	}

	if c.Remaining() != 0 {
		return fmt.Errorf("%w: %d stray bytes left in header", ErrMalformedRecord, c.Remaining())
	}
	return nil
}
