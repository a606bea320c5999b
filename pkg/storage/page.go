// Package storage implements the slotted-page heap-file storage engine:
// fixed-size pages with an append-only slot directory, an ordered sequence
// of pages persisted in a single file (HeapFile), a lazy page/slot iterator,
// and a StorageManager mapping container ids to backing files.
package storage

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// PageSize is the fixed on-disk size of every page, in bytes.
const PageSize = 4096

const (
	pageHeaderSize = 8 // page_id(2) + num_live_slots(2) + first_free_offset(2) + total_slot_headers(2)
	slotMetaSize   = 6 // slot_id(2) + size(2) + offset(2)

	pageIDLoc      = 0
	numSlotsLoc    = 2
	firstOffsetLoc = 4
	totSlotsLoc    = 6
	slotStartLoc   = 8
)

// PageID is a dense, 0-based index of a page within a HeapFile.
type PageID uint16

// SlotID identifies a live or historically-live record within one page.
type SlotID uint16

// pageOffset is a byte offset into a page's PageSize-length buffer.
type pageOffset = uint16

// Page is a fixed PageSize-byte buffer laid out as:
//
//	[8-byte header][slot directory, growing up][free space][payload region, growing down]
//
// Deletion is followed by eager compaction: the payload region never has
// holes, and a deleted slot's directory entry is zeroed and becomes
// reusable by the next insert that needs the smallest missing slot id.
type Page struct {
	data [PageSize]byte
}

// NewPage returns an empty page stamped with the given id.
func NewPage(id PageID) *Page {
	p := &Page{}
	binary.LittleEndian.PutUint16(p.data[pageIDLoc:], uint16(id))
	return p
}

// FromBytes reconstructs a Page from an exact PageSize-byte buffer.
func FromBytes(buf []byte) (*Page, error) {
	if len(buf) != PageSize {
		return nil, fmt.Errorf("storage: invalid page size: expected %d, got %d", PageSize, len(buf))
	}
	p := &Page{}
	copy(p.data[:], buf)
	return p, nil
}

// ToBytes returns the exact PageSize-byte on-disk representation.
func (p *Page) ToBytes() []byte {
	out := make([]byte, PageSize)
	copy(out, p.data[:])
	return out
}

// ID returns the page's stamped page id.
func (p *Page) ID() PageID {
	return PageID(binary.LittleEndian.Uint16(p.data[pageIDLoc:]))
}

func (p *Page) numLiveSlots() uint16 {
	return binary.LittleEndian.Uint16(p.data[numSlotsLoc:])
}

func (p *Page) setNumLiveSlots(n uint16) {
	binary.LittleEndian.PutUint16(p.data[numSlotsLoc:], n)
}

// firstFreeOffset returns the lowest byte index occupied by any live
// payload. A raw value of 0 means "unset" (fresh page) and is interpreted
// as PageSize.
func (p *Page) firstFreeOffset() pageOffset {
	raw := binary.LittleEndian.Uint16(p.data[firstOffsetLoc:])
	if raw == 0 {
		return PageSize
	}
	return raw
}

func (p *Page) setFirstFreeOffset(off pageOffset) {
	binary.LittleEndian.PutUint16(p.data[firstOffsetLoc:], off)
}

func (p *Page) totalSlotHeaders() uint16 {
	return binary.LittleEndian.Uint16(p.data[totSlotsLoc:])
}

func (p *Page) setTotalSlotHeaders(n uint16) {
	binary.LittleEndian.PutUint16(p.data[totSlotsLoc:], n)
}

// HeaderSize returns 8 + 6*total_slot_headers.
func (p *Page) HeaderSize() int {
	return pageHeaderSize + slotMetaSize*int(p.totalSlotHeaders())
}

// FreeSpace returns first_free_offset - header_size, clamped to zero.
func (p *Page) FreeSpace() int {
	first := int(p.firstFreeOffset())
	header := p.HeaderSize()
	if first < header {
		return 0
	}
	return first - header
}

// slot-directory entry accessors. loc is the byte offset of the entry
// within p.data; entries are addressed purely by loc.

func (p *Page) slotIDAt(loc int) SlotID {
	return SlotID(binary.LittleEndian.Uint16(p.data[loc:]))
}

func (p *Page) setSlotIDAt(loc int, id SlotID) {
	binary.LittleEndian.PutUint16(p.data[loc:], uint16(id))
}

func (p *Page) slotSizeAt(loc int) uint16 {
	return binary.LittleEndian.Uint16(p.data[loc+2:])
}

func (p *Page) setSlotSizeAt(loc int, size uint16) {
	binary.LittleEndian.PutUint16(p.data[loc+2:], size)
}

func (p *Page) slotOffsetAt(loc int) pageOffset {
	return binary.LittleEndian.Uint16(p.data[loc+4:])
}

func (p *Page) setSlotOffsetAt(loc int, off pageOffset) {
	binary.LittleEndian.PutUint16(p.data[loc+4:], off)
}

// metaLoc returns the directory byte offset for the given slot id, or
// (0, false) if no live entry currently carries that id.
func (p *Page) metaLoc(slot SlotID) (int, bool) {
	total := int(p.totalSlotHeaders())
	for loc := pageHeaderSize; loc < pageHeaderSize+total*slotMetaSize; loc += slotMetaSize {
		id := p.slotIDAt(loc)
		if id != slot {
			continue
		}
		if id == 0 && p.slotOffsetAt(loc) == 0 {
			continue // zeroed / deleted hole that happens to read as slot 0
		}
		return loc, true
	}
	return 0, false
}

// nextSlotID returns the smallest non-negative integer not currently used
// by a live slot on this page.
func (p *Page) nextSlotID() SlotID {
	numLive := p.numLiveSlots()
	total := p.totalSlotHeaders()
	if total == numLive {
		return SlotID(numLive)
	}

	live := make([]int, 0, total)
	for loc := pageHeaderSize; loc < pageHeaderSize+int(total)*slotMetaSize; loc += slotMetaSize {
		id := p.slotIDAt(loc)
		if id == 0 && p.slotOffsetAt(loc) == 0 {
			continue
		}
		live = append(live, int(id))
	}
	sort.Ints(live)

	expect := 0
	for _, id := range live {
		if id != expect {
			return SlotID(expect)
		}
		expect = id + 1
	}
	return SlotID(expect)
}

// AddValue inserts bytes into the smallest available slot id. It returns
// (slotID, true) on success, or (0, false) if free_space < len(bytes) + 6.
func (p *Page) AddValue(value []byte) (SlotID, bool) {
	entrySize := pageOffset(len(value))
	if p.FreeSpace() < len(value)+slotMetaSize {
		return 0, false
	}

	slot := p.nextSlotID()
	endAt := p.firstFreeOffset()

	p.setNumLiveSlots(p.numLiveSlots() + 1)
	p.setFirstFreeOffset(endAt - entrySize)

	loc := pageHeaderSize + int(p.totalSlotHeaders())*slotMetaSize
	p.setTotalSlotHeaders(p.totalSlotHeaders() + 1)

	p.setSlotIDAt(loc, slot)
	copy(p.data[int(endAt)-len(value):int(endAt)], value)
	p.setSlotOffsetAt(loc, endAt)
	p.setSlotSizeAt(loc, uint16(len(value)))

	return slot, true
}

// GetValue returns the payload stored at slot, or (nil, false) if no live
// entry carries that slot id.
func (p *Page) GetValue(slot SlotID) ([]byte, bool) {
	loc, ok := p.metaLoc(slot)
	if !ok {
		return nil, false
	}
	size := int(p.slotSizeAt(loc))
	off := int(p.slotOffsetAt(loc))
	out := make([]byte, size)
	copy(out, p.data[off-size:off])
	return out, true
}

// compact shifts every live payload positioned after delMetaLoc in the
// directory (i.e. every payload inserted after the one being deleted, and
// therefore holding a smaller offset) upward by the deleted payload's
// length, rewriting each moved entry's offset in place. Called once per
// delete, eagerly, so the payload region never develops holes.
func (p *Page) compact(delOffset pageOffset, delMetaLoc int) {
	total := pageHeaderSize + int(p.totalSlotHeaders())*slotMetaSize

	newOffset := delOffset
	newStart := delOffset
	for loc := delMetaLoc + slotMetaSize; loc < total; loc += slotMetaSize {
		off := p.slotOffsetAt(loc)
		if off != 0 {
			size := p.slotSizeAt(loc)
			newStart = newOffset - size
			copy(p.data[newStart:newOffset], p.data[off-size:off])
			p.setSlotOffsetAt(loc, newOffset)
		}
		newOffset = newStart
	}
}

// DeleteValue zeroes the payload and directory entry for slot, compacts
// the payload region, and returns true if a live entry was removed.
func (p *Page) DeleteValue(slot SlotID) bool {
	loc, ok := p.metaLoc(slot)
	if !ok {
		return false
	}

	size := int(p.slotSizeAt(loc))
	off := int(p.slotOffsetAt(loc))
	for i := off - size; i < off; i++ {
		p.data[i] = 0
	}

	p.compact(pageOffset(off), loc)

	p.setSlotIDAt(loc, 0)
	p.setSlotSizeAt(loc, 0)
	p.setSlotOffsetAt(loc, 0)

	p.setNumLiveSlots(p.numLiveSlots() - 1)
	p.setFirstFreeOffset(p.firstFreeOffset() + pageOffset(size))

	return true
}

// Record pairs a payload with the slot id it was read from.
type Record struct {
	Bytes []byte
	Slot  SlotID
}

// Iterate yields every live (bytes, slot_id) pair in ascending slot-id
// order, starting at startSlot (pass 0 to visit every slot).
func (p *Page) Iterate(startSlot SlotID) []Record {
	var out []Record
	total := p.totalSlotHeaders()
	for s := startSlot; s < total; s++ {
		if bytes, ok := p.GetValue(s); ok {
			out = append(out, Record{Bytes: bytes, Slot: s})
		}
	}
	return out
}

// Stats reports page-level introspection data for diagnostics and tests.
func (p *Page) Stats() map[string]interface{} {
	return map[string]interface{}{
		"page_id":            p.ID(),
		"num_live_slots":     p.numLiveSlots(),
		"total_slot_headers": p.totalSlotHeaders(),
		"first_free_offset":  p.firstFreeOffset(),
		"free_space":         p.FreeSpace(),
		"header_size":        p.HeaderSize(),
	}
}
