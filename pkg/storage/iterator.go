package storage

import "fmt"

// PageSlot identifies a record by its page and slot within a single
// HeapFile. ValueID (defined in manager.go) adds the container id on top
// of this to identify a record anywhere in a StorageManager.
type PageSlot struct {
	PageID PageID
	SlotID SlotID
}

// HeapFileIterator walks every live record of a HeapFile in ascending
// (pageID, slotID) order. Unlike a design that pairs an outer page cursor
// with an inner per-page iterator, this keeps a single (pageID, slotID)
// cursor and asks the current page for its next live slot at or after
// slotID — behaviorally equivalent, and restartable from any position.
type HeapFileIterator struct {
	hf *HeapFile

	curPage PageID
	curSlot SlotID

	page   *Page // cached current page, nil until first advance
	closed bool
}

// NewHeapFileIterator returns an iterator positioned to start at (page, slot).
func NewHeapFileIterator(hf *HeapFile, start PageSlot) *HeapFileIterator {
	return &HeapFileIterator{
		hf:      hf,
		curPage: start.PageID,
		curSlot: start.SlotID,
	}
}

func (it *HeapFileIterator) loadPage() error {
	if it.page != nil && it.page.ID() == it.curPage {
		return nil
	}
	p, err := it.hf.ReadPage(it.curPage)
	if err != nil {
		return err
	}
	it.page = p
	return nil
}

// Next returns the next (bytes, PageSlot) pair, or (nil, PageSlot{}, false)
// once every page has been exhausted.
func (it *HeapFileIterator) Next() ([]byte, PageSlot, bool, error) {
	if it.closed {
		return nil, PageSlot{}, false, fmt.Errorf("storage: iterator used after Close")
	}

	for uint32(it.curPage) < it.hf.NumPages() {
		if err := it.loadPage(); err != nil {
			return nil, PageSlot{}, false, err
		}

		total := it.page.totalSlotHeaders()
		for it.curSlot < total {
			slot := it.curSlot
			it.curSlot++
			if bytes, ok := it.page.GetValue(slot); ok {
				return bytes, PageSlot{PageID: it.curPage, SlotID: slot}, true, nil
			}
		}

		it.curPage++
		it.curSlot = 0
		it.page = nil
	}

	return nil, PageSlot{}, false, nil
}

// Close releases the iterator. Further calls to Next return an error.
func (it *HeapFileIterator) Close() {
	it.closed = true
	it.page = nil
}
