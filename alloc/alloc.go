package alloc

import (
	"sync"

	"github.com/mit-pdos/go-filehdr/common"
	"github.com/mit-pdos/go-filehdr/util"
)

// Alloc uses a bit map to allocate and free numbers. Bit 0 corresponds to
// number 0, bit 1 to 1, and so on. Number 0 is never handed out, so callers
// can use it as a null value.
type Alloc struct {
	mu     *sync.Mutex // protects next and bitmap
	next   uint64      // first number to try
	bitmap []byte
}

// MkAlloc takes ownership of bitmap. Bit 0 is marked used.
func MkAlloc(bitmap []byte) *Alloc {
	if len(bitmap) == 0 {
		panic("MkAlloc: empty bitmap")
	}
	a := &Alloc{
		mu:     new(sync.Mutex),
		next:   0,
		bitmap: bitmap,
	}
	a.bitmap[0] |= 1
	return a
}

// MkMaxAlloc makes an allocator for the numbers [1, max). max must be a
// multiple of 8.
func MkMaxAlloc(max uint64) *Alloc {
	if max == 0 || max%8 != 0 {
		panic("MkMaxAlloc: max must be a non-zero multiple of 8")
	}
	return MkAlloc(make([]byte, max/8))
}

func (a *Alloc) max() uint64 {
	return 8 * uint64(len(a.bitmap))
}

func (a *Alloc) isSet(n uint64) bool {
	return a.bitmap[n/8]&(1<<(n%8)) != 0
}

func (a *Alloc) MarkUsed(bn common.Bnum) {
	if bn >= a.max() {
		panic("MarkUsed: out of range")
	}
	a.mu.Lock()
	a.bitmap[bn/8] |= 1 << (bn % 8)
	a.mu.Unlock()
}

func (a *Alloc) incNext() uint64 {
	a.next = a.next + 1
	if a.next >= a.max() {
		a.next = 0
	}
	return a.next
}

// Returns a free number and marks it used, or 0 if there is none.
//
// Assumes caller holds mu.
func (a *Alloc) allocBit() uint64 {
	var num uint64
	num = a.incNext()
	start := num
	for {
		if !a.isSet(num) {
			a.bitmap[num/8] |= 1 << (num % 8)
			break
		}
		num = a.incNext()
		if num == start {
			return common.NULLBNUM
		}
		continue
	}
	util.DPrintf(10, "allocBit: start %d num %d\n", start, num)
	return num
}

// AllocNum finds a free number, marks it used, and returns it. It returns 0
// when everything is in use.
func (a *Alloc) AllocNum() common.Bnum {
	a.mu.Lock()
	num := a.allocBit()
	a.mu.Unlock()
	return num
}

func (a *Alloc) FreeNum(num common.Bnum) {
	if num == common.NULLBNUM {
		panic("FreeNum")
	}
	if num >= a.max() {
		panic("FreeNum: out of range")
	}
	a.mu.Lock()
	a.bitmap[num/8] &= ^(1 << (num % 8))
	a.mu.Unlock()
}

func (a *Alloc) IsUsed(num common.Bnum) bool {
	if num >= a.max() {
		return false
	}
	a.mu.Lock()
	used := a.isSet(num)
	a.mu.Unlock()
	return used
}

func popCnt(b byte) uint64 {
	var count uint64
	var x = b
	for i := uint64(0); i < 8; i++ {
		count += uint64(x & 1)
		x = x >> 1
	}
	return count
}

// NumFree counts the numbers that are not in use.
func (a *Alloc) NumFree() uint64 {
	a.mu.Lock()
	total := a.max()
	var used uint64
	for _, b := range a.bitmap {
		used += popCnt(b)
	}
	a.mu.Unlock()
	return total - used
}

// Bitmap returns a copy of the bitmap, suitable for writing to disk.
func (a *Alloc) Bitmap() []byte {
	a.mu.Lock()
	b := util.CloneByteSlice(a.bitmap)
	a.mu.Unlock()
	return b
}
