package filehdr

import (
	"github.com/pkg/errors"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-filehdr/buf"
	"github.com/mit-pdos/go-filehdr/common"
	"github.com/mit-pdos/go-filehdr/util"
)

// claimer hands out blocks from a free map and remembers them, so that an
// allocation that runs dry half-way can give everything back.
type claimer struct {
	freeMap FreeMap
	claimed []common.Bnum
}

func (c *claimer) claim() (common.Bnum, bool) {
	bn := c.freeMap.AllocNum()
	if bn == common.NULLBNUM {
		return common.NULLBNUM, false
	}
	c.claimed = append(c.claimed, bn)
	return bn, true
}

func (c *claimer) undo() {
	for i := len(c.claimed) - 1; i >= 0; i-- {
		c.freeMap.FreeNum(c.claimed[i])
	}
	c.claimed = nil
}

// fillLeaf claims a leaf index block and n data blocks for it, and writes
// the leaf to disk.
func (c *claimer) fillLeaf(d disk.Disk, n uint64) (common.Bnum, bool) {
	bn, ok := c.claim()
	if !ok {
		return common.NULLBNUM, false
	}
	leaf := buf.MkIndexBuf(bn)
	for i := uint64(0); i < n; i++ {
		data, ok := c.claim()
		if !ok {
			return common.NULLBNUM, false
		}
		leaf.BnumPut(i, data)
	}
	leaf.WriteDirect(d)
	return bn, true
}

func (h *FileHeader) allocBlocks(d disk.Disk, c *claimer, l layout) bool {
	for i := uint64(0); i < l.ndirect; i++ {
		bn, ok := c.claim()
		if !ok {
			return false
		}
		h.table[i] = bn
	}
	if l.tier == tierDirect {
		return true
	}

	leaf, ok := c.fillLeaf(d, l.nind)
	if !ok {
		return false
	}
	h.table[l.indSlot] = leaf
	if l.tier == tierIndirect {
		return true
	}

	bn, ok := c.claim()
	if !ok {
		return false
	}
	top := buf.MkIndexBuf(bn)
	var left = l.ndind
	for i := uint64(0); left > 0; i++ {
		n := util.Min(left, common.NINDIRECT)
		leaf, ok := c.fillLeaf(d, n)
		if !ok {
			return false
		}
		top.BnumPut(i, leaf)
		left -= n
	}
	top.WriteDirect(d)
	h.table[l.dindSlot] = top.Blkno
	return true
}

// Allocate sizes a fresh header for a file of fileSize bytes, claiming its
// data blocks and any index blocks from freeMap. Index blocks are written
// to d as they are filled; the header itself is not written (see
// WriteBack).
//
// Allocate fails with ErrFileTooLarge or ErrNoSpace without claiming any
// blocks. If freeMap runs out part way through anyway (because someone else
// is allocating from it), the blocks claimed so far are returned and the
// header is left empty.
func (h *FileHeader) Allocate(d disk.Disk, freeMap FreeMap, fileSize uint64) error {
	if !h.isEmpty() {
		panic(corruptf("Allocate: header already holds %d bytes", h.numBytes))
	}
	l, ok := tierOf(fileSize)
	if !ok {
		return errors.Wrapf(ErrFileTooLarge, "%d bytes (max %d)",
			fileSize, common.MaxFileSize3)
	}
	need := l.nblocks()
	if free := freeMap.NumFree(); free < need {
		return errors.Wrapf(ErrNoSpace, "need %d blocks, %d free", need, free)
	}

	h.numBytes = fileSize
	h.numSectors = util.RoundUp(fileSize, disk.BlockSize)
	c := &claimer{freeMap: freeMap}
	if !h.allocBlocks(d, c, l) {
		util.DPrintf(1, "Allocate: ran out after %d of %d blocks\n",
			len(c.claimed), need)
		c.undo()
		*h = FileHeader{}
		return errors.Wrapf(ErrNoSpace, "need %d blocks", need)
	}
	util.DPrintf(3, "Allocate: %d bytes, tier %d, %d blocks\n",
		fileSize, l.tier, need)
	return nil
}

// walk visits every block the header owns, data blocks in file order and
// then index blocks, reading each index block once.
func (h *FileHeader) walk(d disk.Disk, data func(common.Bnum), index func(common.Bnum)) {
	l := h.layout()
	for i := uint64(0); i < l.ndirect; i++ {
		data(h.table[i])
	}
	if l.tier == tierDirect {
		return
	}

	leaf := buf.ReadIndexBuf(d, h.table[l.indSlot])
	for _, bn := range leaf.Bnums(l.nind) {
		data(bn)
	}
	var leaves []common.Bnum
	if l.tier == tierDoubleIndirect {
		top := buf.ReadIndexBuf(d, h.table[l.dindSlot])
		leaves = top.Bnums(l.nleaves())
		var left = l.ndind
		for _, lbn := range leaves {
			n := util.Min(left, common.NINDIRECT)
			for _, bn := range buf.ReadIndexBuf(d, lbn).Bnums(n) {
				data(bn)
			}
			left -= n
		}
	}

	index(h.table[l.indSlot])
	if l.tier == tierDoubleIndirect {
		for _, lbn := range leaves {
			index(lbn)
		}
		index(h.table[l.dindSlot])
	}
}

func release(freeMap FreeMap, bn common.Bnum) {
	if bn == common.NULLBNUM || !freeMap.IsUsed(bn) {
		panic(corruptf("free block %d: not in use", bn))
	}
	freeMap.FreeNum(bn)
}

// Deallocate returns every data and index block of the file to freeMap.
//
// Each block must be marked used; finding one that is not means the header
// or the map is corrupt, and Deallocate panics with an error wrapping
// ErrCorrupt. The header is not cleared, so it must be deallocated exactly
// once.
func (h *FileHeader) Deallocate(d disk.Disk, freeMap FreeMap) {
	var n uint64
	free := func(bn common.Bnum) {
		release(freeMap, bn)
		n++
	}
	h.walk(d, free, free)
	util.DPrintf(3, "Deallocate: %d bytes, %d blocks\n", h.numBytes, n)
}
