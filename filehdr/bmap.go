package filehdr

import (
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-filehdr/buf"
	"github.com/mit-pdos/go-filehdr/common"
)

// ByteToSector returns the disk block holding byte offset of the file,
// reading up to two index blocks to find it.
//
// offset must be less than FileLength; bounds checking is the caller's job
// and an offset past the end panics.
func (h *FileHeader) ByteToSector(d disk.Disk, offset uint64) common.Bnum {
	if offset >= h.numBytes {
		panic(corruptf("ByteToSector: offset %d past length %d",
			offset, h.numBytes))
	}
	l := h.layout()
	sector := offset / disk.BlockSize
	if sector < l.ndirect {
		return h.table[sector]
	}
	sector -= l.ndirect
	if sector < l.nind {
		leaf := buf.ReadIndexBuf(d, h.table[l.indSlot])
		return leaf.BnumGet(sector)
	}
	sector -= l.nind
	top := buf.ReadIndexBuf(d, h.table[l.dindSlot])
	leaf := buf.ReadIndexBuf(d, top.BnumGet(sector/common.NINDIRECT))
	return leaf.BnumGet(sector % common.NINDIRECT)
}

// Sectors lists the file's data blocks in file order.
func (h *FileHeader) Sectors(d disk.Disk) []common.Bnum {
	bns := make([]common.Bnum, 0, h.numSectors)
	h.walk(d, func(bn common.Bnum) { bns = append(bns, bn) },
		func(common.Bnum) {})
	return bns
}
