package filehdr

import (
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-filehdr/common"
	"github.com/mit-pdos/go-filehdr/util"
)

type tier uint64

const (
	tierDirect tier = iota + 1
	tierIndirect
	tierDoubleIndirect
)

// layout describes what the table of a header of some length holds.
//
// Data block s (in file order) is table[s] for s < ndirect, then entry
// s-ndirect of the leaf at table[indSlot] for the next nind blocks, and the
// remaining ndind blocks hang below the top index block at table[dindSlot],
// NINDIRECT per leaf.
type layout struct {
	tier     tier
	ndirect  uint64
	indSlot  uint64
	nind     uint64
	dindSlot uint64
	ndind    uint64
}

// tierOf derives the layout of a file of numBytes bytes. It is the only
// place that decides which tier a size falls in.
func tierOf(numBytes uint64) (layout, bool) {
	nsec := util.RoundUp(numBytes, disk.BlockSize)
	if numBytes <= common.MaxFileSize {
		return layout{tier: tierDirect, ndirect: nsec}, true
	}
	if numBytes <= common.MaxFileSize2 {
		return layout{
			tier:    tierIndirect,
			ndirect: common.NDIRECT - 1,
			indSlot: common.NDIRECT - 1,
			nind:    nsec - (common.NDIRECT - 1),
		}, true
	}
	if numBytes <= common.MaxFileSize3 {
		return layout{
			tier:     tierDoubleIndirect,
			ndirect:  common.NDIRECT - 2,
			indSlot:  common.NDIRECT - 2,
			nind:     common.NINDIRECT,
			dindSlot: common.NDIRECT - 1,
			ndind:    nsec - (common.NDIRECT - 2) - common.NINDIRECT,
		}, true
	}
	return layout{}, false
}

func (h *FileHeader) layout() layout {
	l, ok := tierOf(h.numBytes)
	if !ok {
		panic(corruptf("length %d beyond maximum", h.numBytes))
	}
	return l
}

// nleaves is the number of leaf index blocks below the top index block
func (l layout) nleaves() uint64 {
	return util.RoundUp(l.ndind, common.NINDIRECT)
}

// nindex is the number of index blocks the layout needs
func (l layout) nindex() uint64 {
	switch l.tier {
	case tierIndirect:
		return 1
	case tierDoubleIndirect:
		return 2 + l.nleaves()
	}
	return 0
}

// nblocks is every block a file with this layout owns, data and index
func (l layout) nblocks() uint64 {
	return l.ndirect + l.nind + l.ndind + l.nindex()
}

// nslots is the number of table entries in use
func (l layout) nslots() uint64 {
	if l.tier == tierDirect {
		return l.ndirect
	}
	return common.NDIRECT
}
