// Package filehdr implements file headers: the one-block record that says
// how long a file is and which disk blocks hold its data.
//
// The header's table addresses data blocks directly while the file fits.
// Larger files give up the last table slot to a single-indirect index block,
// and larger files still give up the last two slots to a single-indirect and
// a double-indirect index block. Which of the three shapes a header has is a
// function of its length alone (see layout.go).
//
// A header holds no locks. The caller serializes operations on one header;
// the free map and the disk must be safe for concurrent use on their own.
package filehdr

import (
	"github.com/pkg/errors"
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-filehdr/common"
	"github.com/mit-pdos/go-filehdr/util"
)

var (
	// ErrNoSpace means the free map cannot supply all data and index blocks
	// for the requested size. Nothing was allocated.
	ErrNoSpace = errors.New("not enough free blocks")

	// ErrFileTooLarge means the requested size is beyond MaxFileSize3.
	ErrFileTooLarge = errors.New("file too large")

	// ErrCorrupt is carried by panics raised when a header or the free map
	// is found to be inconsistent. It is not returned as an ordinary error.
	ErrCorrupt = errors.New("file header inconsistent")
)

func corruptf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorrupt, format, args...)
}

// FreeMap tracks which disk blocks are in use.
//
// AllocNum must atomically find a free block, mark it used and return it,
// returning NULLBNUM if there is none.
type FreeMap interface {
	AllocNum() common.Bnum
	FreeNum(bn common.Bnum)
	IsUsed(bn common.Bnum) bool
	NumFree() uint64
}

type FileHeader struct {
	numBytes   uint64
	numSectors uint64 // data blocks only, always RoundUp(numBytes, BlockSize)
	table      [common.NDIRECT]common.Bnum
}

func MkFileHeader() *FileHeader {
	return &FileHeader{}
}

func (h *FileHeader) FileLength() uint64 {
	return h.numBytes
}

func (h *FileHeader) NumSectors() uint64 {
	return h.numSectors
}

// Tier reports 1, 2 or 3 for direct, single-indirect and double-indirect
// headers.
func (h *FileHeader) Tier() uint64 {
	return uint64(h.layout().tier)
}

func (h *FileHeader) isEmpty() bool {
	if h.numBytes != 0 {
		return false
	}
	for _, bn := range h.table {
		if bn != common.NULLBNUM {
			return false
		}
	}
	return true
}

func (h *FileHeader) encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(h.numBytes)
	enc.PutInt(h.numSectors)
	enc.PutInts(h.table[:])
	return enc.Finish()
}

func (h *FileHeader) decode(blk disk.Block) {
	dec := marshal.NewDec(blk)
	h.numBytes = dec.GetInt()
	h.numSectors = dec.GetInt()
	copy(h.table[:], dec.GetInts(common.NDIRECT))
}

// FetchFrom loads the header stored in sector. Index blocks are not read.
func (h *FileHeader) FetchFrom(d disk.Disk, sector common.Bnum) {
	blk := d.Read(sector)
	h.decode(blk)
	if h.numBytes > common.MaxFileSize3 ||
		h.numSectors != util.RoundUp(h.numBytes, disk.BlockSize) {
		panic(corruptf("header at %d: %d bytes in %d sectors",
			sector, h.numBytes, h.numSectors))
	}
	util.DPrintf(5, "FetchFrom %d: %d bytes\n", sector, h.numBytes)
}

// WriteBack stores the header in sector. Index blocks are written when they
// are allocated, so only the header block is written here.
func (h *FileHeader) WriteBack(d disk.Disk, sector common.Bnum) {
	util.DPrintf(5, "WriteBack %d: %d bytes\n", sector, h.numBytes)
	d.Write(sector, h.encode())
}
