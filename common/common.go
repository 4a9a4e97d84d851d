package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	NBITBLOCK uint64 = disk.BlockSize * 8

	BNUMSZ  uint64 = 8  // on-disk size of a block number
	HDRMETA uint64 = 16 // space for numBytes and numSectors
	NDIRECT        = (disk.BlockSize - HDRMETA) / BNUMSZ
	// an index block has no size fields, so it fits two more entries
	NINDIRECT = NDIRECT + 2
)

// Largest file each addressing tier can hold, in bytes
const (
	MaxFileSize  = NDIRECT * disk.BlockSize
	MaxFileSize2 = (NDIRECT-1)*disk.BlockSize + NINDIRECT*disk.BlockSize
	MaxFileSize3 = (NDIRECT-2)*disk.BlockSize + NINDIRECT*disk.BlockSize +
		NINDIRECT*NINDIRECT*disk.BlockSize
)

type Inum = uint64
type Bnum = uint64

const (
	NULLINUM Inum = 0
	NULLBNUM Bnum = 0
)
