package filesys

import (
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-filehdr/common"
	"github.com/mit-pdos/go-filehdr/util"
)

const magic uint64 = 0x31726468656c6966 // "filehdr1"

const (
	SUPERBLK    common.Bnum = 0
	BITMAPSTART common.Bnum = 1
)

// super describes the disk layout: the superblock in block 0, then nbitmap
// blocks of free map, then nbitmap blocks of header map, then files. Bit n
// of the header map is set iff block n holds the header of a live file.
type super struct {
	size    uint64
	nbitmap uint64
}

func mkSuper(size uint64) super {
	return super{
		size:    size,
		nbitmap: util.RoundUp(size, common.NBITBLOCK),
	}
}

func (sb super) hdrmapStart() common.Bnum {
	return BITMAPSTART + sb.nbitmap
}

// dataStart is the first block that can belong to a file
func (sb super) dataStart() common.Bnum {
	return sb.hdrmapStart() + sb.nbitmap
}

func (sb super) encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(magic)
	enc.PutInt(sb.size)
	enc.PutInt(sb.nbitmap)
	return enc.Finish()
}

func decodeSuper(blk disk.Block) (super, bool) {
	dec := marshal.NewDec(blk)
	if dec.GetInt() != magic {
		return super{}, false
	}
	sb := super{}
	sb.size = dec.GetInt()
	sb.nbitmap = dec.GetInt()
	return sb, true
}
