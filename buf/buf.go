// buf manages index blocks: whole disk blocks that hold nothing but block
// numbers.
package buf

import (
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-filehdr/common"
	"github.com/mit-pdos/go-filehdr/util"
)

// A Buf is the in-memory copy of one index block
type Buf struct {
	Blkno common.Bnum
	Data  disk.Block
}

// MkIndexBuf makes an all-zero index block destined for blkno
func MkIndexBuf(blkno common.Bnum) *Buf {
	b := &Buf{
		Blkno: blkno,
		Data:  make(disk.Block, disk.BlockSize),
	}
	return b
}

// ReadIndexBuf loads the index block stored at blkno
func ReadIndexBuf(d disk.Disk, blkno common.Bnum) *Buf {
	if blkno == common.NULLBNUM {
		panic("ReadIndexBuf: null block")
	}
	blk := d.Read(blkno)
	util.DPrintf(20, "ReadIndexBuf: %d\n", blkno)
	return &Buf{
		Blkno: blkno,
		Data:  blk,
	}
}

func (buf *Buf) WriteDirect(d disk.Disk) {
	util.DPrintf(5, "WriteDirect: index block %d\n", buf.Blkno)
	d.Write(buf.Blkno, buf.Data)
}

func (buf *Buf) BnumGet(i uint64) common.Bnum {
	if i >= common.NINDIRECT {
		panic("BnumGet")
	}
	off := i * common.BNUMSZ
	dec := marshal.NewDec(buf.Data[off : off+common.BNUMSZ])
	return common.Bnum(dec.GetInt())
}

func (buf *Buf) BnumPut(i uint64, v common.Bnum) {
	if i >= common.NINDIRECT {
		panic("BnumPut")
	}
	off := i * common.BNUMSZ
	enc := marshal.NewEnc(common.BNUMSZ)
	enc.PutInt(uint64(v))
	copy(buf.Data[off:off+common.BNUMSZ], enc.Finish())
}

// Bnums decodes the first n entries
func (buf *Buf) Bnums(n uint64) []common.Bnum {
	if n > common.NINDIRECT {
		panic("Bnums")
	}
	dec := marshal.NewDec(buf.Data)
	return dec.GetInts(n)
}
