package buf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-filehdr/common"
)

func TestIndexBlockFillsBlock(t *testing.T) {
	assert.Equal(t, disk.BlockSize, common.NINDIRECT*common.BNUMSZ,
		"an index block should be exactly one block of pointers")
}

func TestBnumPutGet(t *testing.T) {
	assert := assert.New(t)
	b := MkIndexBuf(7)
	b.BnumPut(0, 42)
	b.BnumPut(common.NINDIRECT-1, 1<<40)
	assert.Equal(common.Bnum(42), b.BnumGet(0))
	assert.Equal(common.Bnum(0), b.BnumGet(1))
	assert.Equal(common.Bnum(1<<40), b.BnumGet(common.NINDIRECT-1))
	assert.Equal(byte(42), b.Data[0], "block numbers are little-endian")
}

func TestBnumOutOfRange(t *testing.T) {
	b := MkIndexBuf(7)
	assert.Panics(t, func() { b.BnumGet(common.NINDIRECT) })
	assert.Panics(t, func() { b.BnumPut(common.NINDIRECT, 1) })
}

func TestWriteDirectRead(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(16)
	b := MkIndexBuf(3)
	for i := uint64(0); i < 10; i++ {
		b.BnumPut(i, 100+i)
	}
	b.WriteDirect(d)

	b2 := ReadIndexBuf(d, 3)
	assert.Equal(b.Data, b2.Data)
	nums := b2.Bnums(11)
	assert.Equal(uint64(100), nums[0])
	assert.Equal(uint64(109), nums[9])
	assert.Equal(uint64(0), nums[10])
}

func TestReadNullPanics(t *testing.T) {
	d := disk.NewMemDisk(4)
	assert.Panics(t, func() { ReadIndexBuf(d, common.NULLBNUM) })
}
