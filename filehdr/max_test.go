package filehdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-filehdr/alloc"
	"github.com/mit-pdos/go-filehdr/common"
	"github.com/mit-pdos/go-filehdr/util"
)

// sparseDisk only stores blocks that have been written, so a maximum-size
// file costs no more memory than its index blocks.
type sparseDisk struct {
	blocks map[uint64]disk.Block
	size   uint64
}

var _ disk.Disk = (*sparseDisk)(nil)

func mkSparseDisk(size uint64) *sparseDisk {
	return &sparseDisk{blocks: make(map[uint64]disk.Block), size: size}
}

func (d *sparseDisk) Read(a uint64) disk.Block {
	if a >= d.size {
		panic("out-of-bounds read")
	}
	blk, ok := d.blocks[a]
	if !ok {
		return make(disk.Block, disk.BlockSize)
	}
	return util.CloneByteSlice(blk)
}

func (d *sparseDisk) ReadTo(a uint64, b disk.Block) {
	copy(b, d.Read(a))
}

func (d *sparseDisk) Write(a uint64, v disk.Block) {
	if a >= d.size {
		panic("out-of-bounds write")
	}
	d.blocks[a] = util.CloneByteSlice(v)
}

func (d *sparseDisk) Size() uint64 { return d.size }

func (d *sparseDisk) Barrier() {}

func (d *sparseDisk) Close() {}

func TestMaxFileSize(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates a quarter million blocks")
	}
	const nblocks uint64 = 264000
	d := mkSparseDisk(nblocks)
	freeMap := alloc.MkMaxAlloc(nblocks)
	initFree := freeMap.NumFree()

	h := MkFileHeader()
	err := h.Allocate(d, freeMap, common.MaxFileSize3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), h.Tier())

	nsec := common.MaxFileSize3 / disk.BlockSize
	nindex := 2 + common.NINDIRECT
	assert.Equal(t, initFree-nsec-nindex, freeMap.NumFree())
	assert.Equal(t, int(nindex), len(d.blocks),
		"only index blocks should have been written")

	seen := make(map[common.Bnum]bool, nsec)
	var data []common.Bnum
	h.walk(d, func(bn common.Bnum) {
		assert.False(t, seen[bn], "block %d used twice", bn)
		seen[bn] = true
		data = append(data, bn)
	}, func(bn common.Bnum) {
		assert.False(t, seen[bn], "index block %d also used", bn)
		seen[bn] = true
	})
	require.Equal(t, int(nsec), len(data))

	for s := uint64(0); s < nsec; s += 997 {
		assert.Equal(t, data[s], h.ByteToSector(d, s*disk.BlockSize))
	}
	assert.Equal(t, data[nsec-1], h.ByteToSector(d, common.MaxFileSize3-1))

	h.Deallocate(d, freeMap)
	assert.Equal(t, initFree, freeMap.NumFree())
}
