package blkdev

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"
)

func mkBlock(b byte) disk.Block {
	block := make(disk.Block, disk.BlockSize)
	for i := range block {
		block[i] = b
	}
	return block
}

func TestMemDevReadWrite(t *testing.T) {
	assert := assert.New(t)
	dev := MkMemDev(8)
	assert.Equal(uint64(8), dev.Size())

	dev.Write(3, mkBlock(3))
	assert.Equal(mkBlock(3), dev.Read(3))
	assert.Equal(mkBlock(0), dev.Read(4))
	assert.Equal(Stats{Reads: 2, Writes: 1}, dev.Stats())

	dev.ResetStats()
	assert.Equal(Stats{}, dev.Stats())
}

func TestWriteShortBlockPanics(t *testing.T) {
	dev := MkMemDev(8)
	assert.Panics(t, func() { dev.Write(1, make([]byte, 10)) })
}

func TestImagePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	dev, err := OpenImage(path, 16)
	require.NoError(t, err)
	dev.Write(5, mkBlock(5))
	dev.Barrier()
	dev.Close()

	dev, err = OpenImage(path, 0)
	require.NoError(t, err)
	defer dev.Close()
	assert.Equal(t, uint64(16), dev.Size(), "size should come from the image")
	assert.Equal(t, mkBlock(5), dev.Read(5))
}

func TestImageExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	dev, err := OpenImage(path, 16)
	require.NoError(t, err)

	_, err = OpenImage(path, 16)
	assert.Equal(t, ErrLocked, errors.Cause(err))

	dev.Close()
	dev, err = OpenImage(path, 16)
	require.NoError(t, err, "lock should be released on Close")
	dev.Close()
}

func TestEmptyImageNeedsSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	_, err := OpenImage(path, 0)
	assert.Error(t, err)
}
