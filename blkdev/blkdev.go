// Package blkdev is the block device the file layer runs on.
//
// A Dev wraps a goose disk.Disk so that each Read and Write is atomic with
// respect to other callers, and keeps counts of the I/O it has done. There
// is no atomicity across calls.
package blkdev

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-filehdr/util"
)

// ErrLocked is returned by OpenImage when another Dev holds the image.
var ErrLocked = errors.New("disk image is in use")

var _ disk.Disk = (*Dev)(nil)

type Stats struct {
	Reads  uint64
	Writes uint64
}

type Dev struct {
	mu    *sync.Mutex
	d     disk.Disk
	stats Stats
	lockf *os.File // holds the image lock; nil for in-memory devices
}

func MkDev(d disk.Disk) *Dev {
	return &Dev{
		mu: new(sync.Mutex),
		d:  d,
	}
}

// MkMemDev makes a device backed by a fresh in-memory disk
func MkMemDev(numBlocks uint64) *Dev {
	return MkDev(disk.NewMemDisk(numBlocks))
}

// OpenImage opens (creating if needed) the disk image at path and takes an
// exclusive lock on it. If numBlocks is 0 the size of an existing image is
// used.
func OpenImage(path string, numBlocks uint64) (*Dev, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "open image %s", path)
	}
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, errors.Wrapf(ErrLocked, "image %s", path)
		}
		return nil, errors.Wrapf(err, "lock image %s", path)
	}
	if numBlocks == 0 {
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "stat image %s", path)
		}
		numBlocks = uint64(st.Size) / disk.BlockSize
		if numBlocks == 0 {
			f.Close()
			return nil, errors.Errorf("image %s is empty; give a size", path)
		}
	}
	fd2, err := disk.NewFileDisk(path, numBlocks)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "open file disk %s", path)
	}
	util.DPrintf(1, "OpenImage: %s %d blocks\n", path, numBlocks)
	dev := MkDev(fd2)
	dev.lockf = f
	return dev, nil
}

func (dev *Dev) Read(a uint64) disk.Block {
	dev.mu.Lock()
	blk := dev.d.Read(a)
	dev.stats.Reads++
	dev.mu.Unlock()
	return blk
}

// ReadTo reads the block at a into buf
func (dev *Dev) ReadTo(a uint64, buf disk.Block) {
	if uint64(len(buf)) != disk.BlockSize {
		panic("buffer is not block-sized")
	}
	copy(buf, dev.Read(a))
}

func (dev *Dev) Write(a uint64, v disk.Block) {
	if uint64(len(v)) != disk.BlockSize {
		panic(errors.Errorf("v is not block-sized (%d bytes)", len(v)))
	}
	dev.mu.Lock()
	dev.d.Write(a, v)
	dev.stats.Writes++
	dev.mu.Unlock()
}

func (dev *Dev) Size() uint64 {
	// this never changes so we assume it's safe to run lock-free
	return dev.d.Size()
}

func (dev *Dev) Barrier() {
	dev.mu.Lock()
	dev.d.Barrier()
	dev.mu.Unlock()
}

// Close releases the underlying disk and, for images, the image lock.
func (dev *Dev) Close() {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.d.Close()
	if dev.lockf != nil {
		unix.Flock(int(dev.lockf.Fd()), unix.LOCK_UN)
		dev.lockf.Close()
		dev.lockf = nil
	}
}

func (dev *Dev) Stats() Stats {
	dev.mu.Lock()
	s := dev.stats
	dev.mu.Unlock()
	return s
}

func (dev *Dev) ResetStats() {
	dev.mu.Lock()
	dev.stats = Stats{}
	dev.mu.Unlock()
}
