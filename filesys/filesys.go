// Package filesys is a flat file store over file headers.
//
// A file is named by its inode number, the block that holds its header.
// There are no directories. Files have the size they were created with.
//
// Operations on one file are serialized by a per-file lock; operations on
// different files run in parallel and share the free map, which has its own
// lock. Whether a block is a file is decided by the header map, and only
// while holding that block's lock.
package filesys

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-filehdr/alloc"
	"github.com/mit-pdos/go-filehdr/common"
	"github.com/mit-pdos/go-filehdr/filehdr"
	"github.com/mit-pdos/go-filehdr/lockmap"
	"github.com/mit-pdos/go-filehdr/util"
)

var (
	ErrNotFormatted = errors.New("disk is not formatted")
	ErrNoFile       = errors.New("no such file")
	ErrTooBig       = errors.New("write past end of file")
)

type FileSys struct {
	d       disk.Disk
	sb      super
	freeMap *alloc.Alloc
	hdrMap  *alloc.Alloc // blocks that hold a live file's header
	bmapMu  *sync.Mutex  // orders bitmap flushes
	locks   *lockmap.LockMap
}

type Stat struct {
	Size      uint64 // blocks on the disk
	Free      uint64 // free blocks
	DataStart common.Bnum
}

func mkFileSys(d disk.Disk, sb super, freeMap *alloc.Alloc, hdrMap *alloc.Alloc) *FileSys {
	return &FileSys{
		d:       d,
		sb:      sb,
		freeMap: freeMap,
		hdrMap:  hdrMap,
		bmapMu:  new(sync.Mutex),
		locks:   lockmap.MkLockMap(),
	}
}

// Format lays out an empty file system over all of d.
func Format(d disk.Disk) (*FileSys, error) {
	sb := mkSuper(d.Size())
	if sb.dataStart() >= sb.size {
		return nil, errors.Errorf("disk of %d blocks is too small", sb.size)
	}
	freeMap := alloc.MkAlloc(make([]byte, sb.nbitmap*disk.BlockSize))
	for bn := uint64(0); bn < sb.dataStart(); bn++ {
		freeMap.MarkUsed(bn)
	}
	// the bitmap's tail covers blocks past the end of the disk
	for bn := sb.size; bn < sb.nbitmap*common.NBITBLOCK; bn++ {
		freeMap.MarkUsed(bn)
	}

	hdrMap := alloc.MkAlloc(make([]byte, sb.nbitmap*disk.BlockSize))

	fs := mkFileSys(d, sb, freeMap, hdrMap)
	d.Write(SUPERBLK, sb.encode())
	fs.flushBitmap()
	util.DPrintf(1, "Format: %d blocks, %d bitmap blocks, %d free\n",
		sb.size, sb.nbitmap, freeMap.NumFree())
	return fs, nil
}

// Mount loads a file system that Format wrote to d.
func Mount(d disk.Disk) (*FileSys, error) {
	sb, ok := decodeSuper(d.Read(SUPERBLK))
	if !ok {
		return nil, ErrNotFormatted
	}
	if sb.size != d.Size() || sb.nbitmap != mkSuper(sb.size).nbitmap {
		return nil, errors.Errorf("superblock says %d blocks (%d bitmap), disk has %d",
			sb.size, sb.nbitmap, d.Size())
	}
	freeMap := alloc.MkAlloc(readBitmap(d, BITMAPSTART, sb.nbitmap))
	hdrMap := alloc.MkAlloc(readBitmap(d, sb.hdrmapStart(), sb.nbitmap))
	fs := mkFileSys(d, sb, freeMap, hdrMap)
	util.DPrintf(1, "Mount: %d blocks, %d free\n", sb.size, fs.freeMap.NumFree())
	return fs, nil
}

func readBitmap(d disk.Disk, start common.Bnum, n uint64) []byte {
	bitmap := make([]byte, 0, n*disk.BlockSize)
	for i := uint64(0); i < n; i++ {
		bitmap = append(bitmap, d.Read(start+i)...)
	}
	return bitmap
}

func (fs *FileSys) writeBitmap(start common.Bnum, bitmap []byte) {
	for i := uint64(0); i < fs.sb.nbitmap; i++ {
		fs.d.Write(start+i, bitmap[i*disk.BlockSize:(i+1)*disk.BlockSize])
	}
}

// flushBitmap writes the free map and the header map
func (fs *FileSys) flushBitmap() {
	fs.bmapMu.Lock()
	fs.writeBitmap(BITMAPSTART, fs.freeMap.Bitmap())
	fs.writeBitmap(fs.sb.hdrmapStart(), fs.hdrMap.Bitmap())
	fs.d.Barrier()
	fs.bmapMu.Unlock()
}

func (fs *FileSys) Statfs() Stat {
	return Stat{
		Size:      fs.sb.size,
		Free:      fs.freeMap.NumFree(),
		DataStart: fs.sb.dataStart(),
	}
}

// checkInum reports whether inum names a live file. The caller must hold
// inum's lock.
func (fs *FileSys) checkInum(inum common.Inum) error {
	if inum < fs.sb.dataStart() || inum >= fs.sb.size || !fs.hdrMap.IsUsed(inum) {
		return errors.Wrapf(ErrNoFile, "inode %d", inum)
	}
	return nil
}

// Create makes a file of size bytes, with every byte zero, and returns its
// inode number.
func (fs *FileSys) Create(size uint64) (common.Inum, error) {
	inum := fs.freeMap.AllocNum()
	if inum == common.NULLINUM {
		return common.NULLINUM, errors.Wrap(filehdr.ErrNoSpace, "no block for header")
	}
	fs.locks.Acquire(inum)
	defer fs.locks.Release(inum)

	h := filehdr.MkFileHeader()
	if err := h.Allocate(fs.d, fs.freeMap, size); err != nil {
		fs.freeMap.FreeNum(inum)
		return common.NULLINUM, err
	}
	zero := make(disk.Block, disk.BlockSize)
	for _, bn := range h.Sectors(fs.d) {
		fs.d.Write(bn, zero)
	}
	h.WriteBack(fs.d, inum)
	fs.hdrMap.MarkUsed(inum)
	fs.flushBitmap()
	util.DPrintf(1, "Create: inode %d, %d bytes\n", inum, size)
	return inum, nil
}

// Remove frees a file's blocks and its header. Open handles on it must not
// be used afterwards.
func (fs *FileSys) Remove(inum common.Inum) error {
	fs.locks.Acquire(inum)
	defer fs.locks.Release(inum)
	if err := fs.checkInum(inum); err != nil {
		return err
	}

	h := filehdr.MkFileHeader()
	h.FetchFrom(fs.d, inum)
	h.Deallocate(fs.d, fs.freeMap)
	filehdr.MkFileHeader().WriteBack(fs.d, inum)
	fs.hdrMap.FreeNum(inum)
	fs.freeMap.FreeNum(inum)
	fs.flushBitmap()
	util.DPrintf(1, "Remove: inode %d\n", inum)
	return nil
}

// Dump prints a file's header and contents to w.
func (fs *FileSys) Dump(inum common.Inum, w io.Writer) error {
	fs.locks.Acquire(inum)
	defer fs.locks.Release(inum)
	if err := fs.checkInum(inum); err != nil {
		return err
	}

	h := filehdr.MkFileHeader()
	h.FetchFrom(fs.d, inum)
	h.Print(fs.d, w)
	return nil
}

// Open loads the header of file inum.
func (fs *FileSys) Open(inum common.Inum) (*File, error) {
	fs.locks.Acquire(inum)
	defer fs.locks.Release(inum)
	if err := fs.checkInum(inum); err != nil {
		return nil, err
	}

	h := filehdr.MkFileHeader()
	h.FetchFrom(fs.d, inum)
	return &File{fs: fs, inum: inum, hdr: h}, nil
}
