package filesys

import (
	"io"

	"github.com/pkg/errors"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-filehdr/common"
	"github.com/mit-pdos/go-filehdr/filehdr"
	"github.com/mit-pdos/go-filehdr/util"
)

// File is an open file. It implements io.ReaderAt and io.WriterAt over the
// file's fixed length.
type File struct {
	fs   *FileSys
	inum common.Inum
	hdr  *filehdr.FileHeader
}

var _ io.ReaderAt = (*File)(nil)
var _ io.WriterAt = (*File)(nil)

func (f *File) Inum() common.Inum {
	return f.inum
}

func (f *File) Length() uint64 {
	return f.hdr.FileLength()
}

// ReadAt reads up to len(p) bytes at off, returning io.EOF if the file ends
// first.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	f.fs.locks.Acquire(f.inum)
	defer f.fs.locks.Release(f.inum)

	if len(p) == 0 {
		return 0, nil
	}
	length := f.hdr.FileLength()
	pos := uint64(off)
	if pos >= length {
		return 0, io.EOF
	}
	n := util.Min(uint64(len(p)), length-pos)
	var done uint64
	for done < n {
		bn := f.hdr.ByteToSector(f.fs.d, pos+done)
		blk := f.fs.d.Read(bn)
		boff := (pos + done) % disk.BlockSize
		done += uint64(copy(p[done:n], blk[boff:]))
	}
	if n < uint64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// WriteAt writes p at off. Files do not grow: bytes that would land past
// the end are not written and ErrTooBig is returned.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	f.fs.locks.Acquire(f.inum)
	defer f.fs.locks.Release(f.inum)

	length := f.hdr.FileLength()
	pos := uint64(off)
	var n uint64
	if pos < length {
		n = util.Min(uint64(len(p)), length-pos)
	}
	var done uint64
	for done < n {
		bn := f.hdr.ByteToSector(f.fs.d, pos+done)
		boff := (pos + done) % disk.BlockSize
		cnt := util.Min(n-done, disk.BlockSize-boff)
		var blk disk.Block
		if cnt == disk.BlockSize {
			blk = util.CloneByteSlice(p[done : done+cnt])
		} else {
			blk = f.fs.d.Read(bn)
			copy(blk[boff:], p[done:done+cnt])
		}
		f.fs.d.Write(bn, blk)
		done += cnt
	}
	if n < uint64(len(p)) {
		return int(n), errors.Wrapf(ErrTooBig, "inode %d: %d bytes at %d, length %d",
			f.inum, len(p), off, length)
	}
	return int(n), nil
}
