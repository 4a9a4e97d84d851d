package filehdr

import (
	"fmt"
	"io"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-filehdr/common"
	"github.com/mit-pdos/go-filehdr/util"
)

// Print writes the header's block table and the file's contents to w, one
// line per data block. Printable ASCII is written as is and other bytes as
// \xx.
func (h *FileHeader) Print(d disk.Disk, w io.Writer) {
	l := h.layout()
	fmt.Fprintf(w, "FileHeader contents.  File size: %d.  File blocks:\n",
		h.numBytes)
	for i := uint64(0); i < l.nslots(); i++ {
		fmt.Fprintf(w, "%d ", h.table[i])
	}
	fmt.Fprintf(w, "\n")

	var data []common.Bnum
	var index []common.Bnum
	h.walk(d,
		func(bn common.Bnum) { data = append(data, bn) },
		func(bn common.Bnum) { index = append(index, bn) })
	if len(index) > 0 {
		fmt.Fprintf(w, "Index blocks:\n")
		for _, bn := range index {
			fmt.Fprintf(w, "%d ", bn)
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "File contents:\n")
	var left = h.numBytes
	for _, bn := range data {
		blk := d.Read(bn)
		n := util.Min(left, disk.BlockSize)
		for _, c := range blk[:n] {
			if '\040' <= c && c <= '\176' {
				fmt.Fprintf(w, "%c", c)
			} else {
				fmt.Fprintf(w, "\\%x", c)
			}
		}
		fmt.Fprintf(w, "\n")
		left -= n
	}
}
