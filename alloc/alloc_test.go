package alloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPopCnt(t *testing.T) {
	assert.Equal(t, uint64(0), popCnt(0))
	assert.Equal(t, uint64(1), popCnt(1))
	assert.Equal(t, uint64(1), popCnt(2))
	assert.Equal(t, uint64(2), popCnt(3))
	assert.Equal(t, uint64(8), popCnt(255))
}

func TestAlloc(t *testing.T) {
	assert := assert.New(t)
	max := uint64(32)
	a := MkMaxAlloc(max)

	assert.Equal(max-1, a.NumFree(), "everything (but 0) should be initially free")

	n := a.AllocNum()
	assert.NotEqual(uint64(0), n, "should not allocate 0")
	assert.True(a.IsUsed(n))

	a.MarkUsed(n + 1)
	n2 := a.AllocNum()
	assert.NotEqual(n+1, n2, "should not allocate something marked used")

	assert.Equal(max-4, a.NumFree(), "should have used 4 items")

	a.FreeNum(n)
	a.FreeNum(n2)
	assert.Equal(max-2, a.NumFree(), "should have freed")
	assert.False(a.IsUsed(n))
}

func TestAllocExhaust(t *testing.T) {
	assert := assert.New(t)
	a := MkMaxAlloc(16)
	seen := make(map[uint64]bool)
	for i := 0; i < 15; i++ {
		n := a.AllocNum()
		assert.NotEqual(uint64(0), n)
		assert.False(seen[n], "allocated %d twice", n)
		seen[n] = true
	}
	assert.Equal(uint64(0), a.NumFree())
	assert.Equal(uint64(0), a.AllocNum(), "full allocator should return 0")

	a.FreeNum(7)
	assert.Equal(uint64(7), a.AllocNum(), "only 7 is free")
}

func TestAllocFromBitmap(t *testing.T) {
	assert := assert.New(t)
	bitmap := []byte{0xFE, 0x0F}
	a := MkAlloc(bitmap)
	assert.True(a.IsUsed(0), "0 is always reserved")
	assert.Equal(uint64(4), a.NumFree())
	assert.Equal([]byte{0xFF, 0x0F}, a.Bitmap())
	assert.False(a.IsUsed(100), "out of range is not in use")
}

func TestFreeZeroPanics(t *testing.T) {
	a := MkMaxAlloc(8)
	assert.Panics(t, func() { a.FreeNum(0) })
	assert.Panics(t, func() { a.FreeNum(8) })
}

func TestAllocConcurrent(t *testing.T) {
	a := MkMaxAlloc(1024)
	const nthread = 8
	got := make([][]uint64, nthread)
	var wg sync.WaitGroup
	wg.Add(nthread)
	for i := 0; i < nthread; i++ {
		i := i
		go func() {
			for j := 0; j < 100; j++ {
				got[i] = append(got[i], a.AllocNum())
			}
			wg.Done()
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, nums := range got {
		for _, n := range nums {
			assert.NotEqual(t, uint64(0), n)
			assert.False(t, seen[n], "%d handed out twice", n)
			seen[n] = true
		}
	}
	assert.Equal(t, uint64(1023-nthread*100), a.NumFree())
}
