// lockmap is a sharded map of per-file locks.
//
// The API is as if there were a lock for every file (named by the block
// holding its header); LockMap.Acquire(inum) takes the lock for inum and
// LockMap.Release(inum) gives it back. Only locks that are held or waited
// for take up memory. Shard i is responsible for all inum such that
// inum % NSHARD = i, so files in different shards never contend on the
// shard mutex.
package lockmap

import (
	"sync"

	"github.com/mit-pdos/go-filehdr/common"
)

type lockState struct {
	held    bool
	cond    *sync.Cond
	waiters uint64
}

type lockShard struct {
	mu    *sync.Mutex
	state map[common.Inum]*lockState
}

func mkLockShard() *lockShard {
	return &lockShard{
		mu:    new(sync.Mutex),
		state: make(map[common.Inum]*lockState),
	}
}

func (shard *lockShard) acquire(inum common.Inum) {
	shard.mu.Lock()
	state, ok := shard.state[inum]
	if !ok {
		state = &lockState{cond: sync.NewCond(shard.mu)}
		shard.state[inum] = state
	}
	for state.held {
		state.waiters += 1
		state.cond.Wait()
		state.waiters -= 1
	}
	state.held = true
	shard.mu.Unlock()
}

func (shard *lockShard) release(inum common.Inum) {
	shard.mu.Lock()
	state, ok := shard.state[inum]
	if !ok || !state.held {
		panic("lockmap: release of unheld lock")
	}
	state.held = false
	if state.waiters > 0 {
		state.cond.Signal()
	} else {
		delete(shard.state, inum)
	}
	shard.mu.Unlock()
}

const NSHARD uint64 = 43

type LockMap struct {
	shards []*lockShard
}

func MkLockMap() *LockMap {
	shards := make([]*lockShard, NSHARD)
	for i := range shards {
		shards[i] = mkLockShard()
	}
	return &LockMap{shards: shards}
}

func (lmap *LockMap) Acquire(inum common.Inum) {
	lmap.shards[inum%NSHARD].acquire(inum)
}

func (lmap *LockMap) Release(inum common.Inum) {
	lmap.shards[inum%NSHARD].release(inum)
}
