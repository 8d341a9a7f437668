package engine

import (
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/nomi-labs/guardian/moderation"
)

const lockShards = 64

// keyLock serializes evaluations per subject. Keys hash onto a fixed set
// of mutexes, so unrelated subjects rarely contend while the same subject
// is strictly ordered.
type keyLock struct {
	shards [lockShards]sync.Mutex
}

func (l *keyLock) lock(key moderation.UserKey) func() {
	mu := &l.shards[murmur3.Sum64([]byte(key.String()))%lockShards]
	mu.Lock()
	return mu.Unlock
}
