package stm

import (
	"bytes"
	"sync"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
)

const btreeDegree = 32

// BTreeStore is a Store which keeps its keys ordered in a b-tree guarded by a single RWMutex. It is slower than
// ShardedStore under write contention but supports ordered iteration with Ascend.
type BTreeStore struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

func NewBTreeStore() *BTreeStore {
	return &BTreeStore{tree: btree.New(btreeDegree)}
}

type btreeItem struct {
	key []byte
	sv  StoredValue
}

func (it *btreeItem) Less(than btree.Item) bool {
	return bytes.Compare(it.key, than.(*btreeItem).key) < 0
}

func (s *BTreeStore) Get(key []byte) (StoredValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item := s.tree.Get(&btreeItem{key: key})
	if item == nil {
		return StoredValue{}, false
	}
	return item.(*btreeItem).sv, true
}

func (s *BTreeStore) Set(key []byte, value primitive.Value, version Version) {
	k := make([]byte, len(key))
	copy(k, key)
	item := &btreeItem{key: k, sv: StoredValue{Value: value, Version: version}}
	s.mu.Lock()
	s.tree.ReplaceOrInsert(item)
	s.mu.Unlock()
}

func (s *BTreeStore) Bump(key []byte, value primitive.Value) Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	var version Version
	if item := s.tree.Get(&btreeItem{key: key}); item != nil {
		version = item.(*btreeItem).sv.Version
	}
	version++
	k := make([]byte, len(key))
	copy(k, key)
	s.tree.ReplaceOrInsert(&btreeItem{key: k, sv: StoredValue{Value: value, Version: version}})
	return version
}

func (s *BTreeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Ascend calls fn for every key >= start in ascending order until fn returns false. fn must not call back into
// the store.
func (s *BTreeStore) Ascend(start []byte, fn func(key []byte, sv StoredValue) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.tree.AscendGreaterOrEqual(&btreeItem{key: start}, func(i btree.Item) bool {
		item := i.(*btreeItem)
		return fn(item.key, item.sv)
	})
}
