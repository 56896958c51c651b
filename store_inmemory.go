package xrpl

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

type storedTransaction struct {
	tx  Transaction
	seq uint64
}

type InMemoryStore struct {
	accounts map[string][]storedTransaction
	seen     map[string]map[string]struct{}
	nextSeq  uint64
	mu       sync.RWMutex
}

var _ TransactionStore = &InMemoryStore{}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[string][]storedTransaction),
		seen:     make(map[string]map[string]struct{}),
	}
}

func (s *InMemoryStore) AddTransactions(address string, txs ...Transaction) (added int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen, ok := s.seen[address]
	if !ok {
		seen = make(map[string]struct{})
		s.seen[address] = seen
	}

	for _, tx := range txs {
		if tx.Hash == "" {
			err = errors.Errorf("transaction for %s has no hash", address)
			return
		}

		if _, dup := seen[tx.Hash]; dup {
			continue
		}

		seen[tx.Hash] = struct{}{}
		s.nextSeq++
		s.accounts[address] = append(s.accounts[address], storedTransaction{tx: tx, seq: s.nextSeq})
		added++
	}

	return
}

func (s *InMemoryStore) GetTransactions(address string, limit int) (txs []Transaction, err error) {
	s.mu.RLock()
	stored := append([]storedTransaction{}, s.accounts[address]...)
	s.mu.RUnlock()

	sort.SliceStable(stored, func(i, j int) bool {
		if stored[i].tx.LedgerIndex != stored[j].tx.LedgerIndex {
			return stored[i].tx.LedgerIndex > stored[j].tx.LedgerIndex
		}
		return stored[i].seq > stored[j].seq
	})

	if limit > 0 && len(stored) > limit {
		stored = stored[:limit]
	}

	txs = make([]Transaction, len(stored))
	for i, st := range stored {
		txs[i] = st.tx
	}

	return
}

func (s *InMemoryStore) GetTransaction(hash string) (tx Transaction, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, stored := range s.accounts {
		for _, st := range stored {
			if st.tx.Hash == hash {
				return st.tx, nil
			}
		}
	}

	err = errors.Wrapf(ErrTransactionNotFound, "tx not found by hash %s", hash)
	return
}

func (s *InMemoryStore) Close() error {
	return nil
}
