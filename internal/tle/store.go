package tle

import (
	"sync/atomic"
	"time"
)

// Store provides lock-free read access to the current TLE dataset. Readers
// (request handlers, streams) call Get or Entry on every request; the single
// refresh goroutine replaces the dataset wholesale with Set.
type Store struct {
	dataset atomic.Pointer[TLEDataset]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *TLEDataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset.
func (s *Store) Set(ds *TLEDataset) {
	s.dataset.Store(ds)
}

// Entry returns the TLE entry for a NORAD ID from the current dataset.
// The second return is false when no dataset is loaded or the satellite is
// not in it.
func (s *Store) Entry(noradID int) (TLEEntry, bool) {
	ds := s.dataset.Load()
	if ds == nil {
		return TLEEntry{}, false
	}
	return ds.Find(noradID)
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}
