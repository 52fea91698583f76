package tle

import (
	"strings"
	"time"
)

// TLEEntry represents a single satellite's two-line element set.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Age returns how stale the element set is relative to now. Doppler accuracy
// degrades with element-set age, so callers surface this instead of hiding it.
func (e TLEEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.Epoch)
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// TLEDataset represents a complete set of TLE data from a source.
type TLEDataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []TLEEntry
}

// NewDataset builds a TLEDataset from parsed entries, computing the epoch range.
func NewDataset(source string, fetchedAt time.Time, entries []TLEEntry) *TLEDataset {
	ds := &TLEDataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		Satellites: entries,
	}
	if len(entries) > 0 {
		ds.EpochRange = EpochRange{Min: entries[0].Epoch, Max: entries[0].Epoch}
		for _, e := range entries[1:] {
			if e.Epoch.Before(ds.EpochRange.Min) {
				ds.EpochRange.Min = e.Epoch
			}
			if e.Epoch.After(ds.EpochRange.Max) {
				ds.EpochRange.Max = e.Epoch
			}
		}
	}
	return ds
}

// Find returns the entry for the given NORAD ID, if present.
func (ds *TLEDataset) Find(noradID int) (TLEEntry, bool) {
	for _, e := range ds.Satellites {
		if e.NORADID == noradID {
			return e, true
		}
	}
	return TLEEntry{}, false
}

// catalogAliases maps the amateur satellite names this tracker is most often
// pointed at to their NORAD catalog numbers, including common alternate names.
var catalogAliases = map[string]int{
	"ISS":        25544,
	"ZARYA":      25544,
	"AO-91":      43017,
	"FOX-1B":     43017,
	"RADFXSAT":   43017,
	"FO-29":      24278,
	"JAS-2":      24278,
	"FUNCUBE-1":  39444,
	"AO-73":      39444,
	"LILACSAT-2": 40069,
	"CAS-3H":     40069,
}

// ResolveName maps a well-known satellite name to its NORAD catalog number.
func ResolveName(name string) (int, bool) {
	id, ok := catalogAliases[strings.ToUpper(strings.TrimSpace(name))]
	return id, ok
}
