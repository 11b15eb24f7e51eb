// Package pool holds the records scraped from the DeDust pools page and the
// snapshot that wraps them on disk.
package pool

import (
	"strings"
	"time"
)

// TimestampLayout is the local-time layout used for Snapshot.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// stableTag is rendered under the pair name for stable-swap pools.
const stableTag = "STABLE"

// Record is one row of the pools table. Values are display text taken
// verbatim from the page ("$1,234", "5.2%").
type Record struct {
	Name   string `json:"name"`
	TVL    string `json:"tvl"`
	Volume string `json:"volume"`
	Fees   string `json:"fees"`
	APR    string `json:"apr"`
}

// Snapshot is one timestamped capture of all pools.
type Snapshot struct {
	Timestamp string   `json:"timestamp"`
	Pools     []Record `json:"pools"`
}

// NewSnapshot stamps records with t formatted in TimestampLayout.
func NewSnapshot(t time.Time, records []Record) Snapshot {
	if records == nil {
		records = []Record{}
	}
	return Snapshot{
		Timestamp: t.Format(TimestampLayout),
		Pools:     records,
	}
}

// Find returns the first pool whose name equals name exactly.
func (s Snapshot) Find(name string) (Record, bool) {
	for _, p := range s.Pools {
		if p.Name == name {
			return p, true
		}
	}
	return Record{}, false
}

// Time parses the snapshot timestamp in local time.
func (s Snapshot) Time() (time.Time, error) {
	return ParseTimestamp(s.Timestamp)
}

// ParseTimestamp parses a TimestampLayout string in the local zone.
func ParseTimestamp(v string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, v, time.Local)
}

// CleanName removes the STABLE tag the page renders on its own line under
// the pair name. Any other text is kept as rendered.
func CleanName(raw string) string {
	return strings.ReplaceAll(raw, "\n"+stableTag, "")
}
