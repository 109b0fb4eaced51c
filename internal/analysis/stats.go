// Package analysis derives aggregate statistics from captured packet records.
package analysis

import (
	"sort"
	"strconv"

	"gosniff/internal/models"
)

// topLimit caps the top-sources and top-ports tables.
const topLimit = 10

// AddressCount is one row of the top-sources table.
type AddressCount struct {
	Address string `json:"address"`
	Count   int    `json:"count"`
}

// PortCount is one row of the top-ports table.
type PortCount struct {
	Port  int `json:"port"`
	Count int `json:"count"`
}

// Stats is a point-in-time aggregate over a history snapshot.
type Stats struct {
	TotalPackets   int            `json:"total_packets"`
	ProtocolCounts map[string]int `json:"protocols"`
	TopSources     []AddressCount `json:"top_sources"`
	TopPorts       []PortCount    `json:"top_ports"`
}

// counter tallies keys and remembers the order each key was first seen, so
// ties can be broken deterministically.
type counter struct {
	counts map[string]int
	first  map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int), first: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, seen := c.counts[key]; !seen {
		c.first[key] = len(c.first)
	}
	c.counts[key]++
}

// top returns up to limit keys sorted by count descending, first-seen order
// among equal counts.
func (c *counter) top(limit int) []string {
	keys := make([]string, 0, len(c.counts))
	for k := range c.counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c.counts[keys[i]] != c.counts[keys[j]] {
			return c.counts[keys[i]] > c.counts[keys[j]]
		}
		return c.first[keys[i]] < c.first[keys[j]]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// Aggregate computes Stats from scratch over the given snapshot. An empty
// snapshot yields zero totals and empty tables, never an error. Calling it
// twice on the same snapshot yields identical output.
func Aggregate(records []models.PacketRecord) Stats {
	stats := Stats{
		ProtocolCounts: make(map[string]int),
		TopSources:     []AddressCount{},
		TopPorts:       []PortCount{},
	}

	sources := newCounter()
	ports := newCounter()

	for _, rec := range records {
		stats.TotalPackets++

		proto := rec.Protocol
		if proto == "" {
			proto = models.ProtocolUnknown
		}
		stats.ProtocolCounts[proto]++

		if rec.SourceAddress != "" && rec.SourceAddress != models.AddressUnknown {
			sources.add(rec.SourceAddress)
		}
		if rec.HasPorts() && rec.SourcePort > 0 {
			ports.add(strconv.Itoa(rec.SourcePort))
		}
	}

	for _, addr := range sources.top(topLimit) {
		stats.TopSources = append(stats.TopSources, AddressCount{Address: addr, Count: sources.counts[addr]})
	}
	for _, p := range ports.top(topLimit) {
		port, _ := strconv.Atoi(p)
		stats.TopPorts = append(stats.TopPorts, PortCount{Port: port, Count: ports.counts[p]})
	}

	return stats
}
