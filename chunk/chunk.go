package chunk

import (
	"fmt"

	"github.com/randalmurphal/blueprint/artifact"
)

// Default group sizes.
const (
	DefaultMaxPerChunk = 3
	DefaultMaxItems    = 8
)

// Policy selects a partitioning strategy.
type Policy string

const (
	// PolicyPerType splits each artifact type independently into fixed-size groups.
	PolicyPerType Policy = "per_type"

	// PolicyGlobal accumulates items across types until a running total is reached.
	PolicyGlobal Policy = "global"
)

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyPerType, "":
		return PolicyPerType, nil
	case PolicyGlobal:
		return PolicyGlobal, nil
	default:
		return "", fmt.Errorf("unknown chunk policy %q", s)
	}
}

// Item is one artifact record tagged with its type.
type Item struct {
	Type   string
	Record artifact.Record
}

// Group is one bounded batch of artifacts submitted together.
type Group struct {
	// Index is the group's position in the plan, starting at 0.
	Index int
	Items []Item
}

// Len returns the number of items in the group.
func (g Group) Len() int {
	return len(g.Items)
}

// Type returns the artifact type when every item shares it, or "".
func (g Group) Type() string {
	if len(g.Items) == 0 {
		return ""
	}
	typ := g.Items[0].Type
	for _, it := range g.Items[1:] {
		if it.Type != typ {
			return ""
		}
	}
	return typ
}

// Records returns the group's records in order.
func (g Group) Records() []artifact.Record {
	out := make([]artifact.Record, len(g.Items))
	for i, it := range g.Items {
		out[i] = it.Record
	}
	return out
}

// Collection regroups the items by type, keeping first-seen type order.
func (g Group) Collection() artifact.Collection {
	var c artifact.Collection
	pos := make(map[string]int)
	for _, it := range g.Items {
		i, ok := pos[it.Type]
		if !ok {
			i = len(c)
			pos[it.Type] = i
			c = append(c, artifact.Set{Type: it.Type})
		}
		c[i].Records = append(c[i].Records, it.Record)
	}
	return c
}

// ByType splits each artifact type into consecutive groups of at most
// maxPerChunk items. Groups never mix types and empty types produce none.
// A non-positive maxPerChunk uses DefaultMaxPerChunk.
func ByType(c artifact.Collection, maxPerChunk int) []Group {
	if maxPerChunk <= 0 {
		maxPerChunk = DefaultMaxPerChunk
	}

	var groups []Group
	for _, set := range c {
		for start := 0; start < len(set.Records); start += maxPerChunk {
			end := min(start+maxPerChunk, len(set.Records))
			items := make([]Item, 0, end-start)
			for _, rec := range set.Records[start:end] {
				items = append(items, Item{Type: set.Type, Record: rec})
			}
			groups = append(groups, Group{Index: len(groups), Items: items})
		}
	}
	return groups
}

// Global flattens the collection in order and closes a group the moment its
// item count reaches maxItems. The final partial group is kept.
// A non-positive maxItems uses DefaultMaxItems.
func Global(c artifact.Collection, maxItems int) []Group {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	var groups []Group
	var current []Item
	for _, set := range c {
		for _, rec := range set.Records {
			current = append(current, Item{Type: set.Type, Record: rec})
			if len(current) >= maxItems {
				groups = append(groups, Group{Index: len(groups), Items: current})
				current = nil
			}
		}
	}
	if len(current) > 0 {
		groups = append(groups, Group{Index: len(groups), Items: current})
	}
	return groups
}

// Plan partitions c with the given policy. size is max_per_chunk for
// PolicyPerType and max_items for PolicyGlobal.
func Plan(policy Policy, c artifact.Collection, size int) []Group {
	if policy == PolicyGlobal {
		return Global(c, size)
	}
	return ByType(c, size)
}
