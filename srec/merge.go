package srec

import "sort"

// mergeRecords sorts decoded records by address and folds adjacent
// ones into maximal contiguous segments (spec.md §4.5). Records is
// only a transient accumulator — the live copy past this point is the
// returned slice.
func mergeRecords(records map[uint32][]byte) []Segment {
	addrs := make([]uint32, 0, len(records))
	for a := range records {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	merged := make([]Segment, 0, len(addrs))
	cur := Segment{Addr: addrs[0], Data: records[addrs[0]]}
	for _, a := range addrs[1:] {
		d := records[a]
		if a == cur.Addr+uint32(len(cur.Data)) {
			cur.Data = append(cur.Data, d...)
			continue
		}
		merged = append(merged, cur)
		cur = Segment{Addr: a, Data: d}
	}
	merged = append(merged, cur)
	return merged
}
