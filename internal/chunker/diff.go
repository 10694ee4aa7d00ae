package chunker

// DiffStatus classifies how a chunk index changed between an old and a
// new chunk set.
type DiffStatus string

const (
	Unchanged DiffStatus = "unchanged"
	Changed   DiffStatus = "changed"
	New       DiffStatus = "new"
	Deleted   DiffStatus = "deleted"
)

// DiffEntry pairs a chunk index with its classification and the old
// and/or new chunk involved.
type DiffEntry struct {
	ChunkIndex int
	Status     DiffStatus
	Old        *Chunk
	New        *Chunk
}

// Diff classifies every index present in old and/or newChunks:
//   - same index, equal content hash  -> Unchanged
//   - same index, different hash      -> Changed
//   - index only in newChunks         -> New
//   - index only in old               -> Deleted
//
// Every old index is classified exactly once as Unchanged, Changed, or
// Deleted; every new index is classified exactly once as Unchanged,
// Changed, or New.
func Diff(old, newChunks []Chunk) []DiffEntry {
	oldByIdx := make(map[int]*Chunk, len(old))
	for i := range old {
		c := old[i]
		oldByIdx[c.ChunkIndex] = &c
	}
	newByIdx := make(map[int]*Chunk, len(newChunks))
	for i := range newChunks {
		c := newChunks[i]
		newByIdx[c.ChunkIndex] = &c
	}

	maxIdx := -1
	for idx := range oldByIdx {
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	for idx := range newByIdx {
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	var out []DiffEntry
	for idx := 0; idx <= maxIdx; idx++ {
		o, hasOld := oldByIdx[idx]
		n, hasNew := newByIdx[idx]
		switch {
		case hasOld && hasNew:
			if o.ContentHash == n.ContentHash {
				out = append(out, DiffEntry{ChunkIndex: idx, Status: Unchanged, Old: o, New: n})
			} else {
				out = append(out, DiffEntry{ChunkIndex: idx, Status: Changed, Old: o, New: n})
			}
		case hasNew:
			out = append(out, DiffEntry{ChunkIndex: idx, Status: New, New: n})
		case hasOld:
			out = append(out, DiffEntry{ChunkIndex: idx, Status: Deleted, Old: o})
		}
	}
	return out
}

// Counts tallies a diff's entries by status.
type Counts struct {
	Unchanged, Changed, New, Deleted int
}

// CountDiff tallies entries by status.
func CountDiff(entries []DiffEntry) Counts {
	var c Counts
	for _, e := range entries {
		switch e.Status {
		case Unchanged:
			c.Unchanged++
		case Changed:
			c.Changed++
		case New:
			c.New++
		case Deleted:
			c.Deleted++
		}
	}
	return c
}
