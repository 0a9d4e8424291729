package target

import (
	"slices"

	"github.com/vk/projforge/internal/fragment"
)

// Merge compacts targets for reporting. Two targets of the same layout that
// differ in exactly one field are replaced by one target whose field is the
// union of both; this repeats until no pair qualifies. The result is a
// best-effort summary, not a minimal cover.
func Merge(targets []Target) []Target {
	work := slices.Clone(targets)
	slices.SortFunc(work, Compare)
	work = slices.CompactFunc(work, Target.Equal)

	for merged := true; merged; {
		merged = false
	search:
		for i := 0; i < len(work); i++ {
			for j := i + 1; j < len(work); j++ {
				id, ok := oneFieldApart(work[i], work[j])
				if !ok {
					continue
				}
				work[i] = work[i].Clone(fragment.Value{Type: id, Bits: work[j].fields[id]})
				work = slices.Delete(work, j, j+1)
				merged = true
				break search
			}
		}
	}

	slices.SortFunc(work, Compare)
	return work
}

func oneFieldApart(a, b Target) (fragment.ID, bool) {
	if a.layout == nil || b.layout == nil || a.layout.name != b.layout.name {
		return 0, false
	}
	diff := -1
	for _, typ := range a.layout.types {
		if a.fields[typ.ID()] == b.fields[typ.ID()] {
			continue
		}
		if diff >= 0 {
			return 0, false
		}
		diff = int(typ.ID())
	}
	if diff < 0 {
		return 0, false
	}
	return fragment.ID(diff), true
}
