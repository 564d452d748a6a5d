package board

import (
	"sort"

	"github.com/uppership/opsboard/internal/models"
)

// MergeException builds the exception column: packages already in the
// exception status, unioned with flagged-but-not-ignored packages from the
// other statuses. Dedup is by id; the exception-status entry wins on a
// duplicate. Order of the result is fixed by SortDefault afterwards, so the
// merge itself only cares about membership.
func MergeException(exception []*models.Package, others []*models.Package) []*models.Package {
	out := make([]*models.Package, 0, len(exception)+len(others))
	seen := make(map[string]struct{}, len(exception)+len(others))

	for _, p := range exception {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	for _, p := range others {
		if len(p.Flags) == 0 || p.TrackingIgnore {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// SortOrdered sorts the "ordered" column as a FIFO processing queue:
// oldest created_at first, id as the tie-break.
func SortOrdered(pkgs []*models.Package) {
	sort.SliceStable(pkgs, func(i, j int) bool {
		a, b := pkgs[i], pkgs[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
}

// SortDefault orders every non-"ordered" column. Tiers, each breaking ties
// in the next: ignored packages after all others; flagged before unflagged;
// newer activity first; id ascending. The id tail makes the order total and
// deterministic.
func SortDefault(pkgs []*models.Package) {
	sort.SliceStable(pkgs, func(i, j int) bool {
		a, b := pkgs[i], pkgs[j]

		if a.TrackingIgnore != b.TrackingIgnore {
			return !a.TrackingIgnore
		}

		af, bf := len(a.Flags) > 0, len(b.Flags) > 0
		if af != bf {
			return af
		}

		// ISO-8601 строки сравниваются лексикографически; пустая дата
		// считается самой старой.
		ar, br := recency(a), recency(b)
		if ar != br {
			return ar > br
		}

		return a.ID < b.ID
	})
}

func recency(p *models.Package) string {
	if p.TrackingLastUpdate != "" {
		return p.TrackingLastUpdate
	}
	return p.CreatedAt
}

// Column computes the final ordered list for a display status. extras are
// the flagged candidates from other statuses; they are consulted only for
// the exception column.
func Column(status string, primary, extras []*models.Package) []*models.Package {
	switch status {
	case models.StatusException:
		merged := MergeException(primary, extras)
		SortDefault(merged)
		return merged
	case models.StatusOrdered:
		out := append([]*models.Package(nil), primary...)
		SortOrdered(out)
		return out
	default:
		out := append([]*models.Package(nil), primary...)
		SortDefault(out)
		return out
	}
}
