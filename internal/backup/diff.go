package backup

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/fablekeep/internal/canon"
)

// MaxDiffPaths caps the paths reported for a slot conflict.
const MaxDiffPaths = 20

// DiffPaths lists the paths at which a and b differ, at most limit of them,
// in traversal order. Both values are normalized first so key order and
// number spelling never count as differences. Paths look like
// "characters[1].heart"; a difference at the root is reported as ".".
func DiffPaths(a, b any, limit int) []string {
	na, errA := canon.Normalize(a)
	nb, errB := canon.Normalize(b)
	if errA != nil || errB != nil {
		return []string{"."}
	}
	r := &pathReporter{limit: limit}
	cmp.Equal(na, nb, cmp.Reporter(r))
	return r.paths
}

// pathReporter collects the formatted path of every unequal leaf.
type pathReporter struct {
	path  cmp.Path
	paths []string
	limit int
}

func (r *pathReporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *pathReporter) Report(rs cmp.Result) {
	if rs.Equal() || len(r.paths) >= r.limit {
		return
	}
	p := formatPath(r.path)
	if n := len(r.paths); n > 0 && r.paths[n-1] == p {
		return
	}
	r.paths = append(r.paths, p)
}

func (r *pathReporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

func formatPath(path cmp.Path) string {
	var b strings.Builder
	for _, step := range path {
		switch s := step.(type) {
		case cmp.MapIndex:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(fmt.Sprint(s.Key().Interface()))
		case cmp.SliceIndex:
			ix, iy := s.SplitKeys()
			index := ix
			if index < 0 {
				index = iy
			}
			fmt.Fprintf(&b, "[%d]", index)
		}
	}
	if b.Len() == 0 {
		return "."
	}
	return b.String()
}
