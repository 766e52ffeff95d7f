package detect

import (
	"image"
	"math"
	"sort"
)

// groupEps controls how close two candidate windows must be to count as
// neighbors, matching the classifier's native grouping tolerance.
const groupEps = 0.2

// groupRegions clusters raw candidate windows into accepted regions. Windows
// are merged when their positions and sizes differ by less than groupEps of
// their size; each cluster is averaged into one box carrying its neighbor
// count. Clusters smaller than minNeighbors are suppressed, and merged boxes
// with a side below minSize are dropped.
func groupRegions(raw []image.Rectangle, minNeighbors, minSize int) []Region {
	if len(raw) == 0 {
		return []Region{}
	}
	if minNeighbors < 0 {
		minNeighbors = 0
	}

	parent := make([]int, len(raw))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < len(raw); i++ {
		for j := i + 1; j < len(raw); j++ {
			if similarRects(raw[i], raw[j]) {
				union(i, j)
			}
		}
	}

	type cluster struct {
		x, y, w, h int // sums
		count      int
	}
	clusters := make(map[int]*cluster)
	for i, r := range raw {
		root := find(i)
		c, ok := clusters[root]
		if !ok {
			c = &cluster{}
			clusters[root] = c
		}
		c.x += r.Min.X
		c.y += r.Min.Y
		c.w += r.Dx()
		c.h += r.Dy()
		c.count++
	}

	regions := make([]Region, 0, len(clusters))
	for _, c := range clusters {
		if c.count < minNeighbors {
			continue
		}
		reg := Region{
			X:         c.x / c.count,
			Y:         c.y / c.count,
			Width:     c.w / c.count,
			Height:    c.h / c.count,
			Neighbors: c.count,
		}
		if reg.Width < minSize || reg.Height < minSize {
			continue
		}
		regions = append(regions, reg)
	}

	sort.Slice(regions, func(i, j int) bool {
		if regions[i].X != regions[j].X {
			return regions[i].X < regions[j].X
		}
		return regions[i].Y < regions[j].Y
	})

	return regions
}

// similarRects reports whether two candidate windows are close enough in
// position and size to belong to the same cluster.
func similarRects(a, b image.Rectangle) bool {
	delta := groupEps * 0.5 * float64(min(a.Dx(), b.Dx())+min(a.Dy(), b.Dy()))

	return math.Abs(float64(a.Min.X-b.Min.X)) <= delta &&
		math.Abs(float64(a.Min.Y-b.Min.Y)) <= delta &&
		math.Abs(float64(a.Max.X-b.Max.X)) <= delta &&
		math.Abs(float64(a.Max.Y-b.Max.Y)) <= delta
}
