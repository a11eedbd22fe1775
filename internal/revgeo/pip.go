package revgeo

import (
	"math"

	"github.com/paulmach/orb"
)

// boundaryEps is the tolerance, in squared degrees, for a point to count as lying on an edge.
const boundaryEps = 1e-18

// containsStrict：点在外环内、不在任何洞内、且不在任何环的边上
// 约束：恰在边上的点不属于任何多边形，相邻区域的公共边不会重复命中
func containsStrict(g orb.Geometry, pt orb.Point) bool {
	switch p := g.(type) {
	case orb.Polygon:
		return polygonContains(p, pt)
	case orb.MultiPolygon:
		for _, poly := range p {
			if polygonContains(poly, pt) {
				return true
			}
		}
	}
	return false
}

func polygonContains(poly orb.Polygon, pt orb.Point) bool {
	if len(poly) == 0 {
		return false
	}
	for _, r := range poly {
		if onBoundary(pt, r) {
			return false
		}
	}
	if !ringContains(poly[0], pt) {
		return false
	}
	for _, hole := range poly[1:] {
		if ringContains(hole, pt) {
			return false
		}
	}
	return true
}

// ringContains：奇偶射线法；环可闭合也可不闭合
func ringContains(ring orb.Ring, pt orb.Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt[0], pt[1]
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func onBoundary(pt orb.Point, ring orb.Ring) bool {
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if onSegment(pt, ring[j], ring[i]) {
			return true
		}
	}
	return false
}

func onSegment(p, a, b orb.Point) bool {
	if p[0] < math.Min(a[0], b[0]) || p[0] > math.Max(a[0], b[0]) ||
		p[1] < math.Min(a[1], b[1]) || p[1] > math.Max(a[1], b[1]) {
		return false
	}
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	return cross*cross <= boundaryEps*((b[0]-a[0])*(b[0]-a[0])+(b[1]-a[1])*(b[1]-a[1]))
}
