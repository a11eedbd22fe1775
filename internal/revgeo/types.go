package revgeo

// Stats：一次 Assign 的统计
type Stats struct {
	Points   int
	Matched  int
	Sentinel int
	MemoHits int
}
