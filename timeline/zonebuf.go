package timeline

import (
	"cmp"
	"fmt"
	"math/bits"
	"sort"
	"time"
	"unsafe"

	"honnef.co/go/zonetrack/mem"
	"honnef.co/go/zonetrack/trace"

	"golang.org/x/exp/slices"
)

const (
	DefaultPageSize = 32 * 1024
	// Budget of a time-sliced update. The last record is always finished, so the budget can be exceeded.
	maxUpdateTime = 10 * time.Millisecond
)

type DistKind uint8

const (
	// DistGap is the distance from an entry's clamped end to the next entry's clamped end.
	DistGap DistKind = iota
	// DistNextPage continues on the next page. It is only found in the sentinel slot of a page.
	DistNextPage
	// DistEndOfPage is found in the sentinel slot of the last page.
	DistEndOfPage
	// DistEndOfZones marks the last entry of the buffer.
	DistEndOfZones
	// DistEndOfRange temporarily marks the last entry of a query range.
	DistEndOfRange
)

func (kind DistKind) String() string {
	switch kind {
	case DistGap:
		return "Gap"
	case DistNextPage:
		return "NextPage"
	case DistEndOfPage:
		return "EndOfPage"
	case DistEndOfZones:
		return "EndOfZones"
	case DistEndOfRange:
		return "EndOfRange"
	default:
		return fmt.Sprintf("DistKind(%d)", kind)
	}
}

// ZoneDist is the link from an entry of the zone buffer to its successor.
type ZoneDist struct {
	Kind DistKind
	// Only meaningful for DistGap
	Gap trace.Timestamp
}

func (d ZoneDist) String() string {
	if d.Kind == DistGap {
		return fmt.Sprintf("Gap(%d)", d.Gap)
	}
	return d.Kind.String()
}

// ZoneInfo is an entry of the zone buffer: a top-level zone, as seen through one context switch record.
type ZoneInfo struct {
	Ref trace.ZoneRef
	// Index of the context switch record the zone was indexed under
	CSIndex int
}

type ContextSwitchRange struct {
	Beg, End int
}

type ZoneRange struct {
	Beg, End int
}

func (r ZoneRange) Len() int { return r.End - r.Beg }

type csIndexRange struct {
	first, last int
}

type zonePage struct {
	infos []ZoneInfo
	// One longer than infos. The last slot is a sentinel that links to the next page.
	dists   []ZoneDist
	fill    int
	csRange csIndexRange
}

// ZoneBuffer is an incrementally built index of the zones that ran on one CPU core, in the order of the core's context
// switch records. Zones are clamped to the record they were indexed under and each entry stores the distance from its
// clamped end to the next entry's, which lets a run of tiny zones be folded without resolving the zones.
//
// Entries are stored in fixed-size pages, so appending never moves existing entries.
type ZoneBuffer struct {
	store    trace.Store
	pageSize int
	shift    uint
	mask     int
	pages    []*zonePage
	cache    mem.AllocationCache[zonePage]
	lut      ThreadLUT

	// Next context switch record to index
	lastCSIndex int
	// Number of leading records that are known to be closed
	validCSCount int
	zoneCount    int
	maxDepth     int
	sliced       bool

	now func() time.Time
}

// NewZoneBuffer returns an empty buffer. pageSize must be a power of two; zero selects DefaultPageSize.
func NewZoneBuffer(store trace.Store, pageSize int) *ZoneBuffer {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 0 || pageSize&(pageSize-1) != 0 {
		panic(fmt.Sprintf("page size %d is not a power of two", pageSize))
	}
	buf := &ZoneBuffer{
		store:    store,
		pageSize: pageSize,
		shift:    uint(bits.TrailingZeros(uint(pageSize))),
		mask:     pageSize - 1,
		now:      time.Now,
	}
	buf.cache.New = func() *zonePage {
		return &zonePage{
			infos: make([]ZoneInfo, pageSize),
			dists: make([]ZoneDist, pageSize+1),
		}
	}
	return buf
}

func (buf *ZoneBuffer) index(g int) (page, offset int) {
	return int(uint(g) >> buf.shift), g & buf.mask
}

func (buf *ZoneBuffer) ZoneInfo(g int) *ZoneInfo {
	if debug && (g < 0 || g >= buf.zoneCount) {
		panic(fmt.Sprintf("zone index %d out of range [0, %d)", g, buf.zoneCount))
	}
	p, o := buf.index(g)
	return &buf.pages[p].infos[o]
}

func (buf *ZoneBuffer) ZoneDist(g int) *ZoneDist {
	p, o := buf.index(g)
	return &buf.pages[p].dists[o]
}

// Zone resolves the zone of entry g.
func (buf *ZoneBuffer) Zone(g int) *trace.Zone {
	return buf.lut.Zone(buf.ZoneInfo(g).Ref)
}

func (buf *ZoneBuffer) PageCount() int { return len(buf.pages) }

func (buf *ZoneBuffer) ZoneCount() int { return buf.zoneCount }

// ProcessedCount returns the number of context switch records that have been indexed.
func (buf *ZoneBuffer) ProcessedCount() int { return buf.lastCSIndex }

// MaxDepth returns the deepest nesting seen in any indexed record.
func (buf *ZoneBuffer) MaxDepth() int { return buf.maxDepth }

// MemoryUsage returns the number of bytes held by the buffer's pages.
func (buf *ZoneBuffer) MemoryUsage() int {
	per := buf.pageSize*int(unsafe.Sizeof(ZoneInfo{})) + (buf.pageSize+1)*int(unsafe.Sizeof(ZoneDist{}))
	return per * len(buf.pages)
}

// HasMoreDataToProcess reports whether the last update ran out of time before reaching the end of the data it was
// given. It does not report closed records that are waiting for open zones; those only make progress when the trace
// changes, so asking for another frame would not help.
func (buf *ZoneBuffer) HasMoreDataToProcess() bool { return buf.sliced }

// Reset discards all entries. Pages are kept for reuse.
func (buf *ZoneBuffer) Reset() {
	for _, page := range buf.pages {
		page.fill = 0
		page.csRange = csIndexRange{}
		buf.cache.Put(page)
	}
	clear(buf.pages)
	buf.pages = buf.pages[:0]
	buf.lastCSIndex = 0
	buf.validCSCount = 0
	buf.zoneCount = 0
	buf.maxDepth = 0
	buf.sliced = false
}

func (buf *ZoneBuffer) addPage() *zonePage {
	page := buf.cache.Get()
	page.fill = 0
	page.csRange = csIndexRange{}
	if n := len(buf.pages); n > 0 {
		buf.pages[n-1].dists[buf.pageSize] = ZoneDist{Kind: DistNextPage}
	}
	page.dists[buf.pageSize] = ZoneDist{Kind: DistEndOfPage}
	buf.pages = append(buf.pages, page)
	return page
}

func (buf *ZoneBuffer) clampedEnd(info *ZoneInfo, cs trace.ContextSwitches) trace.Timestamp {
	return min(buf.store.ZoneEnd(buf.lut.Zone(info.Ref)), cs.AtPtr(info.CSIndex).End)
}

// Update indexes the context switch records that were added or closed since the last call and returns the maximum
// zone depth seen so far. Indexing stops at the first record that is still open, or at a record whose zones are still
// open; that record is retried by the next call. If timeSlice is true, Update returns early once it has used up its
// time budget.
//
// lut must be current for all compressed thread IDs used by cs.
func (buf *ZoneBuffer) Update(lut ThreadLUT, cs trace.ContextSwitches, timeSlice bool) int {
	buf.lut = lut
	buf.sliced = false
	n := cs.Len()
	if buf.lastCSIndex >= n {
		return buf.maxDepth
	}

	prevLast := buf.lastCSIndex
	firstDirty := max(len(buf.pages)-1, 0)
	var prevEnd trace.Timestamp
	if buf.zoneCount > 0 {
		prevEnd = buf.clampedEnd(buf.ZoneInfo(buf.zoneCount-1), cs)
	}

	pre := NewPreprocessor(buf.store, 0, CollapseDynamic)
	depth := 0
	t := buf.now()
	i := buf.lastCSIndex
	for i < n {
		rec := cs.AtPtr(i)
		if !rec.EndValid() {
			break
		}
		if th := lut.Thread(rec.Thread); th != nil {
			depth = max(depth, pre.CalculateMaxZoneDepthInRange(th.Timeline, rec.Start, rec.End))
			if !buf.buildZoneListAt(th.Timeline, rec.Thread, rec.Start, rec.End, i, &prevEnd) {
				break
			}
		}
		i++
		if timeSlice && i-1 > buf.lastCSIndex && i < n && buf.now().Sub(t) > maxUpdateTime {
			buf.sliced = true
			break
		}
	}
	buf.lastCSIndex = i

	for _, page := range buf.pages[firstDirty:] {
		page.csRange = csIndexRange{
			first: page.infos[0].CSIndex,
			last:  page.infos[page.fill-1].CSIndex,
		}
	}
	for buf.validCSCount < n && cs.AtPtr(buf.validCSCount).EndValid() {
		buf.validCSCount++
	}

	if debug && prevLast != buf.lastCSIndex {
		if err := buf.Validate(cs); err != nil {
			panic(err)
		}
	}

	buf.maxDepth = max(buf.maxDepth, depth)
	return buf.maxDepth
}

// buildZoneListAt appends the top-level zones of one thread that intersect [start, end). It reports false, without
// appending anything, if the boundary zones are still open.
func (buf *ZoneBuffer) buildZoneListAt(
	zones trace.Zones,
	thread uint16,
	start, end trace.Timestamp,
	csIndex int,
	prevEnd *trace.Timestamp,
) bool {
	n := zones.Len()
	first := sort.Search(n, func(i int) bool { return buf.store.ZoneEnd(zones.AtPtr(i)) >= start })
	if first == n {
		return true
	}
	last := first + sort.Search(n-first, func(i int) bool { return zones.AtPtr(first+i).Start >= end })
	if first == last {
		return true
	}
	if !zones.AtPtr(first).EndValid() || !zones.AtPtr(last-1).EndValid() {
		return false
	}

	// The very first entry links from a scratch value that is discarded.
	var scratch ZoneDist
	prev := &scratch
	var page *zonePage
	if np := len(buf.pages); np > 0 {
		page = buf.pages[np-1]
		prev = &page.dists[page.fill-1]
	}
	pe := *prevEnd
	for i := first; i < last; i++ {
		if page == nil || page.fill == buf.pageSize {
			page = buf.addPage()
		}
		z := zones.AtPtr(i)
		ce := min(z.End, end)
		page.infos[page.fill] = ZoneInfo{
			Ref:     trace.ZoneRef{Thread: thread, Index: uint32(i)},
			CSIndex: csIndex,
		}
		dist := &page.dists[page.fill]
		*dist = ZoneDist{Kind: DistEndOfZones}
		page.fill++
		buf.zoneCount++

		*prev = ZoneDist{Kind: DistGap, Gap: ce - pe}
		prev = dist
		pe = ce
	}
	*prevEnd = pe
	return true
}

// FindContextSwitchRange returns the closed context switch records that intersect [start, end).
func (buf *ZoneBuffer) FindContextSwitchRange(start, end trace.Timestamp, cs trace.ContextSwitches) ContextSwitchRange {
	n := cs.Len()
	start = max(start, 0)
	beg := sort.Search(n, func(i int) bool { return cs.AtPtr(i).EffectiveEnd() >= start })
	if beg == n {
		return ContextSwitchRange{}
	}
	e := beg + sort.Search(n-beg, func(i int) bool { return cs.AtPtr(beg+i).Start >= end })
	e = min(e, buf.validCSCount)
	beg = min(beg, e)
	return ContextSwitchRange{Beg: beg, End: e}
}

func (buf *ZoneBuffer) lowerBound(csIndex int) (int, bool) {
	p, _ := slices.BinarySearchFunc(buf.pages, csIndex, func(page *zonePage, t int) int {
		return cmp.Compare(page.csRange.last, t)
	})
	if p == len(buf.pages) {
		return 0, false
	}
	page := buf.pages[p]
	o, _ := slices.BinarySearchFunc(page.infos[:page.fill], csIndex, func(info ZoneInfo, t int) int {
		return cmp.Compare(info.CSIndex, t)
	})
	return p*buf.pageSize + o, true
}

// FindZoneRange returns the entries that belong to the records in r and whose zones intersect [start, end].
func (buf *ZoneBuffer) FindZoneRange(start, end trace.Timestamp, r ContextSwitchRange) ZoneRange {
	res := ZoneRange{Beg: buf.zoneCount, End: buf.zoneCount}
	if r.Beg >= r.End {
		return res
	}

	if g, ok := buf.lowerBound(r.Beg); ok {
		for g < buf.zoneCount && buf.store.ZoneEnd(buf.Zone(g)) < start {
			g++
		}
		res.Beg = g
	}

	if g, ok := buf.lowerBound(min(r.End, buf.lastCSIndex)); ok {
		res.End = g
	}
	// Records in r start before end, so comparing the unclamped start suffices.
	for res.End > res.Beg && buf.Zone(res.End-1).Start > end {
		res.End--
	}

	if res.Beg > res.End {
		return ZoneRange{}
	}
	return res
}

// OverrideRangeEnd marks the last entry of r as the end of the chain, so that folding stops inside r. The returned
// function restores the original link and must be called before the buffer is updated again.
func (buf *ZoneBuffer) OverrideRangeEnd(r ZoneRange) (restore func()) {
	if r.Beg >= r.End || r.End >= buf.zoneCount {
		return func() {}
	}
	dist := buf.ZoneDist(r.End - 1)
	saved := *dist
	*dist = ZoneDist{Kind: DistEndOfRange}
	return func() { *dist = saved }
}

// FoldRun follows the distance chain from entry g for as long as consecutive clamped ends are less than minGap apart
// and returns the last entry of the run.
func (buf *ZoneBuffer) FoldRun(g int, minGap trace.Timestamp) int {
	p, o := buf.index(g)
	page := buf.pages[p]
	for {
		d := page.dists[o]
		switch {
		case d.Kind == DistGap && d.Gap < minGap:
			g++
			o++
		case d.Kind == DistNextPage:
			p++
			page = buf.pages[p]
			o = 0
		default:
			return g
		}
	}
}

// Validate checks the buffer's invariants.
func (buf *ZoneBuffer) Validate(cs trace.ContextSwitches) error {
	total := 0
	for i, page := range buf.pages {
		if page.fill == 0 {
			return fmt.Errorf("page %d is empty", i)
		}
		total += page.fill
		want := DistNextPage
		if i == len(buf.pages)-1 {
			want = DistEndOfPage
		}
		if got := page.dists[buf.pageSize].Kind; got != want {
			return fmt.Errorf("page %d: sentinel is %s, want %s", i, got, want)
		}
		if page.csRange.first != page.infos[0].CSIndex || page.csRange.last != page.infos[page.fill-1].CSIndex {
			return fmt.Errorf("page %d: stale context switch range %v", i, page.csRange)
		}
		if i < len(buf.pages)-1 && page.fill != buf.pageSize {
			return fmt.Errorf("page %d isn't full but isn't the last page", i)
		}
	}
	if total != buf.zoneCount {
		return fmt.Errorf("pages hold %d entries, expected %d", total, buf.zoneCount)
	}
	if buf.zoneCount == 0 {
		return nil
	}

	clamped := func(g int) (info *ZoneInfo, rec *trace.ContextSwitch, s, e trace.Timestamp) {
		info = buf.ZoneInfo(g)
		rec = cs.AtPtr(info.CSIndex)
		z := buf.lut.Zone(info.Ref)
		return info, rec, max(z.Start, rec.Start), min(buf.store.ZoneEnd(z), rec.End)
	}

	prevInfo, prevRec, prevStart, prevEnd := clamped(0)
	if prevStart > prevEnd {
		return fmt.Errorf("entry 0: clamped start %d after clamped end %d", prevStart, prevEnd)
	}
	for g := 1; g < buf.zoneCount; g++ {
		info, rec, s, e := clamped(g)
		switch {
		case s > e:
			return fmt.Errorf("entry %d: clamped start %d after clamped end %d", g, s, e)
		case prevInfo.CSIndex > info.CSIndex:
			return fmt.Errorf("entry %d: context switch index %d before %d", g, info.CSIndex, prevInfo.CSIndex)
		case prevInfo.CSIndex != info.CSIndex && prevRec.End > rec.Start:
			return fmt.Errorf("entry %d: context switch records %d and %d overlap", g, prevInfo.CSIndex, info.CSIndex)
		case prevEnd > s:
			return fmt.Errorf("entry %d: clamped start %d before previous clamped end %d", g, s, prevEnd)
		}
		if d := *buf.ZoneDist(g - 1); d.Kind != DistGap || d.Gap != e-prevEnd {
			return fmt.Errorf("entry %d: distance is %s, want Gap(%d)", g-1, d, e-prevEnd)
		}
		prevInfo, prevRec, prevStart, prevEnd = info, rec, s, e
	}
	if d := *buf.ZoneDist(buf.zoneCount - 1); d.Kind != DistEndOfZones {
		return fmt.Errorf("last entry: distance is %s, want EndOfZones", d)
	}
	return nil
}
