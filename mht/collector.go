package mht

// palette is the fixed set of colors assigned to tracks by
// track_id % len(palette) (spec section 4.8).
var palette = [16][3]uint8{
	{230, 25, 75}, {60, 180, 75}, {255, 225, 25}, {0, 130, 200},
	{245, 130, 48}, {145, 30, 180}, {70, 240, 240}, {240, 50, 230},
	{210, 245, 60}, {250, 190, 212}, {0, 128, 128}, {220, 190, 255},
	{170, 110, 40}, {255, 250, 200}, {128, 0, 0}, {170, 255, 195},
}

// TrackElement is one verified START/CONTINUE/SKIP node appended to a
// track's element list, per spec section 6's track-file record layout.
type TrackElement struct {
	// Code is 'M' for a measured (START/CONTINUE) element or 'S' for a
	// skipped element.
	Code                 byte
	ReportX, ReportY     float64
	StateX, StateY       float64
	LogLikelihood        float64
	Time                 int
	FrameNo              int
	ModelType            string
	CornerID             uint64
}

// Track is the accumulated, per-track output: its verified element
// history plus a deterministic display color.
type Track struct {
	ID         int
	ColorIndex int
	Color      [3]uint8
	Elements   []TrackElement
}

// FalseAlarm is one verified FALARM event.
type FalseAlarm struct {
	ReportX, ReportY float64
	FrameNo          int
	CornerID         uint64
}

// Collector accumulates verified track elements and false alarms for
// downstream writing (spec section 4.8).
type Collector struct {
	tracks      map[int]*Track
	order       []int
	falseAlarms []FalseAlarm
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{tracks: make(map[int]*Track)}
}

func (c *Collector) trackFor(id int) *Track {
	t, ok := c.tracks[id]
	if !ok {
		t = &Track{
			ID:         id,
			ColorIndex: id % len(palette),
			Color:      palette[id%len(palette)],
		}
		c.tracks[id] = t
		c.order = append(c.order, id)
	}
	return t
}

// recordElement appends el to trackID's element list, creating the track
// on first sight.
func (c *Collector) recordElement(trackID int, el TrackElement) {
	t := c.trackFor(trackID)
	t.Elements = append(t.Elements, el)
}

// recordFalseAlarm appends fa to the false-alarm list.
func (c *Collector) recordFalseAlarm(fa FalseAlarm) {
	c.falseAlarms = append(c.falseAlarms, fa)
}

// Tracks returns every track with at least one recorded element, in
// first-verified order.
func (c *Collector) Tracks() []*Track {
	out := make([]*Track, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.tracks[id])
	}
	return out
}

// FalseAlarms returns every recorded false alarm, in verification order.
func (c *Collector) FalseAlarms() []FalseAlarm {
	return c.falseAlarms
}
