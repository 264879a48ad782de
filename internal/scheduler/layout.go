package scheduler

import (
	"sort"
	"time"
)

// LayoutConfig holds the display constants of a day grid.
type LayoutConfig struct {
	// Location decides which calendar day an interval belongs to. Nil means UTC.
	Location      *time.Location
	DayStartHour  int
	DayEndHour    int
	PixelsPerHour float64
	// MinDuration keeps short entries clickable.
	MinDuration time.Duration
	MinHeight   float64
}

// DefaultLayoutConfig returns a 06:00-24:00 grid at 50 px per hour.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Location:      time.UTC,
		DayStartHour:  6,
		DayEndHour:    24,
		PixelsPerHour: 50,
		MinDuration:   MinimumDuration,
		MinHeight:     25,
	}
}

func (c LayoutConfig) normalized() LayoutConfig {
	def := DefaultLayoutConfig()
	if c.Location == nil {
		c.Location = def.Location
	}
	if c.DayStartHour < 0 || c.DayStartHour > 23 {
		c.DayStartHour = def.DayStartHour
	}
	if c.DayEndHour <= c.DayStartHour || c.DayEndHour > 24 {
		c.DayEndHour = def.DayEndHour
	}
	if c.PixelsPerHour <= 0 {
		c.PixelsPerHour = def.PixelsPerHour
	}
	if c.MinDuration <= 0 {
		c.MinDuration = def.MinDuration
	}
	if c.MinHeight < 0 {
		c.MinHeight = 0
	}
	return c
}

// Window returns the display window of the calendar day containing t.
func (c LayoutConfig) Window(t time.Time) Interval {
	c = c.normalized()
	local := t.In(c.Location)
	y, m, d := local.Date()
	return Interval{
		Start: time.Date(y, m, d, c.DayStartHour, 0, 0, 0, c.Location),
		End:   time.Date(y, m, d, c.DayEndHour, 0, 0, 0, c.Location),
	}
}

// Item is an interval carrying an arbitrary caller payload.
type Item[T any] struct {
	Interval Interval
	Payload  T
}

// Block is an Item positioned on the grid. Top and Height are pixels from the
// window start; Width and Left are percentages of the column area.
type Block[T any] struct {
	Payload      T
	Interval     Interval
	Visible      Interval
	Top          float64
	Height       float64
	Column       int
	TotalColumns int
	Width        float64
	Left         float64
}

func (b Block[T]) bottom() float64 {
	return b.Top + b.Height
}

// Clamp fits i into the display window of its start day and applies the
// minimum visual duration. Clamp(Clamp(i)) == Clamp(i).
func (c LayoutConfig) Clamp(i Interval) Interval {
	c = c.normalized()
	window := c.Window(i.Start)

	start := i.Start
	if start.Before(window.Start) {
		start = window.Start
	}
	if latest := window.End.Add(-c.MinDuration); start.After(latest) {
		start = latest
	}
	end := i.End
	if end.After(window.End) {
		end = window.End
	}
	if end.Sub(start) < c.MinDuration {
		end = start.Add(c.MinDuration)
	}
	return Interval{Start: start, End: end}
}

// GroupAndLayout positions items on the grid.
//
// Items are sorted by clamped start, then each joins the first group that
// already holds an item whose vertical span overlaps it. A group can therefore
// contain two items that do not overlap each other as long as both overlap a
// third one. Members of a group of size N get columns 0..N-1 in sort order,
// each 100/N percent wide. Items on different days never share a group.
// Blocks are returned in sort order.
func GroupAndLayout[T any](items []Item[T], cfg LayoutConfig) []Block[T] {
	cfg = cfg.normalized()
	if len(items) == 0 {
		return []Block[T]{}
	}

	type placed struct {
		block  Block[T]
		window time.Time
	}

	placedItems := make([]placed, 0, len(items))
	for _, item := range items {
		visible := cfg.Clamp(item.Interval)
		window := cfg.Window(visible.Start)
		top := hoursBetween(window.Start, visible.Start) * cfg.PixelsPerHour
		height := visible.Duration().Hours() * cfg.PixelsPerHour
		if height < cfg.MinHeight {
			height = cfg.MinHeight
		}
		placedItems = append(placedItems, placed{
			block: Block[T]{
				Payload:  item.Payload,
				Interval: item.Interval,
				Visible:  visible,
				Top:      top,
				Height:   height,
			},
			window: window.Start,
		})
	}

	sort.SliceStable(placedItems, func(i, j int) bool {
		return placedItems[i].block.Visible.Start.Before(placedItems[j].block.Visible.Start)
	})

	var groups [][]int
	for idx, candidate := range placedItems {
		assigned := false
		for g, members := range groups {
			for _, member := range members {
				other := placedItems[member]
				if !other.window.Equal(candidate.window) {
					continue
				}
				if candidate.block.Top < other.block.bottom() && candidate.block.bottom() > other.block.Top {
					groups[g] = append(groups[g], idx)
					assigned = true
					break
				}
			}
			if assigned {
				break
			}
		}
		if !assigned {
			groups = append(groups, []int{idx})
		}
	}

	for _, members := range groups {
		width := 100 / float64(len(members))
		for column, member := range members {
			block := &placedItems[member].block
			block.Column = column
			block.TotalColumns = len(members)
			block.Width = width
			block.Left = float64(column) * width
		}
	}

	blocks := make([]Block[T], len(placedItems))
	for i, p := range placedItems {
		blocks[i] = p.block
	}
	return blocks
}

func hoursBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours()
}
