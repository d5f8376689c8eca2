// Package progress implements the hierarchical progress reporting of
// spec.md §4.L: a root tree with per-task child items supporting
// init/set/inc/info/done, backed by a background rendering goroutine
// that flushes at a bounded frame rate.
package progress

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// defaultRefreshRate bounds how often the renderer redraws, so a burst
// of Inc calls from the diff-apply loop doesn't flood the terminal.
const defaultRefreshRate = 120 * time.Millisecond

// Tree is the root of a progress display: a single background renderer
// shared by every child Item.
type Tree struct {
	p *mpb.Progress
}

// New starts a Tree writing to w (typically os.Stderr).
func New(w io.Writer) *Tree {
	return &Tree{
		p: mpb.New(
			mpb.WithOutput(w),
			mpb.WithRefreshRate(defaultRefreshRate),
		),
	}
}

// Shutdown blocks until every Item has completed and the renderer has
// drained (spec.md §4.L: "shutdown joins the renderer").
func (t *Tree) Shutdown() {
	t.p.Wait()
}

// Item is one task's progress line within a Tree. message holds the
// item's current status text, rendered by a decorator that reads it on
// every refresh tick; it is updated from Info/Done, possibly from a
// different goroutine than the one driving Set/Inc (the write-progress
// sink of spec.md §5 is a separate producer).
type Item struct {
	bar     *mpb.Bar
	total   int64
	message atomic.Value // string
}

// Init starts a new child Item named name with the given total (a byte
// count or an item count) and unit label.
func (t *Tree) Init(name string, total int64, unit string) *Item {
	item := &Item{total: total}
	item.message.Store("")

	item.bar = t.p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WCSyncSpaceR),
			decor.Any(func(decor.Statistics) string {
				return item.message.Load().(string)
			}, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d/%d "+unit),
		),
	)
	return item
}

// Set moves the item to an absolute cumulative position.
func (i *Item) Set(cumulative int64) {
	i.bar.SetCurrent(cumulative)
}

// Inc advances the item by n.
func (i *Item) Inc(n int64) {
	i.bar.IncrInt64(n)
}

// Info updates the item's status text without altering its progress.
func (i *Item) Info(msg string) {
	i.message.Store(msg)
}

// Done marks the item complete at its full total and sets msg as its
// final status text.
func (i *Item) Done(msg string) {
	i.message.Store(msg)
	i.bar.SetCurrent(i.total)
}
