// Package queue implements the playback queue engine: an ordered track list
// with shuffle/repeat/history semantics and precise index remapping under
// mutation. All state lives in one struct behind one mutex so every public
// method acquires the lock exactly once, never needing a second lock in the
// same call and never risking deadlock against itself.
package queue

import (
	"math/rand"
	"sync"
	"time"

	"github.com/akarpov/sonance/pkg/types"
)

type moveDirection int

const (
	moveUp moveDirection = iota
	moveDown
)

const historyCapacity = 50

// State is a read-only snapshot returned by GetState.
type State struct {
	CurrentTrack *types.QueueEntry
	CurrentIndex *int
	Upcoming     []types.QueueEntry
	History      []types.QueueEntry
	Shuffle      bool
	Repeat       types.RepeatMode
	TotalTracks  int
}

type innerState struct {
	tracks          []types.QueueEntry
	currentIndex    *int
	shuffle         bool
	shuffleOrder    []int
	shufflePosition int
	repeat          types.RepeatMode
	history         []int // FIFO, oldest first
}

// Queue is the single-mutex-guarded queue engine of spec §4.2.
type Queue struct {
	mu    sync.Mutex
	state innerState
}

func New() *Queue {
	return &Queue{
		state: innerState{
			history: make([]int, 0, historyCapacity),
		},
	}
}

// AddTrack appends at the end of the canonical track order.
func (q *Queue) AddTrack(t types.QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state.tracks = append(q.state.tracks, t)
	if q.state.shuffle {
		q.state.shuffleOrder = append(q.state.shuffleOrder, len(q.state.tracks)-1)
	}
}

// AddTracks appends a batch at the end.
func (q *Queue) AddTracks(ts []types.QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	start := len(q.state.tracks)
	q.state.tracks = append(q.state.tracks, ts...)
	if q.state.shuffle {
		for i := start; i < len(q.state.tracks); i++ {
			q.state.shuffleOrder = append(q.state.shuffleOrder, i)
		}
	}
}

// AddTrackNext inserts right after current_index (or at 0 if nothing is current).
func (q *Queue) AddTrackNext(t types.QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	insertIndex := 0
	if q.state.currentIndex != nil {
		insertIndex = *q.state.currentIndex + 1
	}

	if insertIndex >= len(q.state.tracks) {
		q.state.tracks = append(q.state.tracks, t)
	} else {
		q.state.tracks = append(q.state.tracks, types.QueueEntry{})
		copy(q.state.tracks[insertIndex+1:], q.state.tracks[insertIndex:])
		q.state.tracks[insertIndex] = t
	}

	if q.state.shuffle {
		for i, idx := range q.state.shuffleOrder {
			if idx >= insertIndex {
				q.state.shuffleOrder[i] = idx + 1
			}
		}

		newIdx := insertIndex
		nextPos := len(q.state.shuffleOrder)
		if q.state.currentIndex != nil {
			nextPos = q.state.shufflePosition + 1
		}

		if nextPos >= len(q.state.shuffleOrder) {
			q.state.shuffleOrder = append(q.state.shuffleOrder, newIdx)
		} else {
			q.state.shuffleOrder = append(q.state.shuffleOrder, 0)
			copy(q.state.shuffleOrder[nextPos+1:], q.state.shuffleOrder[nextPos:])
			q.state.shuffleOrder[nextPos] = newIdx
		}
	}
}

// SetQueue replaces the entire queue, clears history, and regenerates shuffle order.
func (q *Queue) SetQueue(tracks []types.QueueEntry, start *int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.state.tracks = tracks
	q.state.currentIndex = start
	q.state.history = q.state.history[:0]

	q.regenerateShuffleOrderLocked()

	if q.state.shuffle && start != nil && *start < len(q.state.tracks) {
		for pos, idx := range q.state.shuffleOrder {
			if idx == *start {
				q.state.shuffleOrder[0], q.state.shuffleOrder[pos] = q.state.shuffleOrder[pos], q.state.shuffleOrder[0]
				q.state.shufflePosition = 0
				break
			}
		}
	}
}

// Clear empties the queue. If a track is currently playing it is retained as
// the sole remaining item at index 0; history is always preserved.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state.currentIndex != nil {
		if len(q.state.tracks) > 1 {
			q.state.tracks = q.state.tracks[:1]
		}
		zero := 0
		q.state.currentIndex = &zero
	} else {
		q.state.tracks = nil
		q.state.currentIndex = nil
	}

	q.state.shuffleOrder = nil
	q.state.shufflePosition = 0
}

// RemoveTrack removes by absolute index. Returns the removed entry and true on success.
func (q *Queue) RemoveTrack(index int) (types.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeAbsoluteLocked(index)
}

// RemoveUpcomingTrack removes by position in the currently-visible upcoming list.
func (q *Queue) RemoveUpcomingTrack(upcomingIndex int) (types.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var actual int
	if q.state.shuffle {
		pos := q.state.shufflePosition + 1 + upcomingIndex
		if pos >= len(q.state.shuffleOrder) {
			return types.QueueEntry{}, false
		}
		actual = q.state.shuffleOrder[pos]
	} else {
		if q.state.currentIndex != nil {
			actual = *q.state.currentIndex + 1 + upcomingIndex
		} else {
			actual = upcomingIndex
		}
	}

	if actual >= len(q.state.tracks) {
		return types.QueueEntry{}, false
	}
	return q.removeAbsoluteLocked(actual)
}

func (q *Queue) removeAbsoluteLocked(index int) (types.QueueEntry, bool) {
	if index < 0 || index >= len(q.state.tracks) {
		return types.QueueEntry{}, false
	}

	removed := q.state.tracks[index]
	q.state.tracks = append(q.state.tracks[:index], q.state.tracks[index+1:]...)

	if q.state.currentIndex != nil {
		curr := *q.state.currentIndex
		switch {
		case index < curr:
			curr--
			q.state.currentIndex = &curr
		case index == curr:
			if curr >= len(q.state.tracks) {
				if len(q.state.tracks) == 0 {
					q.state.currentIndex = nil
				} else {
					last := len(q.state.tracks) - 1
					q.state.currentIndex = &last
				}
			}
		}
	}

	filtered := q.state.history[:0:0]
	for _, h := range q.state.history {
		if h == index {
			continue
		}
		if h > index {
			h--
		}
		filtered = append(filtered, h)
	}
	q.state.history = filtered

	if q.state.shuffle {
		q.removeIndexFromShuffleLocked(index)
	}

	return removed, true
}

// MoveTrack reorders within the currently-visible upcoming view.
func (q *Queue) MoveTrack(from, to int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state.shuffle {
		basePos := 0
		if q.state.currentIndex != nil {
			basePos = q.state.shufflePosition + 1
		}
		fromPos := basePos + from
		toPos := basePos + to

		if fromPos >= len(q.state.shuffleOrder) || toPos >= len(q.state.shuffleOrder) {
			return false
		}
		if fromPos == toPos {
			return true
		}

		moved := q.state.shuffleOrder[fromPos]
		q.state.shuffleOrder = append(q.state.shuffleOrder[:fromPos], q.state.shuffleOrder[fromPos+1:]...)
		q.state.shuffleOrder = append(q.state.shuffleOrder, 0)
		copy(q.state.shuffleOrder[toPos+1:], q.state.shuffleOrder[toPos:])
		q.state.shuffleOrder[toPos] = moved

		if q.state.currentIndex != nil {
			for pos, idx := range q.state.shuffleOrder {
				if idx == *q.state.currentIndex {
					q.state.shufflePosition = pos
					break
				}
			}
		} else {
			q.state.shufflePosition = 0
		}
		return true
	}

	direction := moveDown
	if from > to {
		direction = moveUp
	}

	fromIdx, toIdx := from, to
	if q.state.currentIndex != nil {
		curr := *q.state.currentIndex
		fromIdx = fromIdx + curr + 1
		toIdx = toIdx + curr + 1
	}
	if direction == moveDown {
		toIdx--
	}

	if fromIdx == toIdx {
		return true
	}
	if fromIdx < 0 || toIdx < 0 || fromIdx >= len(q.state.tracks) || toIdx >= len(q.state.tracks) {
		return false
	}

	track := q.state.tracks[fromIdx]
	q.state.tracks = append(q.state.tracks[:fromIdx], q.state.tracks[fromIdx+1:]...)
	q.state.tracks = append(q.state.tracks, types.QueueEntry{})
	copy(q.state.tracks[toIdx+1:], q.state.tracks[toIdx:])
	q.state.tracks[toIdx] = track

	if q.state.currentIndex != nil {
		curr := *q.state.currentIndex
		switch {
		case fromIdx == curr:
			curr = toIdx
		case fromIdx < curr && toIdx >= curr:
			curr--
		case fromIdx > curr && toIdx <= curr:
			curr++
		}
		q.state.currentIndex = &curr
	}

	for i, h := range q.state.history {
		q.state.history[i] = remapIndexAfterMove(h, fromIdx, toIdx)
	}

	return true
}

func remapIndexAfterMove(idx, fromIdx, toIdx int) int {
	if idx == fromIdx {
		return toIdx
	}
	if fromIdx < toIdx {
		if idx > fromIdx && idx <= toIdx {
			return idx - 1
		}
		return idx
	}
	if idx >= toIdx && idx < fromIdx {
		return idx + 1
	}
	return idx
}

// CurrentTrack is a non-mutating read of the current entry.
func (q *Queue) CurrentTrack() (types.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state.currentIndex == nil {
		return types.QueueEntry{}, false
	}
	return q.state.tracks[*q.state.currentIndex], true
}

// PeekNext returns the track that Next() would advance to, without advancing.
func (q *Queue) PeekNext() (types.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.state.tracks) == 0 {
		return types.QueueEntry{}, false
	}
	if q.state.repeat == types.RepeatOne {
		if q.state.currentIndex == nil {
			return types.QueueEntry{}, false
		}
		return q.state.tracks[*q.state.currentIndex], true
	}

	var nextIdx *int
	if q.state.shuffle {
		nextPos := q.state.shufflePosition + 1
		if nextPos < len(q.state.shuffleOrder) {
			v := q.state.shuffleOrder[nextPos]
			nextIdx = &v
		} else if q.state.repeat == types.RepeatAll && len(q.state.shuffleOrder) > 0 {
			v := q.state.shuffleOrder[0]
			nextIdx = &v
		}
	} else {
		curr := 0
		if q.state.currentIndex != nil {
			curr = *q.state.currentIndex
		}
		next := curr + 1
		if next < len(q.state.tracks) {
			nextIdx = &next
		} else if q.state.repeat == types.RepeatAll {
			v := 0
			nextIdx = &v
		}
	}

	if nextIdx == nil {
		return types.QueueEntry{}, false
	}
	return q.state.tracks[*nextIdx], true
}

// PeekUpcoming returns up to count tracks after the current one, honoring repeat.
func (q *Queue) PeekUpcoming(count int) []types.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.state.tracks) == 0 || count == 0 || q.state.repeat == types.RepeatOne {
		return nil
	}

	result := make([]types.QueueEntry, 0, count)

	if q.state.shuffle {
		startPos := q.state.shufflePosition + 1
		for i := 0; i < count; i++ {
			pos := startPos + i
			if pos < len(q.state.shuffleOrder) {
				result = append(result, q.state.tracks[q.state.shuffleOrder[pos]])
			} else if q.state.repeat == types.RepeatAll && len(q.state.shuffleOrder) > 0 {
				wrapped := pos % len(q.state.shuffleOrder)
				result = append(result, q.state.tracks[q.state.shuffleOrder[wrapped]])
			}
		}
		return result
	}

	start := 0
	if q.state.currentIndex != nil {
		start = *q.state.currentIndex + 1
	}
	for i := 0; i < count; i++ {
		idx := start + i
		if idx < len(q.state.tracks) {
			result = append(result, q.state.tracks[idx])
		} else if q.state.repeat == types.RepeatAll {
			result = append(result, q.state.tracks[idx%len(q.state.tracks)])
		}
	}
	return result
}

// Next pushes current into history, advances the cursor, and returns the new current.
func (q *Queue) Next() (types.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.state.tracks) == 0 {
		return types.QueueEntry{}, false
	}

	if q.state.currentIndex != nil {
		q.pushHistoryLocked(*q.state.currentIndex)
	}

	if q.state.repeat == types.RepeatOne {
		if q.state.currentIndex == nil {
			return types.QueueEntry{}, false
		}
		return q.state.tracks[*q.state.currentIndex], true
	}

	var nextIdx *int
	if q.state.shuffle {
		q.state.shufflePosition++
		if q.state.shufflePosition < len(q.state.shuffleOrder) {
			v := q.state.shuffleOrder[q.state.shufflePosition]
			nextIdx = &v
		} else if q.state.repeat == types.RepeatAll && len(q.state.shuffleOrder) > 0 {
			q.state.shufflePosition = 0
			v := q.state.shuffleOrder[0]
			nextIdx = &v
		}
	} else {
		curr := 0
		if q.state.currentIndex != nil {
			curr = *q.state.currentIndex
		}
		next := curr + 1
		if next < len(q.state.tracks) {
			nextIdx = &next
		} else if q.state.repeat == types.RepeatAll {
			v := 0
			nextIdx = &v
		}
	}

	q.state.currentIndex = nextIdx
	if nextIdx == nil {
		return types.QueueEntry{}, false
	}
	return q.state.tracks[*nextIdx], true
}

// Previous restores from history if available, otherwise steps back symmetrically to Next.
func (q *Queue) Previous() (types.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.state.tracks) == 0 {
		return types.QueueEntry{}, false
	}

	if n := len(q.state.history); n > 0 {
		prevIdx := q.state.history[n-1]
		q.state.history = q.state.history[:n-1]
		q.state.currentIndex = &prevIdx

		if q.state.shuffle {
			for pos, idx := range q.state.shuffleOrder {
				if idx == prevIdx {
					q.state.shufflePosition = pos
					break
				}
			}
		}
		return q.state.tracks[prevIdx], true
	}

	var prevIdx *int
	if q.state.shuffle {
		if q.state.shufflePosition > 0 {
			q.state.shufflePosition--
			v := q.state.shuffleOrder[q.state.shufflePosition]
			prevIdx = &v
		} else if q.state.repeat == types.RepeatAll && len(q.state.shuffleOrder) > 0 {
			q.state.shufflePosition = len(q.state.shuffleOrder) - 1
			v := q.state.shuffleOrder[q.state.shufflePosition]
			prevIdx = &v
		} else if len(q.state.shuffleOrder) > 0 {
			v := q.state.shuffleOrder[0]
			prevIdx = &v
		}
	} else {
		curr := 0
		if q.state.currentIndex != nil {
			curr = *q.state.currentIndex
		}
		if curr > 0 {
			v := curr - 1
			prevIdx = &v
		} else if q.state.repeat == types.RepeatAll {
			v := len(q.state.tracks) - 1
			prevIdx = &v
		} else {
			v := 0
			prevIdx = &v
		}
	}

	q.state.currentIndex = prevIdx
	if prevIdx == nil {
		return types.QueueEntry{}, false
	}
	return q.state.tracks[*prevIdx], true
}

// PlayIndex jumps directly to an absolute index, pushing the prior current to history.
func (q *Queue) PlayIndex(index int) (types.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.state.tracks) {
		return types.QueueEntry{}, false
	}

	if q.state.currentIndex != nil {
		q.pushHistoryLocked(*q.state.currentIndex)
	}

	idx := index
	q.state.currentIndex = &idx

	if q.state.shuffle {
		for pos, si := range q.state.shuffleOrder {
			if si == index {
				q.state.shufflePosition = pos
				break
			}
		}
	}

	return q.state.tracks[index], true
}

// SetShuffle toggles shuffle mode; regenerates the order on enable and
// repositions the current track to shuffle position 0.
func (q *Queue) SetShuffle(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state.shuffle == enabled {
		return
	}
	q.state.shuffle = enabled

	if enabled {
		q.regenerateShuffleOrderLocked()

		if q.state.currentIndex != nil {
			curr := *q.state.currentIndex
			for pos, idx := range q.state.shuffleOrder {
				if idx == curr {
					if pos != 0 {
						q.state.shuffleOrder[0], q.state.shuffleOrder[pos] = q.state.shuffleOrder[pos], q.state.shuffleOrder[0]
					}
					q.state.shufflePosition = 0
					break
				}
			}
		}
	}
}

func (q *Queue) IsShuffle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state.shuffle
}

func (q *Queue) SetRepeat(mode types.RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state.repeat = mode
}

func (q *Queue) GetRepeat() types.RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state.repeat
}

// GetState returns a full snapshot: current, up to 20 upcoming, up to 10
// history (newest first), shuffle flag, repeat mode, total count.
func (q *Queue) GetState() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	var current *types.QueueEntry
	if q.state.currentIndex != nil {
		t := q.state.tracks[*q.state.currentIndex]
		current = &t
	}

	var upcoming []types.QueueEntry
	if q.state.currentIndex != nil {
		if q.state.shuffle {
			start := q.state.shufflePosition + 1
			end := start + 20
			if end > len(q.state.shuffleOrder) {
				end = len(q.state.shuffleOrder)
			}
			for _, idx := range q.state.shuffleOrder[minInt(start, len(q.state.shuffleOrder)):end] {
				upcoming = append(upcoming, q.state.tracks[idx])
			}
		} else {
			start := *q.state.currentIndex + 1
			end := start + 20
			if end > len(q.state.tracks) {
				end = len(q.state.tracks)
			}
			if start < end {
				upcoming = append(upcoming, q.state.tracks[start:end]...)
			}
		}
	} else {
		end := 20
		if end > len(q.state.tracks) {
			end = len(q.state.tracks)
		}
		upcoming = append(upcoming, q.state.tracks[:end]...)
	}

	var history []types.QueueEntry
	n := len(q.state.history)
	limit := 10
	if n < limit {
		limit = n
	}
	for i := 0; i < limit; i++ {
		idx := q.state.history[n-1-i]
		history = append(history, q.state.tracks[idx])
	}

	var currentIndexCopy *int
	if q.state.currentIndex != nil {
		v := *q.state.currentIndex
		currentIndexCopy = &v
	}

	return State{
		CurrentTrack: current,
		CurrentIndex: currentIndexCopy,
		Upcoming:     upcoming,
		History:      history,
		Shuffle:      q.state.shuffle,
		Repeat:       q.state.repeat,
		TotalTracks:  len(q.state.tracks),
	}
}

func (q *Queue) pushHistoryLocked(idx int) {
	q.state.history = append(q.state.history, idx)
	for len(q.state.history) > historyCapacity {
		q.state.history = q.state.history[1:]
	}
}

// regenerateShuffleOrderLocked performs a Fisher-Yates shuffle of 0..len(tracks)
// seeded from wall-clock nanoseconds, matching spec §4.2's requirement exactly.
func (q *Queue) regenerateShuffleOrderLocked() {
	order := make([]int, len(q.state.tracks))
	for i := range order {
		order[i] = i
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := len(order) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	q.state.shuffleOrder = order

	if q.state.currentIndex != nil {
		found := false
		for pos, idx := range order {
			if idx == *q.state.currentIndex {
				q.state.shufflePosition = pos
				found = true
				break
			}
		}
		if !found {
			q.state.shufflePosition = 0
		}
	} else {
		q.state.shufflePosition = 0
	}
}

func (q *Queue) removeIndexFromShuffleLocked(removedIdx int) {
	for pos, idx := range q.state.shuffleOrder {
		if idx == removedIdx {
			q.state.shuffleOrder = append(q.state.shuffleOrder[:pos], q.state.shuffleOrder[pos+1:]...)
			if pos < q.state.shufflePosition && q.state.shufflePosition > 0 {
				q.state.shufflePosition--
			} else if pos == q.state.shufflePosition && q.state.shufflePosition >= len(q.state.shuffleOrder) {
				q.state.shufflePosition = maxInt(len(q.state.shuffleOrder)-1, 0)
			}
			break
		}
	}

	for i, idx := range q.state.shuffleOrder {
		if idx > removedIdx {
			q.state.shuffleOrder[i] = idx - 1
		}
	}

	if q.state.currentIndex != nil {
		found := false
		for pos, idx := range q.state.shuffleOrder {
			if idx == *q.state.currentIndex {
				q.state.shufflePosition = pos
				found = true
				break
			}
		}
		if !found {
			q.state.shufflePosition = 0
		}
	} else {
		q.state.shufflePosition = 0
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
