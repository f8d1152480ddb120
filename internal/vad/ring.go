package vad

import "plant-voice/internal/domain"

type ringEntry struct {
	frame    domain.Frame
	isSpeech bool
}

// Ring is a bounded FIFO of classified frames. Pushing into a full ring
// evicts the oldest entry. It is owned by a single segmenter and is not
// safe for concurrent use.
type Ring struct {
	entries []ringEntry
	start   int
	size    int
	voiced  int
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{entries: make([]ringEntry, capacity)}
}

func (r *Ring) Push(frame domain.Frame, isSpeech bool) {
	capacity := len(r.entries)
	if r.size == capacity {
		if r.entries[r.start].isSpeech {
			r.voiced--
		}
		r.entries[r.start] = ringEntry{frame: frame, isSpeech: isSpeech}
		r.start = (r.start + 1) % capacity
	} else {
		r.entries[(r.start+r.size)%capacity] = ringEntry{frame: frame, isSpeech: isSpeech}
		r.size++
	}
	if isSpeech {
		r.voiced++
	}
}

func (r *Ring) Len() int { return r.size }

func (r *Ring) Cap() int { return len(r.entries) }

func (r *Ring) Voiced() int { return r.voiced }

// VoicedFraction is voiced entries over the ring's capacity, also while
// the ring is still filling.
func (r *Ring) VoicedFraction() float64 {
	return float64(r.voiced) / float64(len(r.entries))
}

// Frames returns the buffered frames oldest first.
func (r *Ring) Frames() []domain.Frame {
	out := make([]domain.Frame, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.entries[(r.start+i)%len(r.entries)].frame)
	}
	return out
}

func (r *Ring) Clear() {
	clear(r.entries)
	r.start = 0
	r.size = 0
	r.voiced = 0
}
