package recorder

// Buffer is the unbounded, append-only frame log for one call. Frames from
// both sides land in a single sequence in arrival order, which is also the
// order the finalizer concatenates them in. Callers are expected to hold the
// owning session's lock; Buffer itself does no locking.
type Buffer struct {
	frames []frame
	bySide map[string]int
	bytes  int
}

type frame struct {
	side string
	data []byte
}

// NewBuffer creates an empty frame log
func NewBuffer() *Buffer {
	return &Buffer{
		bySide: make(map[string]int),
	}
}

// Append stores one frame for the given side
func (b *Buffer) Append(side string, data []byte) {
	b.frames = append(b.frames, frame{side: side, data: data})
	b.bySide[side]++
	b.bytes += len(data)
}

// FrameCount returns the total number of frames from both sides
func (b *Buffer) FrameCount() int {
	return len(b.frames)
}

// FrameCountFor returns the number of frames stored for one side
func (b *Buffer) FrameCountFor(side string) int {
	return b.bySide[side]
}

// ByteCount returns the total payload bytes from both sides
func (b *Buffer) ByteCount() int {
	return b.bytes
}

// Bytes concatenates every frame in arrival order into one blob
func (b *Buffer) Bytes() []byte {
	out := make([]byte, 0, b.bytes)
	for _, f := range b.frames {
		out = append(out, f.data...)
	}
	return out
}
