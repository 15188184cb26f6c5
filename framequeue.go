// framequeue.go

// Copyright (C) 2018  Steve Merrony

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package turboshrimp

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// FrameQueue carries decoded-order video frames from the stream listener
// to a consumer (typically a video decoder).  A slow consumer would
// otherwise watch the backlog, and therefore the display latency, grow
// without bound, so in latency-reduction mode every arriving keyframe
// throws away the stale backlog: the dropped frames are all older than
// the keyframe and the keyframe needs none of them to decode.
//
// The zero value is not usable, construct with NewFrameQueue.  Any number
// of goroutines may push and pull concurrently.
type FrameQueue struct {
	mu               sync.Mutex
	cond             *sync.Cond
	frames           []*Frame
	dropped          uint64 // total frames discarded, read atomically
	latencyReduction bool
}

// NewFrameQueue returns an empty queue.  With latencyReduction enabled
// the queue is flushed each time a keyframe arrives; disabled, it is a
// plain unbounded FIFO.
func NewFrameQueue(latencyReduction bool) *FrameQueue {
	fq := &FrameQueue{latencyReduction: latencyReduction}
	fq.cond = sync.NewCond(&fq.mu)
	return fq
}

// Push appends a frame to the queue, or, when latency reduction is on
// and the frame is a keyframe, replaces the entire backlog with just
// this frame.  Push never blocks.
func (fq *FrameQueue) Push(frame *Frame) {
	fq.mu.Lock()
	if fq.latencyReduction && frame.IsKeyframe() {
		if stale := len(fq.frames); stale > 0 {
			atomic.AddUint64(&fq.dropped, uint64(stale))
			logrus.Debugf("framequeue: dropped %d stale frame(s) on keyframe #%d", stale, frame.FrameNumber)
		}
		// swap the whole backing slice so the backlog is released in one step
		fq.frames = []*Frame{frame}
	} else {
		fq.frames = append(fq.frames, frame)
	}
	fq.cond.Broadcast()
	fq.mu.Unlock()
}

// Pull removes and returns the oldest queued frame, blocking until one
// is available.
func (fq *FrameQueue) Pull() *Frame {
	fq.mu.Lock()
	for len(fq.frames) == 0 {
		fq.cond.Wait()
	}
	frame := fq.pop()
	fq.mu.Unlock()
	return frame
}

// PullTimeout is Pull with an upper bound on the wait.  It returns nil
// if no frame arrived within the timeout.  A frame pushed at the very
// moment the timeout expires may be picked up by the final re-check or
// left for the next call; either way no frame is lost.
func (fq *FrameQueue) PullTimeout(timeout time.Duration) *Frame {
	fq.mu.Lock()
	if len(fq.frames) == 0 {
		// sync.Cond has no timed wait, so a timer broadcasts to wake us.
		// The callback takes the lock first: Wait registers on the notify
		// list before releasing it, so the broadcast cannot slip into the
		// gap between arming the timer and going to sleep.
		timer := time.AfterFunc(timeout, func() {
			fq.mu.Lock()
			defer fq.mu.Unlock()
			fq.cond.Broadcast()
		})
		fq.cond.Wait()
		timer.Stop()
		if len(fq.frames) == 0 {
			fq.mu.Unlock()
			return nil
		}
	}
	frame := fq.pop()
	fq.mu.Unlock()
	return frame
}

// pop removes and returns the head frame.  Callers must hold fq.mu and
// have checked the queue is non-empty.
func (fq *FrameQueue) pop() *Frame {
	frame := fq.frames[0]
	fq.frames[0] = nil // the queue keeps no reference once ownership passes out
	fq.frames = fq.frames[1:]
	return frame
}

// DroppedFrames returns the total number of frames discarded by
// keyframe flushes since the queue was created.
func (fq *FrameQueue) DroppedFrames() uint64 {
	return atomic.LoadUint64(&fq.dropped)
}

// Len returns the number of frames currently queued.
func (fq *FrameQueue) Len() int {
	fq.mu.Lock()
	n := len(fq.frames)
	fq.mu.Unlock()
	return n
}
