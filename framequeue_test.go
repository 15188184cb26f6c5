// turboshrimp project framequeue_test.go

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
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pFrame(n uint32) *Frame {
	return &Frame{FrameType: FrameTypeP, FrameNumber: n}
}

func iFrame(n uint32) *Frame {
	return &Frame{FrameType: FrameTypeI, FrameNumber: n}
}

func TestFrameQueueFIFO(t *testing.T) {
	fq := NewFrameQueue(true)
	fq.Push(pFrame(1))
	fq.Push(pFrame(2))
	fq.Push(pFrame(3))
	assert.Equal(t, 3, fq.Len())
	assert.Equal(t, uint32(1), fq.Pull().FrameNumber)
	assert.Equal(t, uint32(2), fq.Pull().FrameNumber)
	assert.Equal(t, uint32(3), fq.Pull().FrameNumber)
	assert.Equal(t, 0, fq.Len())
	assert.Equal(t, uint64(0), fq.DroppedFrames())
}

func TestFrameQueueDropOnKeyframe(t *testing.T) {
	fq := NewFrameQueue(true)
	fq.Push(pFrame(1))
	fq.Push(pFrame(2))
	fq.Push(pFrame(3))
	fq.Push(iFrame(4))

	assert.Equal(t, 1, fq.Len())
	assert.Equal(t, uint64(3), fq.DroppedFrames())
	assert.Equal(t, uint32(4), fq.Pull().FrameNumber)
	assert.Equal(t, 0, fq.Len())
}

func TestFrameQueueKeyframeOnEmptyQueue(t *testing.T) {
	fq := NewFrameQueue(true)
	fq.Push(iFrame(1))
	assert.Equal(t, 1, fq.Len())
	assert.Equal(t, uint64(0), fq.DroppedFrames())
}

func TestFrameQueueDropCounterAccumulates(t *testing.T) {
	fq := NewFrameQueue(true)
	fq.Push(pFrame(1))
	fq.Push(pFrame(2))
	fq.Push(iFrame(3)) // drops 2
	fq.Push(pFrame(4))
	fq.Push(iFrame(5)) // drops 2 more (the P and the previous keyframe)
	assert.Equal(t, uint64(4), fq.DroppedFrames())
	assert.Equal(t, 1, fq.Len())
	assert.Equal(t, uint32(5), fq.Pull().FrameNumber)
}

// Only the first slice of a sliced IDR frame flushes the queue;
// treating every slice as a keyframe would throw away the earlier
// slices of the same frame.
func TestFrameQueueIDRSlices(t *testing.T) {
	fq := NewFrameQueue(true)
	fq.Push(pFrame(1))
	fq.Push(&Frame{FrameType: FrameTypeIDR, FrameNumber: 2, SliceIndex: 0})
	assert.Equal(t, uint64(1), fq.DroppedFrames())
	fq.Push(&Frame{FrameType: FrameTypeIDR, FrameNumber: 2, SliceIndex: 1})
	fq.Push(&Frame{FrameType: FrameTypeIDR, FrameNumber: 2, SliceIndex: 2})
	assert.Equal(t, 3, fq.Len())
	assert.Equal(t, uint64(1), fq.DroppedFrames())
}

func TestFrameQueueLatencyReductionDisabled(t *testing.T) {
	fq := NewFrameQueue(false)
	fq.Push(pFrame(1))
	fq.Push(pFrame(2))
	fq.Push(iFrame(3))
	assert.Equal(t, 3, fq.Len())
	assert.Equal(t, uint64(0), fq.DroppedFrames())
	assert.Equal(t, uint32(1), fq.Pull().FrameNumber)
}

func TestFrameQueuePullBlocksUntilPush(t *testing.T) {
	fq := NewFrameQueue(true)
	got := make(chan *Frame, 1)
	go func() {
		got <- fq.Pull()
	}()

	select {
	case <-got:
		t.Fatal("Pull returned from an empty queue")
	case <-time.After(50 * time.Millisecond):
		// still blocked, as expected
	}

	fq.Push(iFrame(99))
	select {
	case frame := <-got:
		assert.Equal(t, uint32(99), frame.FrameNumber)
	case <-time.After(time.Second):
		t.Fatal("Pull did not wake after a push")
	}
}

func TestFrameQueuePullTimeoutExpires(t *testing.T) {
	fq := NewFrameQueue(true)
	start := time.Now()
	frame := fq.PullTimeout(100 * time.Millisecond)
	elapsed := time.Since(start)
	assert.Nil(t, frame)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

// A timeout shorter than the scheduling jitter between arming the
// timer and sleeping on the condition must still wake the puller.
// Busy goroutines on a small GOMAXPROCS widen that window, so a
// broadcast not ordered after the wait registration hangs here.
func TestFrameQueuePullTimeoutUnderSchedulerPressure(t *testing.T) {
	prev := runtime.GOMAXPROCS(2)
	defer runtime.GOMAXPROCS(prev)

	fq := NewFrameQueue(true)
	stop := make(chan bool)
	defer close(stop)
	for i := 0; i < 2; i++ {
		go func() {
			for {
				select {
				case <-stop:
					return
				default:
				}
			}
		}()
	}

	done := make(chan bool)
	go func() {
		for i := 0; i < 3000; i++ {
			if fq.PullTimeout(time.Nanosecond) != nil {
				t.Error("PullTimeout produced a frame from an idle queue")
				break
			}
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(60 * time.Second):
		t.Fatal("PullTimeout blocked past its timeout on an idle queue")
	}
}

func TestFrameQueuePullTimeoutDelivers(t *testing.T) {
	fq := NewFrameQueue(true)
	go func() {
		time.Sleep(30 * time.Millisecond)
		fq.Push(pFrame(7))
	}()
	frame := fq.PullTimeout(time.Second)
	require.NotNil(t, frame)
	assert.Equal(t, uint32(7), frame.FrameNumber)
}

func TestFrameQueueConcurrentProducerConsumer(t *testing.T) {
	const frameCount = 200
	fq := NewFrameQueue(false) // plain FIFO so every frame must arrive

	go func() {
		for n := uint32(1); n <= frameCount; n++ {
			fq.Push(pFrame(n))
		}
	}()

	for n := uint32(1); n <= frameCount; n++ {
		frame := fq.PullTimeout(2 * time.Second)
		require.NotNil(t, frame, "timed out waiting for frame %d", n)
		assert.Equal(t, n, frame.FrameNumber)
	}
	assert.Equal(t, 0, fq.Len())
	assert.Equal(t, uint64(0), fq.DroppedFrames())
}
