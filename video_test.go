// turboshrimp project video_test.go

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
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveVideo listens on loopback, writes the given stream to the first
// client that connects, and optionally closes the connection when done
// writing.  The returned function cleans up.
func serveVideo(t *testing.T, stream []byte, closeWhenDone bool) (port int, cleanup func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	connCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write(stream)
		if closeWhenDone {
			conn.Close()
		}
		connCh <- conn // hold the conn so it stays open until cleanup
	}()
	cleanup = func() {
		ln.Close()
		select {
		case conn := <-connCh:
			conn.Close()
		default:
		}
	}
	return ln.Addr().(*net.TCPAddr).Port, cleanup
}

func TestVideoSessionDeliversFrames(t *testing.T) {
	port, cleanup := serveVideo(t, streamOfThree(), true)
	defer cleanup()

	drone := new(Drone)
	drone.SetVideoLatencyReduction(false) // keep every frame so the test is deterministic
	fq, err := drone.VideoConnect("127.0.0.1", port)
	require.NoError(t, err)
	assert.Same(t, fq, drone.VideoFrames())

	for _, want := range []FrameType{FrameTypeP, FrameTypeIDR, FrameTypeI} {
		frame := fq.PullTimeout(2 * time.Second)
		require.NotNil(t, frame, "timed out waiting for a %v frame", want)
		assert.Equal(t, want, frame.FrameType)
	}

	// the server has closed the stream, nothing further arrives
	assert.Nil(t, fq.PullTimeout(100*time.Millisecond))
	assert.Equal(t, uint64(0), fq.DroppedFrames())
	drone.VideoDisconnect()
}

func TestVideoSessionLatencyReduction(t *testing.T) {
	var stream []byte
	stream = append(stream, buildRecord("PaVE", paveHeaderSize, FrameTypeP, 0, 1, []byte("p1"))...)
	stream = append(stream, buildRecord("PaVE", paveHeaderSize, FrameTypeP, 0, 2, []byte("p2"))...)
	stream = append(stream, buildRecord("PaVE", paveHeaderSize, FrameTypeP, 0, 3, []byte("p3"))...)
	stream = append(stream, buildRecord("PaVE", paveHeaderSize, FrameTypeI, 0, 4, []byte("i4"))...)
	port, cleanup := serveVideo(t, stream, false) // session stays open
	defer cleanup()

	drone := new(Drone)
	fq, err := drone.VideoConnect("127.0.0.1", port)
	require.NoError(t, err)

	// nothing is pulled, so the keyframe must flush the three P frames
	require.Eventually(t, func() bool {
		return fq.DroppedFrames() == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, fq.Len())

	frame := fq.PullTimeout(2 * time.Second)
	require.NotNil(t, frame)
	assert.Equal(t, FrameTypeI, frame.FrameType)
	assert.Equal(t, uint32(4), frame.FrameNumber)

	drone.VideoDisconnect()
}

func TestVideoRecordingTee(t *testing.T) {
	var stream []byte
	stream = append(stream, buildRecord("PaVE", paveHeaderSize, FrameTypeP, 0, 1, []byte("p-frame"))...)
	stream = append(stream, junkRecord()...) // junk blocks must not be recorded
	stream = append(stream, buildRecord("PaVE", paveHeaderSize, FrameTypeI, 0, 2, []byte("i-frame"))...)
	port, cleanup := serveVideo(t, stream, true)
	defer cleanup()

	var rec bytes.Buffer
	drone := new(Drone)
	drone.SetVideoLatencyReduction(false)
	require.NoError(t, drone.StartVideoRecording(&rec))
	assert.Error(t, drone.StartVideoRecording(&rec), "a second recording must be refused")

	fq, err := drone.VideoConnect("127.0.0.1", port)
	require.NoError(t, err)
	// pulling the last frame guarantees both frames have been recorded
	require.NotNil(t, fq.PullTimeout(2*time.Second))
	require.NotNil(t, fq.PullTimeout(2*time.Second))
	drone.StopVideoRecording()

	// the recording must itself be a readable PaVE stream
	replay := bytes.NewReader(rec.Bytes())
	frame, err := ReadFrame(replay)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeP, frame.FrameType)
	assert.Equal(t, uint32(1), frame.FrameNumber)
	assert.Equal(t, []byte("p-frame"), frame.Payload)

	frame, err = ReadFrame(replay)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeI, frame.FrameType)
	assert.Equal(t, []byte("i-frame"), frame.Payload)

	_, err = ReadFrame(replay)
	assert.ErrorIs(t, err, io.EOF)
	drone.VideoDisconnect()
}
