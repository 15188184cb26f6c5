// record.go

// This file contains the PaVE encoder and the video recording tee,
// which persists the stream in the same encapsulation the drone sends.

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
	"encoding/binary"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

const (
	paveVersion   = 3 // protocol version we write
	paveCodecH264 = 4 // MPEG4_AVC
)

// EncodeFrame renders a frame back into PaVE wire form: a baseline
// header followed by the payload.  Header extensions present on the
// original frame are not reproduced.  A stream of such records can be
// fed back through ReadFrame, or to any other PaVE-aware tool.
func EncodeFrame(frame *Frame) []byte {
	buff := make([]byte, paveHeaderSize+len(frame.Payload))
	copy(buff[0:4], paveSignature[:])
	buff[4] = paveVersion
	buff[5] = paveCodecH264
	binary.LittleEndian.PutUint16(buff[6:8], paveHeaderSize)
	binary.LittleEndian.PutUint32(buff[8:12], uint32(len(frame.Payload)))
	binary.LittleEndian.PutUint16(buff[12:14], frame.EncodedWidth)
	binary.LittleEndian.PutUint16(buff[14:16], frame.EncodedHeight)
	binary.LittleEndian.PutUint16(buff[16:18], frame.DisplayWidth)
	binary.LittleEndian.PutUint16(buff[18:20], frame.DisplayHeight)
	binary.LittleEndian.PutUint32(buff[20:24], frame.FrameNumber)
	binary.LittleEndian.PutUint32(buff[24:28], frame.Timestamp)
	buff[28] = 1 // total chunks
	buff[30] = byte(frame.FrameType)
	buff[42] = frame.SliceIndex + 1 // total slices, at least this one
	buff[43] = frame.SliceIndex
	binary.LittleEndian.PutUint32(buff[48:52], uint32(len(frame.Payload))) // advertised size
	copy(buff[paveHeaderSize:], frame.Payload)
	return buff
}

// StartVideoRecording tees every frame of the video session to w,
// re-encapsulated via EncodeFrame.  Recording survives video
// reconnects; it continues until StopVideoRecording or a write error.
func (drone *Drone) StartVideoRecording(w io.Writer) error {
	drone.recMu.Lock()
	defer drone.recMu.Unlock()
	if drone.recWriter != nil {
		return errors.New("video recording already running")
	}
	drone.recWriter = w
	return nil
}

// StopVideoRecording stops the recording tee.  The writer is not
// closed, that is up to the caller.
func (drone *Drone) StopVideoRecording() {
	drone.recMu.Lock()
	drone.recWriter = nil
	drone.recMu.Unlock()
}

// recordFrame writes one frame to the recording tee, if one is active.
// Called by the video stream listener for every demultiplexed frame,
// before the frame is queued.
func (drone *Drone) recordFrame(frame *Frame) {
	drone.recMu.Lock()
	defer drone.recMu.Unlock()
	if drone.recWriter == nil {
		return
	}
	if _, err := drone.recWriter.Write(EncodeFrame(frame)); err != nil {
		logrus.Errorf("video recording stopped: %v", err)
		drone.recWriter = nil
	}
}
