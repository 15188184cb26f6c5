// video.go

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
	"errors"
	"fmt"
	"io"
	"net"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// VideoConnect attempts to connect to the drone's video stream at the
// provided address and starts the demultiplexer.  A FrameQueue of
// demultiplexed H.264 frames is returned along with any error; pull
// from it as fast as your decoder allows and let the queue deal with
// any backlog.
func (drone *Drone) VideoConnect(droneAddr string, videoPort int) (*FrameQueue, error) {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", droneAddr, videoPort))
	if err != nil {
		return nil, err
	}
	drone.videoConn = conn
	drone.videoSessionID = uuid.NewV4().String()
	drone.videoFrames = NewFrameQueue(!drone.videoLatencyOff)
	drone.videoStopChan = make(chan bool, 2)
	go drone.videoStreamListener()
	logrus.Debugf("video session %s connected to %s:%d", drone.videoSessionID, droneAddr, videoPort)
	return drone.videoFrames, nil
}

// VideoConnectDefault attempts to connect to the video stream of a
// drone at the default network address and port.
func (drone *Drone) VideoConnectDefault() (*FrameQueue, error) {
	return drone.VideoConnect(defaultDroneAddr, defaultVideoPort)
}

// VideoDisconnect closes the connection to the video stream.
func (drone *Drone) VideoDisconnect() {
	drone.videoStopChan <- true
	drone.videoConn.Close()
}

// VideoFrames returns the frame queue of the current video session, or
// nil if VideoConnect has not been called.
func (drone *Drone) VideoFrames() *FrameQueue {
	return drone.videoFrames
}

// SetVideoLatencyReduction controls whether the frame queue of
// subsequent video sessions discards its backlog when a keyframe
// arrives.  It is enabled by default; disable it if you would rather
// have every frame late than a few frames dropped, e.g. when saving
// the stream rather than flying by it.  Takes effect from the next
// VideoConnect.
func (drone *Drone) SetVideoLatencyReduction(enabled bool) {
	drone.videoLatencyOff = !enabled
}

// videoStreamListener runs as a Goroutine, demultiplexing frames from
// the video connection into the frame queue until the stream ends or
// VideoDisconnect is called.
func (drone *Drone) videoStreamListener() {
	for {
		frame, err := ReadFrame(drone.videoConn)
		if err != nil {
			select {
			case <-drone.videoStopChan:
				logrus.Debugf("video session %s stopping", drone.videoSessionID)
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				logrus.Debugf("video session %s: stream ended", drone.videoSessionID)
			} else {
				logrus.Errorf("video session %s: %v", drone.videoSessionID, err)
			}
			drone.videoConn.Close()
			return
		}
		drone.recordFrame(frame)
		drone.videoFrames.Push(frame)
	}
}
