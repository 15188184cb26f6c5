// turboshrimp.go

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
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map"
	"github.com/sirupsen/logrus"
)

// PackageVersion is the semver of this package.
const PackageVersion = "v0.9.0"

const (
	defaultDroneAddr = "192.168.1.1"

	defaultNavdataPort = 5554
	defaultVideoPort   = 5555
	defaultControlPort = 5556
)

const keepAlivePeriodMs = 30 // the firmware watchdog fires after ~2s of silence

// Drone holds our state of one AR.Drone connection.  The zero value is
// ready to use: call Connect or ConnectDefault first.
type Drone struct {
	ctrlMu               sync.Mutex // protects the following group
	ctrlConn             *net.UDPConn
	ctrlConnecting       bool
	ctrlConnected        bool
	ctrlSeq              uint32
	ctrlRx, ctrlRy       int16 // right stick: roll, pitch
	ctrlLx, ctrlLy       int16 // left stick: yaw, climb
	ctrlFlying           bool
	ctrlEmergency        bool // stream the emergency bit until the drone confirms emergency
	ctrlDisableEmergency bool // stream the emergency bit until the drone leaves emergency
	ctrlAbsolute         bool // steer relative to the controller heading via AT*PCMD_MAG
	ctrlHeading          float32
	ctrlHeadingAccuracy  float32
	stickChan            chan StickMessage // for the stick listener
	stickListening       bool

	navConn     *net.UDPConn
	navStopChan chan bool

	ndMu           sync.RWMutex // protects the following group
	nd             Navdata
	navSubscribers cmap.ConcurrentMap

	videoConn       net.Conn
	videoStopChan   chan bool
	videoSessionID  string
	videoFrames     *FrameQueue
	videoLatencyOff bool // zero value keeps latency reduction enabled

	recMu     sync.Mutex
	recWriter io.Writer

	autoAltMu sync.RWMutex // protects autoAlt
	autoAlt   bool
	autoYawMu sync.RWMutex // protects autoYaw
	autoYaw   bool
}

// Connect attempts to establish a control and telemetry session with
// the drone at the given address, waiting a few seconds for the first
// navdata packet to arrive.  It also performs the navdata bootstrap:
// asking the drone to switch from full navdata to the compact demo
// stream this package decodes.
func (drone *Drone) Connect(droneAddr string, controlPort int, navdataPort int) error {
	droneControlAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", droneAddr, controlPort))
	if err != nil {
		return err
	}
	droneNavdataAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", droneAddr, navdataPort))
	if err != nil {
		return err
	}
	// refuse to trample a live session
	drone.ctrlMu.Lock()
	if drone.ctrlConnected {
		drone.ctrlMu.Unlock()
		return errors.New("already connected to the drone")
	}
	if drone.ctrlConnecting {
		drone.ctrlMu.Unlock()
		return errors.New("connection attempt already in progress")
	}
	drone.ctrlConnecting = true
	drone.ctrlSeq = 0 // each session numbers its commands from 1
	drone.ctrlConn, err = net.DialUDP("udp", nil, droneControlAddr)
	drone.ctrlMu.Unlock()
	if err != nil {
		drone.ctrlMu.Lock()
		drone.ctrlConnecting = false
		drone.ctrlMu.Unlock()
		return err
	}
	drone.navConn, err = net.DialUDP("udp", nil, droneNavdataAddr)
	if err != nil {
		drone.ctrlMu.Lock()
		drone.ctrlConnecting = false
		drone.ctrlConn.Close()
		drone.ctrlMu.Unlock()
		return err
	}

	drone.ndMu.Lock()
	if drone.navSubscribers == nil {
		drone.navSubscribers = cmap.New()
	}
	drone.ndMu.Unlock()

	drone.navStopChan = make(chan bool, 2)
	go drone.navdataListener()
	drone.sendNavdataTrigger()
	drone.SetNavdataDemo(true)

	// wait up to 3 seconds for the navdata stream to start
	for waits := 0; !drone.Connected(); waits++ {
		if waits == 10 {
			// release the sockets and the listener so a retry starts clean
			drone.Disconnect()
			return errors.New("timeout waiting for navdata from AR.Drone")
		}
		time.Sleep(333 * time.Millisecond)
	}

	go drone.keepAlive()

	return nil
}

// ConnectDefault attempts to connect to a drone at the default network
// address and ports.
func (drone *Drone) ConnectDefault() error {
	return drone.Connect(defaultDroneAddr, defaultControlPort, defaultNavdataPort)
}

// Disconnect from the drone.  The keepalive and navdata listener stop,
// so the firmware watchdog will pause the drone shortly afterwards.
func (drone *Drone) Disconnect() {
	drone.ctrlMu.Lock()
	drone.ctrlConnecting = false
	drone.ctrlConnected = false
	drone.ctrlMu.Unlock()
	if drone.navStopChan != nil {
		drone.navStopChan <- true
	}
	if drone.navConn != nil {
		drone.navConn.Close()
	}
	if drone.ctrlConn != nil {
		drone.ctrlConn.Close()
	}
}

// Connected returns true if we are currently connected to a drone.
func (drone *Drone) Connected() (c bool) {
	drone.ctrlMu.Lock()
	c = drone.ctrlConnected
	drone.ctrlMu.Unlock()
	return c
}

// GetNavdata returns the most recently decoded telemetry packet.
func (drone *Drone) GetNavdata() (nd Navdata) {
	drone.ndMu.RLock()
	nd = drone.nd
	drone.ndMu.RUnlock()
	return nd
}

// SubscribeNavdata registers a named subscription to the telemetry
// stream.  Every decoded packet is offered to the returned channel;
// packets are silently skipped while the subscriber is not keeping up,
// so depth trades memory for completeness.  The name must be unique
// among live subscriptions.
func (drone *Drone) SubscribeNavdata(name string, depth int) (<-chan Navdata, error) {
	drone.ndMu.Lock()
	if drone.navSubscribers == nil {
		drone.navSubscribers = cmap.New()
	}
	drone.ndMu.Unlock()
	ch := make(chan Navdata, depth)
	if !drone.navSubscribers.SetIfAbsent(name, ch) {
		return nil, fmt.Errorf("navdata subscription %s already exists", name)
	}
	return ch, nil
}

// UnsubscribeNavdata removes a subscription.  The channel is not
// closed, but nothing further will be sent on it.
func (drone *Drone) UnsubscribeNavdata(name string) {
	if drone.navSubscribers != nil {
		drone.navSubscribers.Remove(name)
	}
}

// navdataListener runs as a Goroutine, decoding every telemetry packet
// the drone sends and reacting to the session-management state bits.
func (drone *Drone) navdataListener() {
	buff := make([]byte, 4096)
	var lastSeq uint32
	for {
		n, err := drone.navConn.Read(buff)
		select {
		case <-drone.navStopChan:
			logrus.Debug("navdata listener stopping")
			return
		default:
		}
		if err != nil {
			logrus.Warnf("navdata read error: %v", err)
			continue
		}
		nd, err := parseNavdata(buff[:n])
		if err != nil {
			logrus.Debugf("navdata: discarding packet: %v", err)
			continue
		}
		if nd.Sequence != 0 && nd.Sequence <= lastSeq {
			logrus.Debugf("navdata: discarding out-of-order packet #%d", nd.Sequence)
			continue
		}
		lastSeq = nd.Sequence

		drone.ctrlMu.Lock()
		if !drone.ctrlConnected {
			if !drone.ctrlConnecting {
				// stray packet after Disconnect
				drone.ctrlMu.Unlock()
				continue
			}
			drone.ctrlConnected = true
			logrus.Debugf("navdata stream established (battery: %d%%)", nd.Demo.Battery)
		}
		emergency := drone.ctrlEmergency
		disableEmergency := drone.ctrlDisableEmergency
		drone.ctrlMu.Unlock()

		// session management, driven by the drone's state bits
		if nd.State.NavdataBootstrap {
			drone.SetNavdataDemo(true)
		}
		if nd.State.CommandAck {
			drone.sendConfigAck()
		}
		if nd.State.CommWatchdog {
			drone.sendWatchdogReset()
		}
		if nd.State.EmergencyLanding {
			if emergency {
				drone.ctrlMu.Lock()
				drone.ctrlEmergency = false
				drone.ctrlMu.Unlock()
			}
		} else if disableEmergency {
			drone.ctrlMu.Lock()
			drone.ctrlDisableEmergency = false
			drone.ctrlMu.Unlock()
		}

		drone.ndMu.Lock()
		drone.nd = nd
		drone.ndMu.Unlock()

		for item := range drone.navSubscribers.IterBuffered() {
			ch := item.Val.(chan Navdata)
			select {
			case ch <- nd:
			default: // this subscriber is full, skip it
			}
		}
	}
}

// keepAlive runs as a Goroutine for the duration of the connection,
// refreshing the flight reference and stick state often enough that the
// firmware watchdog never fires during normal operation.
func (drone *Drone) keepAlive() {
	for drone.Connected() {
		drone.sendRefUpdate()
		drone.sendStickUpdate()
		time.Sleep(keepAlivePeriodMs * time.Millisecond)
	}
	logrus.Debug("keepalive stopping")
}

// sendNavdataTrigger pokes the drone's navdata port so it starts
// streaming telemetry back at us.
func (drone *Drone) sendNavdataTrigger() {
	drone.navConn.Write([]byte{0x01, 0x00, 0x00, 0x00})
}

func (drone *Drone) sendRefUpdate() {
	drone.ctrlMu.Lock()
	defer drone.ctrlMu.Unlock()
	drone.ctrlSeq++
	cmd := newRefCommand(drone.ctrlFlying, drone.ctrlEmergency || drone.ctrlDisableEmergency)
	drone.ctrlConn.Write(atCommandToBuffer(cmd, drone.ctrlSeq))
}

// sendStickUpdate sends a progressive movement command built from the
// current stick state.  Note the vendor's sign convention: negative
// pitch flies forward and negative gaz descends.
func (drone *Drone) sendStickUpdate() {
	drone.ctrlMu.Lock()
	defer drone.ctrlMu.Unlock()
	drone.ctrlSeq++
	var cmd atCommand
	if drone.ctrlAbsolute {
		cmd = newPcmdMagCommand(
			stickToFloat(drone.ctrlRx),
			-stickToFloat(drone.ctrlRy),
			stickToFloat(drone.ctrlLy),
			stickToFloat(drone.ctrlLx),
			drone.ctrlHeading,
			drone.ctrlHeadingAccuracy)
	} else {
		cmd = newPcmdCommand(
			stickToFloat(drone.ctrlRx),
			-stickToFloat(drone.ctrlRy),
			stickToFloat(drone.ctrlLy),
			stickToFloat(drone.ctrlLx))
	}
	drone.ctrlConn.Write(atCommandToBuffer(cmd, drone.ctrlSeq))
}

// sendConfigAck clears the command-acknowledged bit after a config
// write has been accepted.
func (drone *Drone) sendConfigAck() {
	drone.ctrlMu.Lock()
	defer drone.ctrlMu.Unlock()
	drone.ctrlSeq++
	drone.ctrlConn.Write(atCommandToBuffer(newCtrlCommand(ctrlAckControlMode), drone.ctrlSeq))
}

// sendWatchdogReset revives a connection the firmware watchdog has
// paused.
func (drone *Drone) sendWatchdogReset() {
	drone.ctrlMu.Lock()
	defer drone.ctrlMu.Unlock()
	drone.ctrlSeq++
	drone.ctrlConn.Write(atCommandToBuffer(newComwdgCommand(), drone.ctrlSeq))
}

// UpdateSticks updates the stick positions held for the drone.  The
// values are sent by the keepalive cycle, so they persist until the
// next update.
func (drone *Drone) UpdateSticks(sm StickMessage) {
	drone.ctrlMu.Lock()
	drone.ctrlRx, drone.ctrlRy = sm.Rx, sm.Ry
	drone.ctrlLx, drone.ctrlLy = sm.Lx, sm.Ly
	drone.ctrlMu.Unlock()
}

// StartStickListener starts a Goroutine which receives StickMessages
// on the returned channel and applies them via UpdateSticks.
func (drone *Drone) StartStickListener() (sChan chan<- StickMessage, err error) {
	drone.ctrlMu.Lock()
	defer drone.ctrlMu.Unlock()
	if drone.stickListening {
		return nil, errors.New("stick listener already running")
	}
	drone.stickListening = true
	drone.stickChan = make(chan StickMessage, 10)
	go drone.stickListener()
	return drone.stickChan, nil
}

func (drone *Drone) stickListener() {
	for {
		drone.ctrlMu.Lock()
		listening, ch := drone.stickListening, drone.stickChan
		drone.ctrlMu.Unlock()
		if !listening {
			return
		}
		sm := <-ch
		drone.UpdateSticks(sm)
	}
}

// StopStickListener stops the stick listener Goroutine after the next
// message arrives.
func (drone *Drone) StopStickListener() {
	drone.ctrlMu.Lock()
	drone.stickListening = false
	drone.ctrlMu.Unlock()
}
