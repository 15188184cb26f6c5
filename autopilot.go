// autopilot.go

// This file contains simple navigation routines which fly the drone to
// a target using the telemetry feedback loop.

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
	"time"

	"github.com/sirupsen/logrus"
)

const autopilotPeriodMs = 25 // how often the autopilot(s) monitor the drone

const (
	altitudeToleranceMm = 50  // how close FlyToAltitude needs to get
	yawToleranceDeg     = 2.0 // how close FlyToYaw needs to get
)

// CancelFlyToAltitude stops any in-flight FlyToAltitude navigation.
// The drone should stop moving vertically.
func (drone *Drone) CancelFlyToAltitude() {
	drone.autoAltMu.Lock()
	drone.autoAlt = false
	drone.autoAltMu.Unlock()
}

// FlyToAltitude starts vertical movement to the specified altitude in
// millimetres.  The func returns immediately and a Goroutine handles
// the navigation.  The caller may optionally listen on the 'done'
// channel for a signal that the navigation is complete (may have been
// cancelled).
func (drone *Drone) FlyToAltitude(mm int32) (done chan bool, err error) {
	// are we already navigating?
	drone.autoAltMu.RLock()
	if drone.autoAlt {
		drone.autoAltMu.RUnlock()
		return nil, errors.New("already navigating vertically")
	}
	drone.autoAltMu.RUnlock()

	drone.autoAltMu.Lock()
	drone.autoAlt = true
	drone.autoAltMu.Unlock()

	done = make(chan bool, 1) // buffered so send doesn't block

	go func() {
		for {
			// has autoflight been cancelled?
			drone.autoAltMu.RLock()
			cancelled := drone.autoAlt == false
			drone.autoAltMu.RUnlock()
			if cancelled {
				logrus.Debug("vertical navigation finished")
				// stop vertical movement
				drone.ctrlMu.Lock()
				drone.ctrlLy = 0
				drone.ctrlMu.Unlock()
				drone.sendStickUpdate()
				done <- true
				return
			}

			drone.ndMu.RLock()
			delta := mm - drone.nd.Demo.Altitude // delta will be positive if we are too low
			drone.ndMu.RUnlock()

			drone.ctrlMu.Lock()
			switch {
			case delta > 400:
				drone.ctrlLy = 32500 // full throttle if >40cm off target
			case delta > altitudeToleranceMm:
				drone.ctrlLy = 16250 // half throttle when closer
			case delta < -400:
				drone.ctrlLy = -32500
			case delta < -altitudeToleranceMm:
				drone.ctrlLy = -16250
			default:
				// close enough! Cancel...
				drone.autoAltMu.Lock()
				drone.autoAlt = false
				drone.autoAltMu.Unlock()
			}
			drone.ctrlMu.Unlock()
			drone.sendStickUpdate()

			time.Sleep(autopilotPeriodMs * time.Millisecond)
		}
	}()

	return done, nil
}

// CancelFlyToYaw stops any in-flight FlyToYaw navigation.  The drone
// should stop rotating.
func (drone *Drone) CancelFlyToYaw() {
	drone.autoYawMu.Lock()
	drone.autoYaw = false
	drone.autoYawMu.Unlock()
}

// FlyToYaw starts rotational movement to the specified heading in
// degrees, which should be between -180 and +180 relative to the
// heading the drone booted at.  The func returns immediately and a
// Goroutine handles the navigation.  The caller may optionally listen
// on the 'done' channel for a signal that the navigation is complete
// (may have been cancelled).
func (drone *Drone) FlyToYaw(targetYaw float32) (done chan bool, err error) {
	if targetYaw < -180 || targetYaw > 180 {
		return nil, errors.New("target yaw must be between -180 and +180")
	}

	// are we already navigating?
	drone.autoYawMu.RLock()
	if drone.autoYaw {
		drone.autoYawMu.RUnlock()
		return nil, errors.New("already navigating rotationally")
	}
	drone.autoYawMu.RUnlock()

	drone.autoYawMu.Lock()
	drone.autoYaw = true
	drone.autoYawMu.Unlock()

	done = make(chan bool, 1) // buffered so send doesn't block

	go func() {
		for {
			// has autoflight been cancelled?
			drone.autoYawMu.RLock()
			cancelled := drone.autoYaw == false
			drone.autoYawMu.RUnlock()
			if cancelled {
				logrus.Debug("rotational navigation finished")
				// stop rotational movement
				drone.ctrlMu.Lock()
				drone.ctrlLx = 0
				drone.ctrlMu.Unlock()
				drone.sendStickUpdate()
				done <- true
				return
			}

			drone.ndMu.RLock()
			currentYaw := drone.nd.Demo.Yaw
			drone.ndMu.RUnlock()

			// always turn the short way round
			delta := targetYaw - currentYaw
			if delta > 180 {
				delta -= 360
			} else if delta < -180 {
				delta += 360
			}

			drone.ctrlMu.Lock()
			switch {
			case delta > 10:
				drone.ctrlLx = 32500 // full throttle if >10deg off target
			case delta > yawToleranceDeg:
				drone.ctrlLx = 16250 // half throttle when closer
			case delta < -10:
				drone.ctrlLx = -32500
			case delta < -yawToleranceDeg:
				drone.ctrlLx = -16250
			default:
				// close enough! Cancel...
				drone.autoYawMu.Lock()
				drone.autoYaw = false
				drone.autoYawMu.Unlock()
			}
			drone.ctrlMu.Unlock()
			drone.sendStickUpdate()

			time.Sleep(autopilotPeriodMs * time.Millisecond)
		}
	}()

	return done, nil
}
