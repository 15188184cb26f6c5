// flightCommands.go

// This file contains the high-level flight command API

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

// TakeOff sends a takeoff request to the drone.  The takeoff reference
// is then repeated by the keepalive cycle until Land is called, as the
// firmware expects.  Call FlatTrim while the drone sits on level ground
// before the first takeoff of a session.
func (drone *Drone) TakeOff() {
	drone.ctrlMu.Lock()
	drone.ctrlFlying = true
	drone.ctrlMu.Unlock()
	drone.sendRefUpdate()
}

// Land sends a normal land request to the drone.
func (drone *Drone) Land() {
	drone.ctrlMu.Lock()
	drone.ctrlFlying = false
	drone.ctrlMu.Unlock()
	drone.sendRefUpdate()
}

// Emergency cuts the motors immediately.  The drone will fall, not
// land.  The emergency bit is repeated until the drone reports it has
// entered the emergency state.
func (drone *Drone) Emergency() {
	drone.ctrlMu.Lock()
	drone.ctrlFlying = false
	drone.ctrlEmergency = true
	drone.ctrlMu.Unlock()
	drone.sendRefUpdate()
}

// DisableEmergency recovers the drone from the emergency state so that
// it can fly again.
func (drone *Drone) DisableEmergency() {
	drone.ctrlMu.Lock()
	drone.ctrlDisableEmergency = true
	drone.ctrlMu.Unlock()
	drone.sendRefUpdate()
}

// FlatTrim tells the drone it is sitting on a level surface and should
// take that as its reference of horizontal.  Never send this in flight.
func (drone *Drone) FlatTrim() {
	drone.ctrlMu.Lock()
	defer drone.ctrlMu.Unlock()

	drone.ctrlSeq++
	drone.ctrlConn.Write(atCommandToBuffer(newFtrimCommand(), drone.ctrlSeq))
}

// CalibrateMagnetometer asks the drone to calibrate its compass by
// spinning around itself.  The drone must be flying.
func (drone *Drone) CalibrateMagnetometer() {
	drone.ctrlMu.Lock()
	defer drone.ctrlMu.Unlock()

	drone.ctrlSeq++
	drone.ctrlConn.Write(atCommandToBuffer(newCalibCommand(calibDeviceMagnetometer), drone.ctrlSeq))
}

// Animate performs one of the drone's pre-programmed manoeuvres using
// the vendor's default duration for it.
func (drone *Drone) Animate(anim FlightAnimation) {
	durationMs := 1000
	if int(anim) < len(animDurations) {
		durationMs = animDurations[anim]
	}
	drone.AnimateFor(anim, durationMs)
}

// AnimateFor performs one of the drone's pre-programmed manoeuvres with
// an explicit duration in milliseconds.
func (drone *Drone) AnimateFor(anim FlightAnimation, durationMs int) {
	drone.ctrlMu.Lock()
	defer drone.ctrlMu.Unlock()

	drone.ctrlSeq++
	drone.ctrlConn.Write(atCommandToBuffer(newAnimCommand(anim, durationMs), drone.ctrlSeq))
}

// Flip tells the drone to flip in the given direction.  Make sure there
// is room above and below before trying this.
func (drone *Drone) Flip(dir FlipType) {
	drone.Animate(flipAnimation(dir))
}

// LEDAnimate runs a light show on the drone's LEDs at the given
// frequency for the given number of seconds.
func (drone *Drone) LEDAnimate(anim LEDAnimation, frequencyHz float32, durationSecs int) {
	drone.ctrlMu.Lock()
	defer drone.ctrlMu.Unlock()

	drone.ctrlSeq++
	drone.ctrlConn.Write(atCommandToBuffer(newLedCommand(anim, frequencyHz, durationSecs), drone.ctrlSeq))
}

// SetAbsoluteControl switches movement commands to the
// magnetometer-referenced form: roll and pitch steer relative to the
// given controller heading (degrees clockwise from magnetic north, with
// its accuracy) rather than whichever way the drone happens to face.
// Call it again whenever the controller heading changes.  Requires a
// drone with a working magnetometer.
func (drone *Drone) SetAbsoluteControl(headingDeg float32, accuracyDeg float32) {
	drone.ctrlMu.Lock()
	drone.ctrlAbsolute = true
	drone.ctrlHeading = headingDeg / 180
	drone.ctrlHeadingAccuracy = accuracyDeg / 180
	drone.ctrlMu.Unlock()
	drone.sendStickUpdate()
}

// DisableAbsoluteControl reverts movement commands to the drone-relative
// form.
func (drone *Drone) DisableAbsoluteControl() {
	drone.ctrlMu.Lock()
	drone.ctrlAbsolute = false
	drone.ctrlMu.Unlock()
	drone.sendStickUpdate()
}

// *** The following are 'macro' commands which are here purely
// *** to make the drone easier to use in some circumstances.

// Hover simply sets the sticks to zero - useful as a panic action!
func (drone *Drone) Hover() {
	drone.ctrlMu.Lock()
	drone.ctrlLx = 0
	drone.ctrlLy = 0
	drone.ctrlRx = 0
	drone.ctrlRy = 0
	drone.ctrlMu.Unlock()
	drone.sendStickUpdate()
}

// Forward tells the drone to start moving forward at a given speed between 0 and 100
func (drone *Drone) Forward(pct int) {
	var speed int16
	if pct > 0 {
		speed = int16(pct) * 327 // /100 * 32767
	}
	drone.UpdateSticks(StickMessage{Rx: 0, Ry: speed, Lx: 0, Ly: 0})
}

// Backward tells the drone to start moving Backward at a given speed between 0 and 100
func (drone *Drone) Backward(pct int) {
	var speed int16
	if pct > 0 {
		speed = int16(pct) * 327 // /100 * 32767
	}
	drone.UpdateSticks(StickMessage{Rx: 0, Ry: -speed, Lx: 0, Ly: 0})
}

// Left tells the drone to start moving Left at a given speed between 0 and 100
func (drone *Drone) Left(pct int) {
	var speed int16
	if pct > 0 {
		speed = int16(pct) * 327 // /100 * 32767
	}
	drone.UpdateSticks(StickMessage{Rx: -speed, Ry: 0, Lx: 0, Ly: 0})
}

// Right tells the drone to start moving Right at a given speed between 0 and 100
func (drone *Drone) Right(pct int) {
	var speed int16
	if pct > 0 {
		speed = int16(pct) * 327 // /100 * 32767
	}
	drone.UpdateSticks(StickMessage{Rx: speed, Ry: 0, Lx: 0, Ly: 0})
}

// Up tells the drone to start climbing at a given speed between 0 and 100
func (drone *Drone) Up(pct int) {
	var speed int16
	if pct > 0 {
		speed = int16(pct) * 327 // /100 * 32767
	}
	drone.UpdateSticks(StickMessage{Rx: 0, Ry: 0, Lx: 0, Ly: speed})
}

// Down tells the drone to start descending at a given speed between 0 and 100
func (drone *Drone) Down(pct int) {
	var speed int16
	if pct > 0 {
		speed = int16(pct) * 327 // /100 * 32767
	}
	drone.UpdateSticks(StickMessage{Rx: 0, Ry: 0, Lx: 0, Ly: -speed})
}

// Clockwise tells the drone to start rotating Clockwise at a given speed between 0 and 100
func (drone *Drone) Clockwise(pct int) {
	var speed int16
	if pct > 0 {
		speed = int16(pct) * 327 // /100 * 32767
	}
	drone.UpdateSticks(StickMessage{Rx: 0, Ry: 0, Lx: speed, Ly: 0})
}

// TurnRight is an alias for Clockwise()
func (drone *Drone) TurnRight(pct int) {
	drone.Clockwise(pct)
}

// Anticlockwise tells the drone to start rotating Anticlockwise at a given speed between 0 and 100
func (drone *Drone) Anticlockwise(pct int) {
	var speed int16
	if pct > 0 {
		speed = int16(pct) * 327 // /100 * 32767
	}
	drone.UpdateSticks(StickMessage{Rx: 0, Ry: 0, Lx: -speed, Ly: 0})
}

// TurnLeft is an alias for Anticlockwise()
func (drone *Drone) TurnLeft(pct int) {
	drone.Anticlockwise(pct)
}

// CounterClockwise is an alias for Anticlockwise()
func (drone *Drone) CounterClockwise(pct int) {
	drone.Anticlockwise(pct)
}

// *** End of 'macro' commands ***
