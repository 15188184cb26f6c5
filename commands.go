// commands.go

// This file describes the AT command protocol spoken to the drone's
// control port, and provides builders for every command we use.

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
	"math"
	"strconv"
)

// atCommand is a single command awaiting its sequence number.  Commands
// are sequenced at send time, under the control mutex, so builders never
// see sequence numbers.
type atCommand struct {
	name string
	args []string // already encoded
}

func newATCommand(name string, args ...string) (cmd atCommand) {
	cmd.name = name
	cmd.args = args
	return cmd
}

// atCommandToBuffer renders a command in the drone's ASCII wire form:
// AT*NAME=seq[,arg...]<CR>
func atCommandToBuffer(cmd atCommand, seq uint32) (buff []byte) {
	s := "AT*" + cmd.name + "=" + strconv.FormatUint(uint64(seq), 10)
	for _, arg := range cmd.args {
		s += "," + arg
	}
	return []byte(s + "\r")
}

func atInt(val int) string {
	return strconv.Itoa(val)
}

// atFloat encodes a float argument the way the firmware expects: the
// IEEE-754 bit pattern reinterpreted as a signed 32-bit integer and
// printed in decimal.  E.g. -0.8 encodes as "-1085485875".  Zero is
// normalised first: negating a neutral stick yields -0.0, whose bit
// pattern would otherwise encode as "-2147483648".
func atFloat(val float32) string {
	if val == 0 {
		return "0"
	}
	return strconv.Itoa(int(int32(math.Float32bits(val))))
}

func atString(val string) string {
	return `"` + val + `"`
}

// AT*REF input bit-field...
const (
	refBase         = 1<<18 | 1<<20 | 1<<22 | 1<<24 | 1<<28 // 0x11540000, always-set bits
	refTakeOffBit   = 1 << 9
	refEmergencyBit = 1 << 8
)

func newRefCommand(flying bool, emergency bool) atCommand {
	input := refBase
	if flying {
		input |= refTakeOffBit
	}
	if emergency {
		input |= refEmergencyBit
	}
	return newATCommand("REF", atInt(input))
}

// AT*PCMD flag bits...
const (
	pcmdProgressiveBit = 1 << 0 // apply the stick values rather than auto-hover
	pcmdCombinedYawBit = 1 << 1
	pcmdAbsoluteBit    = 1 << 2 // magnetometer-relative control, AT*PCMD_MAG only
)

// newPcmdCommand builds the progressive movement command.  All-zero
// sticks are sent without the progressive bit, which asks the drone to
// hold position using its bottom camera.
func newPcmdCommand(roll, pitch, gaz, yaw float32) atCommand {
	flags := 0
	if roll != 0 || pitch != 0 || gaz != 0 || yaw != 0 {
		flags = pcmdProgressiveBit
	}
	return newATCommand("PCMD",
		atInt(flags), atFloat(roll), atFloat(pitch), atFloat(gaz), atFloat(yaw))
}

// newPcmdMagCommand builds the magnetometer-referenced variant of the
// movement command: roll and pitch are interpreted relative to the
// controller's heading rather than the drone's nose.  heading and
// headingAccuracy are normalised from degrees to the -1..1 range the
// firmware expects.
func newPcmdMagCommand(roll, pitch, gaz, yaw, heading, headingAccuracy float32) atCommand {
	flags := 0
	if roll != 0 || pitch != 0 || gaz != 0 || yaw != 0 {
		flags = pcmdProgressiveBit | pcmdAbsoluteBit
	}
	return newATCommand("PCMD_MAG",
		atInt(flags), atFloat(roll), atFloat(pitch), atFloat(gaz), atFloat(yaw),
		atFloat(heading), atFloat(headingAccuracy))
}

// AT*CTRL modes...
const (
	ctrlNoControlMode     = 0
	ctrlCfgGetControlMode = 4 // ask for the config file on the control port
	ctrlAckControlMode    = 5 // clear the command-acknowledged state bit
)

func newCtrlCommand(mode int) atCommand {
	return newATCommand("CTRL", atInt(mode), atInt(0))
}

func newConfigCommand(key string, value string) atCommand {
	return newATCommand("CONFIG", atString(key), atString(value))
}

// newConfigIDsCommand scopes the next AT*CONFIG to a multiconfig
// session/user/application profile.
func newConfigIDsCommand(sessionID, userID, applicationID string) atCommand {
	return newATCommand("CONFIG_IDS",
		atString(sessionID), atString(userID), atString(applicationID))
}

func newComwdgCommand() atCommand {
	return newATCommand("COMWDG")
}

func newFtrimCommand() atCommand {
	return newATCommand("FTRIM")
}

// AT*CALIB device selectors...
const calibDeviceMagnetometer = 0

func newCalibCommand(device int) atCommand {
	return newATCommand("CALIB", atInt(device))
}

// FlightAnimation is a pre-programmed manoeuvre performed via AT*ANIM.
type FlightAnimation int

// Flight animations...
const (
	AnimPhiM30Deg FlightAnimation = iota // 0
	AnimPhi30Deg
	AnimThetaM30Deg
	AnimTheta30Deg
	AnimTheta20DegYaw200Deg
	AnimTheta20DegYawM200Deg
	AnimTurnaround
	AnimTurnaroundGodown
	AnimYawShake
	AnimYawDance
	AnimPhiDance
	AnimThetaDance
	AnimVzDance
	AnimWave
	AnimPhiThetaMixed
	AnimDoublePhiThetaMixed
	AnimFlipAhead // 16
	AnimFlipBehind
	AnimFlipLeft
	AnimFlipRight
)

// animDurations holds the vendor default duration for each animation,
// in milliseconds.
var animDurations = [...]int{
	1000, 1000, 1000, 1000, 1000, 1000,
	5000, 5000, 2000, 5000, 5000, 5000, 5000, 5000, 5000, 5000,
	15, 15, 15, 15,
}

func newAnimCommand(anim FlightAnimation, durationMs int) atCommand {
	return newATCommand("ANIM", atInt(int(anim)), atInt(durationMs))
}

// LEDAnimation is a light show performed via AT*LED.
type LEDAnimation int

// LED animations...
const (
	LEDBlinkGreenRed LEDAnimation = iota // 0
	LEDBlinkGreen
	LEDBlinkRed
	LEDBlinkOrange
	LEDSnakeGreenRed
	LEDFire
	LEDStandard
	LEDRed
	LEDGreen
	LEDRedSnake
	LEDBlank
	LEDRightMissile
	LEDLeftMissile
	LEDDoubleMissile
	LEDFrontLeftGreenOthersRed
	LEDFrontRightGreenOthersRed
	LEDRearRightGreenOthersRed
	LEDRearLeftGreenOthersRed
	LEDLeftGreenRightRed
	LEDLeftRedRightGreen
	LEDBlinkStandard // 20
)

func newLedCommand(anim LEDAnimation, frequencyHz float32, durationSecs int) atCommand {
	return newATCommand("LED", atInt(int(anim)), atFloat(frequencyHz), atInt(durationSecs))
}

// FlipType represents a flip direction for the Flip() manoeuvre.
type FlipType int

// Flip types...
const (
	FlipForward FlipType = iota
	FlipLeft
	FlipBackward
	FlipRight
)

func flipAnimation(dir FlipType) FlightAnimation {
	switch dir {
	case FlipLeft:
		return AnimFlipLeft
	case FlipBackward:
		return AnimFlipBehind
	case FlipRight:
		return AnimFlipRight
	default:
		return AnimFlipAhead
	}
}

// StickMessage holds the values of a joystick-like controller in SDL
// conventions: each axis runs -32768..32767, Rx/Ry are the right stick
// (roll/pitch), Lx/Ly the left stick (yaw/climb).
type StickMessage struct {
	Rx, Ry, Lx, Ly int16
}

// stickToFloat converts a stick axis value to the -1.0..1.0 range the
// PCMD command expects.
func stickToFloat(val int16) float32 {
	return float32(val) / 32768.0
}
