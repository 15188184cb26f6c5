// navdata.go

// This file describes the navdata telemetry packets the drone streams
// over UDP, and decodes them into Go types.

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
	"fmt"
	"math"
	"time"
)

const navdataHeaderMagic = 0x55667788

// navdata option tags...
const (
	navOptDemo     = 0      // attitude, battery, altitude, speeds
	navOptTime     = 1      // drone clock
	navOptWifi     = 26     // link quality
	navOptChecksum = 0xffff // always the final option
)

// Errors reported by the navdata decoder.
var (
	ErrNavdataHeader    = errors.New("navdata: bad header magic")
	ErrNavdataChecksum  = errors.New("navdata: checksum mismatch")
	ErrNavdataTruncated = errors.New("navdata: packet too short")
)

// DroneState holds the drone status bit-field decoded into booleans.
type DroneState struct {
	Flying                 bool
	VideoEnabled           bool
	VisionEnabled          bool
	AngularSpeedControl    bool
	AltitudeControlActive  bool
	UserFeedbackOn         bool
	CommandAck             bool // a config command awaits acknowledgement via AT*CTRL
	CameraReady            bool
	Travelling             bool
	USBKeyReady            bool
	NavdataDemo            bool // only the demo option is being sent
	NavdataBootstrap       bool // drone is waiting for the navdata_demo config
	MotorProblem           bool
	CommunicationLost      bool
	SoftwareFault          bool
	LowBattery             bool
	UserEmergencyLanding   bool
	TimerElapsed           bool
	MagnetometerNeedsCalib bool
	AnglesOutOfRange       bool
	TooMuchWind            bool
	UltrasonicSensorDeaf   bool
	CutoutDetected         bool
	PICVersionNumberOK     bool
	ATCodecThreadOn        bool
	NavdataThreadOn        bool
	VideoThreadOn          bool
	AcquisitionThreadOn    bool
	ControlWatchdogDelayed bool
	ADCWatchdogDelayed     bool
	CommWatchdog           bool // communication watchdog fired, needs AT*COMWDG
	EmergencyLanding       bool
}

// ControlState is the major flight state machine value reported in the
// demo option.
type ControlState uint16

// Control states...
const (
	CtrlDefault ControlState = iota // 0
	CtrlInit
	CtrlLanded
	CtrlFlying
	CtrlHovering
	CtrlTest
	CtrlTransTakeoff
	CtrlTransGotoFix
	CtrlTransLanding
	CtrlTransLooping
)

func (cs ControlState) String() string {
	switch cs {
	case CtrlDefault:
		return "Default"
	case CtrlInit:
		return "Init"
	case CtrlLanded:
		return "Landed"
	case CtrlFlying:
		return "Flying"
	case CtrlHovering:
		return "Hovering"
	case CtrlTest:
		return "Test"
	case CtrlTransTakeoff:
		return "Taking Off"
	case CtrlTransGotoFix:
		return "Goto Fix Point"
	case CtrlTransLanding:
		return "Landing"
	case CtrlTransLooping:
		return "Looping"
	default:
		return "Unknown"
	}
}

// DemoData holds the commonly used telemetry from the navdata demo
// option, converted to friendlier units where the vendor's are awkward.
type DemoData struct {
	ControlState ControlState
	Battery      int     // remaining charge, percent
	Pitch        float32 // degrees, nose up positive
	Roll         float32 // degrees, right down positive
	Yaw          float32 // degrees, clockwise from startup heading
	Altitude     int32   // millimetres
	VelocityX    float32 // mm/s
	VelocityY    float32 // mm/s
	VelocityZ    float32 // mm/s
}

// Navdata is one decoded telemetry packet.
type Navdata struct {
	Sequence        uint32
	State           DroneState
	Demo            DemoData
	DroneTime       time.Duration // drone clock, from the time option
	WifiLinkQuality uint32
}

// parseNavdata decodes a raw UDP navdata datagram.  Unknown options are
// skipped; the trailing checksum option, when present, is verified over
// everything that precedes it.
func parseNavdata(buff []byte) (nd Navdata, err error) {
	if len(buff) < 16 {
		return nd, fmt.Errorf("%w: %d bytes", ErrNavdataTruncated, len(buff))
	}
	if binary.LittleEndian.Uint32(buff[0:4]) != navdataHeaderMagic {
		return nd, ErrNavdataHeader
	}
	nd.State = parseDroneState(binary.LittleEndian.Uint32(buff[4:8]))
	nd.Sequence = binary.LittleEndian.Uint32(buff[8:12])
	// the vision-defined flag at offset 12 is of no use to us

	pos := 16
	for pos+4 <= len(buff) {
		id := binary.LittleEndian.Uint16(buff[pos : pos+2])
		size := int(binary.LittleEndian.Uint16(buff[pos+2 : pos+4]))
		if size < 4 || pos+size > len(buff) {
			return nd, fmt.Errorf("%w: option %#x overruns packet", ErrNavdataTruncated, id)
		}
		data := buff[pos+4 : pos+size]
		switch id {
		case navOptDemo:
			nd.Demo = payloadToDemoData(data)
		case navOptTime:
			nd.DroneTime = payloadToDroneTime(data)
		case navOptWifi:
			if len(data) >= 4 {
				nd.WifiLinkQuality = binary.LittleEndian.Uint32(data[0:4])
			}
		case navOptChecksum:
			if len(data) >= 4 {
				want := binary.LittleEndian.Uint32(data[0:4])
				if got := navdataChecksum(buff[:pos]); got != want {
					return nd, fmt.Errorf("%w: calculated %#x, packet says %#x", ErrNavdataChecksum, got, want)
				}
			}
			return nd, nil // the checksum option terminates the packet
		}
		pos += size
	}
	return nd, nil
}

// navdataChecksum is the vendor checksum: a plain 32-bit sum of every
// byte preceding the checksum option.
func navdataChecksum(buff []byte) (cks uint32) {
	for _, b := range buff {
		cks += uint32(b)
	}
	return cks
}

func parseDroneState(state uint32) (ds DroneState) {
	ds.Flying = state&1 == 1
	ds.VideoEnabled = state>>1&1 == 1
	ds.VisionEnabled = state>>2&1 == 1
	ds.AngularSpeedControl = state>>3&1 == 1
	ds.AltitudeControlActive = state>>4&1 == 1
	ds.UserFeedbackOn = state>>5&1 == 1
	ds.CommandAck = state>>6&1 == 1
	ds.CameraReady = state>>7&1 == 1
	ds.Travelling = state>>8&1 == 1
	ds.USBKeyReady = state>>9&1 == 1
	ds.NavdataDemo = state>>10&1 == 1
	ds.NavdataBootstrap = state>>11&1 == 1
	ds.MotorProblem = state>>12&1 == 1
	ds.CommunicationLost = state>>13&1 == 1
	ds.SoftwareFault = state>>14&1 == 1
	ds.LowBattery = state>>15&1 == 1
	ds.UserEmergencyLanding = state>>16&1 == 1
	ds.TimerElapsed = state>>17&1 == 1
	ds.MagnetometerNeedsCalib = state>>18&1 == 1
	ds.AnglesOutOfRange = state>>19&1 == 1
	ds.TooMuchWind = state>>20&1 == 1
	ds.UltrasonicSensorDeaf = state>>21&1 == 1
	ds.CutoutDetected = state>>22&1 == 1
	ds.PICVersionNumberOK = state>>23&1 == 1
	ds.ATCodecThreadOn = state>>24&1 == 1
	ds.NavdataThreadOn = state>>25&1 == 1
	ds.VideoThreadOn = state>>26&1 == 1
	ds.AcquisitionThreadOn = state>>27&1 == 1
	ds.ControlWatchdogDelayed = state>>28&1 == 1
	ds.ADCWatchdogDelayed = state>>29&1 == 1
	ds.CommWatchdog = state>>30&1 == 1
	ds.EmergencyLanding = state>>31&1 == 1
	return ds
}

// payloadToDemoData decodes the leading, stable portion of the demo
// option.  The trailing vision detection block is ignored.
func payloadToDemoData(pl []byte) (dd DemoData) {
	if len(pl) < 40 {
		return dd
	}
	dd.ControlState = ControlState(binary.LittleEndian.Uint32(pl[0:4]) >> 16)
	dd.Battery = int(binary.LittleEndian.Uint32(pl[4:8]))
	// attitude arrives as milli-degrees
	dd.Pitch = bytesToFloat32(pl[8:12]) / 1000.0
	dd.Roll = bytesToFloat32(pl[12:16]) / 1000.0
	dd.Yaw = bytesToFloat32(pl[16:20]) / 1000.0
	dd.Altitude = int32(binary.LittleEndian.Uint32(pl[20:24]))
	dd.VelocityX = bytesToFloat32(pl[24:28])
	dd.VelocityY = bytesToFloat32(pl[28:32])
	dd.VelocityZ = bytesToFloat32(pl[32:36])
	return dd
}

// payloadToDroneTime decodes the time option: 11 high bits of seconds,
// 21 low bits of microseconds.
func payloadToDroneTime(pl []byte) time.Duration {
	if len(pl) < 4 {
		return 0
	}
	raw := binary.LittleEndian.Uint32(pl[0:4])
	secs := raw >> 21
	micros := raw & 0x1fffff
	return time.Duration(secs)*time.Second + time.Duration(micros)*time.Microsecond
}

func bytesToFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
