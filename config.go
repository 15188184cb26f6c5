// config.go

// This file contains typed setters for the drone's persistent
// configuration parameters.

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

import "strconv"

// VideoCodec selects the encoding and resolution of the video stream,
// using the vendor's codec identifiers.
type VideoCodec int

// Video codecs...
const (
	VideoCodecP264             VideoCodec = 0x40 // 64
	VideoCodecMP4_360p         VideoCodec = 0x80 // 128
	VideoCodecH264_360p        VideoCodec = 0x81 // 129
	VideoCodecMP4_360pH264720p VideoCodec = 0x82 // 130
	VideoCodecH264_720p        VideoCodec = 0x83 // 131
	VideoCodecMP4_360pH264360p VideoCodec = 0x88 // 136
)

// VideoChannel selects which camera feeds the video stream.
type VideoChannel int

// Video channels...
const (
	VideoChannelFront  VideoChannel = 0
	VideoChannelBottom VideoChannel = 1
)

// ConfigSet writes a single configuration parameter on the drone.  The
// drone acknowledges each write via a state bit which the navdata
// listener clears automatically.  Most users will prefer the typed
// setters below.
func (drone *Drone) ConfigSet(key string, value string) {
	drone.ctrlMu.Lock()
	defer drone.ctrlMu.Unlock()

	drone.ctrlSeq++
	drone.ctrlConn.Write(atCommandToBuffer(newConfigCommand(key, value), drone.ctrlSeq))
}

// ConfigSetForProfile writes a configuration parameter scoped to a
// multiconfig profile.  The firmware requires the profile identifiers
// to immediately precede the write, so both commands go out under one
// lock with consecutive sequence numbers.
func (drone *Drone) ConfigSetForProfile(sessionID, userID, applicationID, key, value string) {
	drone.ctrlMu.Lock()
	defer drone.ctrlMu.Unlock()

	drone.ctrlSeq++
	drone.ctrlConn.Write(atCommandToBuffer(newConfigIDsCommand(sessionID, userID, applicationID), drone.ctrlSeq))
	drone.ctrlSeq++
	drone.ctrlConn.Write(atCommandToBuffer(newConfigCommand(key, value), drone.ctrlSeq))
}

// SetNavdataDemo selects between the compact telemetry stream this
// package decodes (true) and the drone's full sensor dump (false).
// Connect sets this for you.
func (drone *Drone) SetNavdataDemo(demo bool) {
	if demo {
		drone.ConfigSet("general:navdata_demo", "TRUE")
	} else {
		drone.ConfigSet("general:navdata_demo", "FALSE")
	}
}

// SetVideoCodec chooses the encoding and resolution of the video
// stream.  Takes effect from the next video connection.
func (drone *Drone) SetVideoCodec(codec VideoCodec) {
	drone.ConfigSet("video:video_codec", strconv.Itoa(int(codec)))
}

// SetVideoBitrate sets the maximum video bitrate in kbps.  Sensible
// values run from 500 to 4000.
func (drone *Drone) SetVideoBitrate(kbps int) {
	drone.ConfigSet("video:bitrate", strconv.Itoa(kbps))
}

// SetVideoChannel switches the video stream between the forward and
// bottom cameras.
func (drone *Drone) SetVideoChannel(channel VideoChannel) {
	drone.ConfigSet("video:video_channel", strconv.Itoa(int(channel)))
}

// SetMaxAltitude limits how high the drone will fly, in millimetres.
func (drone *Drone) SetMaxAltitude(mm int) {
	drone.ConfigSet("control:altitude_max", strconv.Itoa(mm))
}

// SetMaxVerticalSpeed limits climb and descent rates, in mm/s.
func (drone *Drone) SetMaxVerticalSpeed(mmPerSec int) {
	drone.ConfigSet("control:control_vz_max", strconv.Itoa(mmPerSec))
}

// SetMaxTilt limits pitch and roll, in radians.
func (drone *Drone) SetMaxTilt(radians float32) {
	drone.ConfigSet("control:euler_angle_max", strconv.FormatFloat(float64(radians), 'f', -1, 32))
}

// SetOutdoor tells the drone whether it is flying outside, which
// adjusts its stabilisation for wind.
func (drone *Drone) SetOutdoor(outdoor bool) {
	if outdoor {
		drone.ConfigSet("control:outdoor", "TRUE")
	} else {
		drone.ConfigSet("control:outdoor", "FALSE")
	}
}

// SetHullProtection tells the drone whether the indoor hull is fitted,
// which it needs to know for correct flight dynamics.
func (drone *Drone) SetHullProtection(fitted bool) {
	if fitted {
		drone.ConfigSet("control:flight_without_shell", "FALSE")
	} else {
		drone.ConfigSet("control:flight_without_shell", "TRUE")
	}
}

// SetSSID renames the drone's wifi network.  Takes effect after a
// reboot.
func (drone *Drone) SetSSID(name string) {
	drone.ConfigSet("network:ssid_single_player", name)
}
