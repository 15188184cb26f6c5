// turboshrimp project autopilot_test.go

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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// autopilotTestDrone wires up a drone whose control traffic goes to a
// sink, with telemetry fed in by the test rather than a real aircraft.
func autopilotTestDrone(t *testing.T) (*Drone, func()) {
	t.Helper()
	sink, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	conn, err := net.DialUDP("udp", nil, sink.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	drone := new(Drone)
	drone.ctrlConn = conn
	return drone, func() {
		conn.Close()
		sink.Close()
	}
}

func (drone *Drone) setTestAltitude(mm int32) {
	drone.ndMu.Lock()
	drone.nd.Demo.Altitude = mm
	drone.ndMu.Unlock()
}

func (drone *Drone) setTestYaw(deg float32) {
	drone.ndMu.Lock()
	drone.nd.Demo.Yaw = deg
	drone.ndMu.Unlock()
}

func (drone *Drone) leftStick() (lx, ly int16) {
	drone.ctrlMu.Lock()
	lx, ly = drone.ctrlLx, drone.ctrlLy
	drone.ctrlMu.Unlock()
	return lx, ly
}

func TestFlyToAltitude(t *testing.T) {
	drone, cleanup := autopilotTestDrone(t)
	defer cleanup()
	drone.setTestAltitude(500)

	done, err := drone.FlyToAltitude(1500)
	require.NoError(t, err)

	// a second vertical navigation must be refused while one is active
	_, err = drone.FlyToAltitude(2000)
	assert.Error(t, err)

	// far below target: full climb
	require.Eventually(t, func() bool {
		_, ly := drone.leftStick()
		return ly == 32500
	}, 2*time.Second, 5*time.Millisecond)

	// closing in: half throttle
	drone.setTestAltitude(1400)
	require.Eventually(t, func() bool {
		_, ly := drone.leftStick()
		return ly == 16250
	}, 2*time.Second, 5*time.Millisecond)

	// arrival within tolerance finishes the navigation
	drone.setTestAltitude(1490)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("navigation did not report completion")
	}
	_, ly := drone.leftStick()
	assert.Equal(t, int16(0), ly)

	// and a new navigation may now start
	done, err = drone.FlyToAltitude(500)
	require.NoError(t, err)
	drone.CancelFlyToAltitude()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled navigation did not report completion")
	}
}

func TestFlyToYaw(t *testing.T) {
	drone, cleanup := autopilotTestDrone(t)
	defer cleanup()
	drone.setTestYaw(170)

	_, err := drone.FlyToYaw(200)
	assert.Error(t, err, "targets beyond +180 must be rejected")

	done, err := drone.FlyToYaw(-170)
	require.NoError(t, err)

	// -170 is only 20 degrees clockwise of 170, so the turn must go
	// through north rather than the long way round
	require.Eventually(t, func() bool {
		lx, _ := drone.leftStick()
		return lx == 32500
	}, 2*time.Second, 5*time.Millisecond)

	drone.setTestYaw(-169)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("navigation did not report completion")
	}
	lx, _ := drone.leftStick()
	assert.Equal(t, int16(0), lx)
}

func TestFlyToYawAndAltitudeConcurrently(t *testing.T) {
	drone, cleanup := autopilotTestDrone(t)
	defer cleanup()
	drone.setTestAltitude(1000)
	drone.setTestYaw(0)

	altDone, err := drone.FlyToAltitude(2000)
	require.NoError(t, err)
	yawDone, err := drone.FlyToYaw(90)
	require.NoError(t, err)

	drone.setTestAltitude(1980)
	drone.setTestYaw(89)

	for finished := 0; finished < 2; {
		select {
		case <-altDone:
			finished++
		case <-yawDone:
			finished++
		case <-time.After(2 * time.Second):
			t.Fatal("manoeuvres did not both complete")
		}
	}
}
