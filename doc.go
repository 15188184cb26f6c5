/*Package turboshrimp provides an unofficial, easy-to-use, standalone API for the Parrot AR.Drone 2.0® quadcopter.

Disclaimer

AR.Drone is a registered trademark of Parrot SA.  The author(s) of this package is/are in no way affiliated with Parrot.
The package has been developed by gathering together information from the vendor's developer guide and from a variety
of sources on the Internet, and by examining data packets sent to/from the drone.

Use this package at your own risk.  The author(s) is/are in no way responsible for any damage caused either to or by the
drone when using this software.

Features

The following features have been implemented...
  * Stick-based flight control, ie. for joystick, game-, or flight-controller
  * Drone built-in flight commands, eg. TakeOff(), Land(), Flip()
  * Macro-level flight control, eg. Forward(), Up()
  * Magnetometer-referenced (absolute) steering, see SetAbsoluteControl()
  * Autopilot commands, eg. FlyToAltitude(), FlyToYaw()
  * Decoded navdata telemetry (attitude, altitude, speeds, battery, state)
  * Demultiplexed video stream with latency management
  * Video stream recording
  * Drone configuration, eg. SetVideoCodec(), SetMaxAltitude()

Concepts

Connection Types

The drone provides three connections: a 'control' connection (UDP) which carries all commands to the drone,
a 'navdata' connection (UDP) which streams telemetry back at us, and a 'video' connection (TCP) which
provides an H.264 video stream from one of the cameras.  Connect() establishes the first two together; you must be
connected before using the drone, but the video connection is optional and is started separately with VideoConnect().

Funcs vs. Channels

Certain functionality is made available in two forms: single-shot function calls and streaming (channel) data flows.
Eg. GetNavdata() vs. SubscribeNavdata(), and UpdateSticks() vs. StartStickListener().

Use whichever paradigm you prefer, but be aware that the channel-based calls should return immediately (the channels are buffered)
whereas the function-based options could conceivably cause your application to pause very briefly if the drone is very busy.

The Video Pipeline

The video stream arrives wrapped in the vendor's PaVE framing.  VideoConnect() starts a listener which strips that
framing and pushes each H.264 frame onto a FrameQueue, from which your decoder should Pull() (or PullTimeout()) as
fast as it can.  If the consumer falls behind, the queue trades completeness for latency: whenever a keyframe arrives
the stale backlog is dropped, since the keyframe makes it redundant for decoding.  Disable this with
SetVideoLatencyReduction(false) if you prefer every frame late to a few frames dropped, eg. when recording.

*/
package turboshrimp
