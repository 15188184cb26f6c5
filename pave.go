// pave.go

// This file contains the PaVE (Parrot Video Encapsulation) frame
// demultiplexer for the AR.Drone video stream.

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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// paveHeaderSize is the baseline PaVE header length for the supported
// protocol version.  Newer firmware may declare a larger header; the
// extension bytes are consumed and ignored.
const paveHeaderSize = 76

var paveSignature = [4]byte{'P', 'a', 'V', 'E'}

const (
	// maxSignatureSkips bounds how many consecutive unsigned header-sized
	// blocks we will discard before declaring the stream unusable.
	maxSignatureSkips = 4096
	// maxEmptyReads bounds consecutive zero-byte, error-free reads from a
	// misbehaving source.
	maxEmptyReads = 64
	// maxPayloadSize bounds a declared payload before a buffer for it is
	// allocated.  Real frames are far smaller; a bigger declaration means
	// a corrupt header that happens to carry a valid signature.
	maxPayloadSize = 4 << 20
)

// Errors reported by the demultiplexer.  A clean end of the stream at a
// frame boundary is reported as io.EOF, not as one of these.
var (
	ErrTruncatedStream = errors.New("pave: stream truncated mid-record")
	ErrHeaderTooSmall  = errors.New("pave: header declares less than the minimum header size")
	ErrPayloadTooLarge = errors.New("pave: header declares an implausibly large payload")
	ErrFramingLost     = errors.New("pave: unable to locate PaVE signature")
	ErrStalledStream   = errors.New("pave: too many empty reads from source")
)

// FrameType is the decoder dependency class of a video frame, using the
// vendor's wire values.
type FrameType uint8

// Frame types...
const (
	FrameTypeUnknown FrameType = iota
	FrameTypeIDR               // keyframe which fully resets the decoder, may arrive in slices
	FrameTypeI                 // self-contained keyframe
	FrameTypeP                 // depends on previously decoded frames
	FrameTypeHeaders           // codec headers (SPS/PPS), no picture data
)

func (ft FrameType) String() string {
	switch ft {
	case FrameTypeIDR:
		return "IDR"
	case FrameTypeI:
		return "I"
	case FrameTypeP:
		return "P"
	case FrameTypeHeaders:
		return "H"
	default:
		return "?"
	}
}

// Frame is one demultiplexed video frame: the PaVE header metadata we
// care about plus the raw encoded payload (an H.264 elementary-stream
// unit).  Frames are never modified once built; ownership of the payload
// passes to whoever pulls the frame from a FrameQueue.
type Frame struct {
	HeaderSize    uint16 // header bytes actually consumed, >= paveHeaderSize
	Payload       []byte
	DisplayWidth  uint16
	DisplayHeight uint16
	EncodedWidth  uint16 // may be macroblock-padded, so can differ from display size
	EncodedHeight uint16
	FrameNumber   uint32 // non-decreasing but not necessarily contiguous
	Timestamp     uint32 // drone clock, milliseconds
	FrameType     FrameType
	SliceIndex    uint8 // 0-based when one frame is split across wire records
}

// IsKeyframe reports whether this frame is a decoder synchronisation
// point.  An IDR frame may be split into slices and only the first slice
// marks the reset boundary; counting every slice would needlessly empty
// the frame queue several times per keyframe.
func (f *Frame) IsKeyframe() bool {
	return f.FrameType == FrameTypeI ||
		(f.FrameType == FrameTypeIDR && f.SliceIndex == 0)
}

// readExact reads exactly n bytes from r, looping over short reads.
// Running out of data before the first byte of a record is a clean end
// of stream and returns io.EOF; running out after that is a truncation
// and returns ErrTruncatedStream.  what names the record portion being
// read, for error messages.
func readExact(r io.Reader, n int, what string) ([]byte, error) {
	buff := make([]byte, n)
	got := 0
	empty := 0
	for got < n {
		nr, err := r.Read(buff[got:])
		got += nr
		if err == io.EOF {
			if got == 0 {
				return nil, io.EOF
			}
			if got < n {
				return nil, fmt.Errorf("%w: got %d of %d bytes reading %s", ErrTruncatedStream, got, n, what)
			}
			break // all n bytes arrived along with the EOF
		}
		if err != nil {
			return nil, fmt.Errorf("pave: reading %s: %w", what, err)
		}
		if nr == 0 {
			empty++
			if empty > maxEmptyReads {
				return nil, fmt.Errorf("%w reading %s", ErrStalledStream, what)
			}
			continue
		}
		empty = 0
	}
	return buff, nil
}

// ReadFrame reads the next PaVE-signed frame from r, skipping any
// interleaved records that do not carry the PaVE signature.  It returns
// io.EOF when the stream ends cleanly at a frame boundary.  All other
// shortfalls - a header declaring less than the minimum size, or the
// stream ending inside a record - are fatal for the session and are
// returned to the caller, who should close the connection.
func ReadFrame(r io.Reader) (*Frame, error) {
	for skips := 0; ; {
		header, err := readExact(r, paveHeaderSize, "frame header")
		if err != nil {
			return nil, err
		}

		// The declared header size must cover at least the baseline header;
		// anything beyond it is a forward-compatible extension which we
		// consume and ignore.
		declaredSize := binary.LittleEndian.Uint16(header[6:8])
		if declaredSize < paveHeaderSize {
			return nil, fmt.Errorf("%w: declared %d, minimum %d", ErrHeaderTooSmall, declaredSize, paveHeaderSize)
		}
		if extra := int(declaredSize) - paveHeaderSize; extra > 0 {
			if _, err := readExact(r, extra, "header extension"); err != nil {
				if err == io.EOF {
					// the header committed us to declaredSize bytes
					err = fmt.Errorf("%w: stream ended inside a %d-byte header extension", ErrTruncatedStream, extra)
				}
				return nil, err
			}
		}

		// Non-PaVE records occupy exactly one header-sized block with no
		// payload of their own, so we just try again at the current position.
		if !bytes.Equal(header[0:4], paveSignature[:]) {
			skips++
			if skips > maxSignatureSkips {
				return nil, fmt.Errorf("%w after %d unsigned blocks", ErrFramingLost, skips)
			}
			logrus.Debugf("pave: skipping unsigned %d-byte block (leading bytes % x)", declaredSize, header[0:4])
			continue
		}

		payloadSize := binary.LittleEndian.Uint32(header[8:12])
		if payloadSize > maxPayloadSize {
			return nil, fmt.Errorf("%w: %d bytes declared, limit %d", ErrPayloadTooLarge, payloadSize, maxPayloadSize)
		}
		payload, err := readExact(r, int(payloadSize), "frame payload")
		if err != nil {
			if err == io.EOF {
				// a signed header commits the stream to a payload; its
				// disappearance is never a clean end of stream
				err = fmt.Errorf("%w: stream ended before the %d-byte payload", ErrTruncatedStream, payloadSize)
			}
			return nil, err
		}

		return &Frame{
			HeaderSize:    declaredSize,
			Payload:       payload,
			EncodedWidth:  binary.LittleEndian.Uint16(header[12:14]),
			EncodedHeight: binary.LittleEndian.Uint16(header[14:16]),
			DisplayWidth:  binary.LittleEndian.Uint16(header[16:18]),
			DisplayHeight: binary.LittleEndian.Uint16(header[18:20]),
			FrameNumber:   binary.LittleEndian.Uint32(header[20:24]),
			Timestamp:     binary.LittleEndian.Uint32(header[24:28]),
			FrameType:     FrameType(header[30]),
			SliceIndex:    header[43],
		}, nil
	}
}
