package constants

import "time"

// Scheduler defaults.
const (
	// DefaultTickResolution is the nominal finest spacing of due times.
	// The Scheduler does not read it.
	DefaultTickResolution = time.Millisecond

	// MaxSchedulerTasks is the nominal upper bound on concurrently
	// scheduled tasks in a single mode. The Scheduler does not enforce it.
	MaxSchedulerTasks = 64
)

// Storage defaults.
const (
	// DefaultStorageRoot is the mount point for removable mass storage
	// when no override is given in the Mode Configuration file.
	DefaultStorageRoot = "/sd"

	// ProcessConfigFileName is the sidecar file each DataProcess
	// persists its data_format and line_limit (or the img marker) to.
	// Lease bookkeeping is not stored in it.
	ProcessConfigFileName = ".process_configuration.json"

	// FilenameTimeLayout formats the embedded timestamp in rotated log
	// filenames; lexical sort order matches chronological order.
	FilenameTimeLayout = "20060102T150405.000000000"

	// ImageSizeLimit is the fixed per-file cap for an ImageProcess; unlike
	// a DataProcess, an image stream has no line_limit to derive a byte
	// cap from, so spec.md §4.4 fixes one large constant instead.
	ImageSizeLimit = 10 << 20 // 10 MiB
)

// Framed transport constants.
//
// The link runs over a fixed-size 64 byte frame. Payload capacity is fixed
// at 60 bytes so every frame, regardless of type, is exactly one read of a
// known size off the wire -- no length-prefix parsing is needed before a
// frame can be decoded.
const (
	// FrameSize is the total wire size of a single frame, header and
	// payload included.
	FrameSize = 64

	// FramePayloadSize is the number of payload bytes carried in a DATA
	// frame.
	FramePayloadSize = 60

	// HeaderPayloadSize is the payload size of a HEADER frame: one byte
	// message type, one reserved byte, and a little-endian uint16
	// packet count.
	HeaderPayloadSize = 4

	// MaxPacketsPerMessage bounds reassembly buffer growth at the wire
	// format's own ceiling: seq_num is a 16-bit field, so a HEADER can
	// never advertise more than 0xFFFF DATA frames to follow.
	MaxPacketsPerMessage = 0xFFFF

	// DefaultFrameTimeout bounds a single blocking frame read.
	DefaultFrameTimeout = 2 * time.Second

	// MaxRetransmits scales the transport's retry budgets: the sender
	// allows (NumPackets+1)*MaxRetransmits NACKs and restarts per message,
	// and the receiver makes up to MaxRetransmits+1 reads awaiting a HEADER
	// and NumPackets*(MaxRetransmits+1) reads while reassembling.
	MaxRetransmits = 3
)
