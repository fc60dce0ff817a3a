// Package packet defines the timestamped packet exchanged by peers and the
// codecs that put it on the wire. Codecs never panic on malformed input;
// they report a *DecodeError instead.
package packet
