// Package wire encodes and decodes the length-framed RPC envelope that
// wraps every request and reply (spec §3, §4.1). All multi-byte fields
// are little-endian on the wire; encoding/binary.LittleEndian already
// performs the byte swap on big-endian hosts, so unlike the C original
// there is no host-order branch here (SPEC_FULL.md §4.1).
package wire

import (
	"encoding/binary"
	"io"
)

// RequestHeader is the client->server frame header.
type RequestHeader struct {
	MethodIndex   uint32
	MessageLength uint32
	RequestID     uint32
}

// ResponseHeader is the server->client frame header.
type ResponseHeader struct {
	StatusCode    uint32
	MethodIndex   uint32
	MessageLength uint32
	RequestID     uint32
}

const (
	requestHeaderSize  = 4 * 3
	responseHeaderSize = 4 * 4
)

// RequestHeaderSize and ResponseHeaderSize are exported for callers that
// size fixed receive buffers (internal/connserver).
const (
	RequestHeaderSize  = requestHeaderSize
	ResponseHeaderSize = responseHeaderSize
)

// DecodeRequestHeader parses a RequestHeader out of a fixed-size byte
// slice; the caller must provide exactly RequestHeaderSize bytes.
func DecodeRequestHeader(b []byte) RequestHeader {
	return RequestHeader{
		MethodIndex:   binary.LittleEndian.Uint32(b[0:4]),
		MessageLength: binary.LittleEndian.Uint32(b[4:8]),
		RequestID:     binary.LittleEndian.Uint32(b[8:12]),
	}
}

// EncodeRequestHeader writes h into b, which must be at least
// RequestHeaderSize bytes.
func EncodeRequestHeader(b []byte, h RequestHeader) {
	binary.LittleEndian.PutUint32(b[0:4], h.MethodIndex)
	binary.LittleEndian.PutUint32(b[4:8], h.MessageLength)
	binary.LittleEndian.PutUint32(b[8:12], h.RequestID)
}

// EncodeResponseHeader writes h into b, which must be at least
// ResponseHeaderSize bytes.
func EncodeResponseHeader(b []byte, h ResponseHeader) {
	binary.LittleEndian.PutUint32(b[0:4], h.StatusCode)
	binary.LittleEndian.PutUint32(b[4:8], h.MethodIndex)
	binary.LittleEndian.PutUint32(b[8:12], h.MessageLength)
	binary.LittleEndian.PutUint32(b[12:16], h.RequestID)
}

// DecodeResponseHeader parses a ResponseHeader out of a fixed-size byte
// slice; the caller must provide exactly ResponseHeaderSize bytes.
func DecodeResponseHeader(b []byte) ResponseHeader {
	return ResponseHeader{
		StatusCode:    binary.LittleEndian.Uint32(b[0:4]),
		MethodIndex:   binary.LittleEndian.Uint32(b[4:8]),
		MessageLength: binary.LittleEndian.Uint32(b[8:12]),
		RequestID:     binary.LittleEndian.Uint32(b[12:16]),
	}
}

// WriteResponse frames and writes a reply: header followed by payload,
// retrying short writes until all bytes land or an unrecoverable error
// occurs (spec §4.1). A nil payload is treated as a zero-length one.
func WriteResponse(w io.Writer, h ResponseHeader, payload []byte) error {
	var hdr [responseHeaderSize]byte
	EncodeResponseHeader(hdr[:], h)
	if err := writeAll(w, hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return writeAll(w, payload)
}

// WriteServiceFailed frames the canned SERVICE_FAILED reply spec §4.1
// describes for an encode-side failure: status=SERVICE_FAILED, len=0,
// original method_index/request_id preserved.
func WriteServiceFailed(w io.Writer, methodIndex, requestID uint32) error {
	return WriteResponse(w, ResponseHeader{
		StatusCode:    1, // SERVICE_FAILED; esdmd.StatusServiceFailed mirrors this value
		MethodIndex:   methodIndex,
		MessageLength: 0,
		RequestID:     requestID,
	}, nil)
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
