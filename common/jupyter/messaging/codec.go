package messaging

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	ErrMalformedFrame = errors.New("malformed binary message frame")
)

// WireFormat indicates whether a serialized message is JSON text or a binary multipart frame.
type WireFormat int

const (
	WireFormatText WireFormat = iota
	WireFormatBinary
)

func (f WireFormat) String() string {
	if f == WireFormatBinary {
		return "binary"
	}

	return "text"
}

// Serialize converts the message into its wire representation.
//
// Messages without buffers are encoded as plain JSON text. Messages carrying one or more buffers
// are encoded as a binary frame:
//
//	[uint32 nparts][uint32 offset_0 ... offset_{nparts-1}][json utf8][buf_1]...[buf_n]
//
// where nparts = len(buffers)+1 and every offset is the big-endian absolute position of its part
// within the frame. Part 0 is the JSON encoding of the message; parts 1..n are the raw buffers.
func Serialize(msg *Message) ([]byte, WireFormat, error) {
	if msg == nil {
		return nil, WireFormatText, fmt.Errorf("%w: nil message", ErrInvalidJupyterMessage)
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		return nil, WireFormatText, err
	}

	if len(msg.Buffers) == 0 {
		return encoded, WireFormatText, nil
	}

	return serializeBinary(encoded, msg.Buffers), WireFormatBinary, nil
}

func serializeBinary(encoded []byte, buffers [][]byte) []byte {
	numParts := len(buffers) + 1
	headerLen := 4 * (numParts + 1)

	total := headerLen + len(encoded)
	for _, buf := range buffers {
		total += len(buf)
	}

	frame := make([]byte, total)
	binary.BigEndian.PutUint32(frame[0:4], uint32(numParts))

	offset := headerLen
	writePart := func(idx int, part []byte) {
		binary.BigEndian.PutUint32(frame[4*(idx+1):4*(idx+2)], uint32(offset))
		copy(frame[offset:], part)
		offset += len(part)
	}

	writePart(0, encoded)
	for i, buf := range buffers {
		writePart(i+1, buf)
	}

	return frame
}

// Deserialize converts wire bytes back into a Message.
//
// Buffers of a binary frame are returned as views into data; callers that retain them beyond the
// lifetime of data should copy them.
func Deserialize(data []byte, format WireFormat) (*Message, error) {
	var (
		msg     *Message
		err     error
		buffers [][]byte
	)

	if format == WireFormatBinary {
		var jsonPart []byte
		jsonPart, buffers, err = splitBinary(data)
		if err != nil {
			return nil, err
		}

		msg, err = decodeJSON(jsonPart)
	} else {
		msg, err = decodeJSON(data)
	}

	if err != nil {
		return nil, err
	}

	if len(buffers) > 0 {
		msg.Buffers = buffers
	}

	return msg, nil
}

func decodeJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJupyterMessage, err)
	}

	if msg.Metadata == nil {
		msg.Metadata = make(map[string]interface{})
	}

	if msg.Content == nil {
		msg.Content = make(map[string]interface{})
	}

	return &msg, nil
}

func splitBinary(data []byte) ([]byte, [][]byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("%w: frame too short: %d bytes", ErrMalformedFrame, len(data))
	}

	numParts := int(binary.BigEndian.Uint32(data[0:4]))
	if numParts < 1 || numParts > len(data)/4-1 {
		return nil, nil, fmt.Errorf("%w: invalid part count %d for %d-byte frame", ErrMalformedFrame, numParts, len(data))
	}

	headerLen := 4 * (numParts + 1)
	offsets := make([]int, numParts)
	for i := 0; i < numParts; i++ {
		offsets[i] = int(binary.BigEndian.Uint32(data[4*(i+1) : 4*(i+2)]))

		if offsets[i] < headerLen || offsets[i] > len(data) {
			return nil, nil, fmt.Errorf("%w: offset #%d (%d) outside of [%d, %d]", ErrMalformedFrame, i, offsets[i], headerLen, len(data))
		}

		if i > 0 && offsets[i] < offsets[i-1] {
			return nil, nil, fmt.Errorf("%w: offset #%d (%d) precedes offset #%d (%d)", ErrMalformedFrame, i, offsets[i], i-1, offsets[i-1])
		}
	}

	part := func(i int) []byte {
		end := len(data)
		if i+1 < numParts {
			end = offsets[i+1]
		}
		return data[offsets[i]:end:end]
	}

	buffers := make([][]byte, 0, numParts-1)
	for i := 1; i < numParts; i++ {
		buffers = append(buffers, part(i))
	}

	return part(0), buffers, nil
}
