package sitesdk

import (
	"bufio"
	"bytes"
	"io"
)

const maxEventSize = 4 * 1024 * 1024 // 4MB

// scanEventStream reads SSE framing from r: `data:` lines accumulate into
// one frame dispatched at the blank-line terminator, `:` lines are
// keep-alive comments. onFrame receives each complete data payload;
// onPing fires for comments. Returns when the transport errors or closes.
func scanEventStream(r io.Reader, onFrame func([]byte), onPing func()) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	var data []byte
	for scanner.Scan() {
		line := scanner.Bytes()

		switch {
		case len(line) == 0:
			// frame terminator
			if len(data) > 0 {
				onFrame(data)
				data = nil
			}
		case line[0] == ':':
			if onPing != nil {
				onPing()
			}
		case bytes.HasPrefix(line, []byte("data:")):
			payload := bytes.TrimPrefix(line, []byte("data:"))
			payload = bytes.TrimPrefix(payload, []byte(" "))
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, payload...)
		default:
			// event:/id:/retry: fields are not used by this protocol
		}
	}

	if len(data) > 0 {
		onFrame(data)
	}

	return scanner.Err()
}
