// Package eventstream decodes the server-sent event stream returned by
// OpenAI-compatible chat completion endpoints into text fragments.
package eventstream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Done is the payload of the terminal event. It marks the end of generation,
// not the end of the transport stream.
const Done = "[DONE]"

var dataPrefix = []byte("data:")

type Event struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index int   `json:"index"`
	Delta Delta `json:"delta"`
}

type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ParseLine extracts the content fragment from a single event line.
// ok is false for blank lines, non-data lines, the terminal event, and events
// that carry no content.
func ParseLine(line []byte) (fragment string, ok bool, err error) {
	line = bytes.TrimRight(line, "\r\n")
	if len(bytes.TrimSpace(line)) == 0 {
		return "", false, nil
	}
	payload, isData := bytes.CutPrefix(line, dataPrefix)
	if !isData {
		return "", false, nil
	}
	payload = bytes.TrimPrefix(payload, []byte(" "))
	if string(payload) == Done {
		return "", false, nil
	}
	var e Event
	if err = json.Unmarshal(payload, &e); err != nil {
		return "", false, fmt.Errorf("eventstream: invalid event payload: %w", err)
	}
	if len(e.Choices) == 0 || e.Choices[0].Delta.Content == "" {
		return "", false, nil
	}
	return e.Choices[0].Delta.Content, true, nil
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r: bufio.NewReader(r),
	}
}

// Decoder reads newline-terminated event lines from an upstream body.
// Partial lines are held until the rest of the line arrives, so events split
// across reads are decoded as a whole.
type Decoder struct {
	r   *bufio.Reader
	err error

	// OnParseError is called for each line that could not be parsed.
	// Decoding continues with the next line.
	OnParseError func(line []byte, err error)
}

// Next returns the next content fragment. At the end of the stream it
// returns io.EOF. Any other error is a read error from the underlying reader.
func (d *Decoder) Next() (fragment string, err error) {
	for d.err == nil {
		var line []byte
		line, d.err = d.r.ReadBytes('\n')
		if len(line) == 0 {
			continue
		}
		// At EOF, an unterminated final line is treated as complete.
		fragment, ok, parseErr := ParseLine(line)
		if parseErr != nil {
			if d.OnParseError != nil {
				d.OnParseError(line, parseErr)
			}
			continue
		}
		if ok {
			return fragment, nil
		}
	}
	return "", d.err
}
