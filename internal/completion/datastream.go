// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// MaxPartSize is the longest line accepted from a data stream.
const MaxPartSize = 64 * 1024

// HeaderName marks a data-stream response.
const (
	HeaderName  = "X-Vercel-AI-Data-Stream"
	HeaderValue = "v1"
)

// Part codes.
const (
	PartText          = '0'
	PartError         = '3'
	PartFinishMessage = 'd'
	PartFinishStep    = 'e'
	PartStartStep     = 'f'
)

// Usage counts tokens of one completion.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Finish is the payload of finish parts.
type Finish struct {
	FinishReason string `json:"finishReason"`
	Usage        *Usage `json:"usage,omitempty"`
	IsContinued  *bool  `json:"isContinued,omitempty"`
}

// Part is one decoded line of a data stream.
type Part struct {
	Code    byte
	Text    string  // PartText and PartError
	Finish  *Finish // PartFinishMessage and PartFinishStep
	Payload json.RawMessage
}

// =============================================================================
// WRITER
// =============================================================================

// Writer encodes data-stream parts.
type Writer struct {
	w io.Writer
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Text writes a text delta.
func (dw *Writer) Text(s string) error {
	return dw.writeJSON(PartText, s)
}

// Error writes an error part.
func (dw *Writer) Error(msg string) error {
	return dw.writeJSON(PartError, msg)
}

// StartStep writes the step start part.
func (dw *Writer) StartStep(messageID string) error {
	return dw.writeJSON(PartStartStep, map[string]string{"messageId": messageID})
}

// FinishStep writes the finish step part.
func (dw *Writer) FinishStep(f Finish) error {
	cont := false
	if f.IsContinued == nil {
		f.IsContinued = &cont
	}
	return dw.writeJSON(PartFinishStep, f)
}

// FinishMessage writes the final part of a stream.
func (dw *Writer) FinishMessage(f Finish) error {
	f.IsContinued = nil
	return dw.writeJSON(PartFinishMessage, f)
}

func (dw *Writer) writeJSON(code byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode part %c: %w", code, err)
	}
	line := make([]byte, 0, len(data)+3)
	line = append(line, code, ':')
	line = append(line, data...)
	line = append(line, '\n')
	_, err = dw.w.Write(line)
	return err
}

// =============================================================================
// READER
// =============================================================================

// Reader decodes data-stream parts line by line.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), MaxPartSize)
	return &Reader{scanner: sc}
}

// Next returns the next well-formed part. Blank lines, unknown codes and
// lines that fail to decode are skipped. It returns io.EOF at the end.
func (dr *Reader) Next() (Part, error) {
	for dr.scanner.Scan() {
		line := bytes.TrimRight(dr.scanner.Bytes(), "\r")
		if len(line) < 2 || line[1] != ':' {
			continue
		}
		part, ok := ParsePart(line)
		if ok {
			return part, nil
		}
	}
	if err := dr.scanner.Err(); err != nil {
		return Part{}, err
	}
	return Part{}, io.EOF
}

// ParsePart decodes one "<code>:<json>" line. ok is false for unknown codes
// and malformed payloads.
func ParsePart(line []byte) (Part, bool) {
	if len(line) < 2 || line[1] != ':' {
		return Part{}, false
	}
	p := Part{Code: line[0], Payload: json.RawMessage(append([]byte(nil), line[2:]...))}

	switch p.Code {
	case PartText, PartError:
		if err := json.Unmarshal(p.Payload, &p.Text); err != nil {
			return Part{}, false
		}
	case PartFinishMessage, PartFinishStep:
		var f Finish
		if err := json.Unmarshal(p.Payload, &f); err != nil {
			return Part{}, false
		}
		p.Finish = &f
	case PartStartStep:
	default:
		return Part{}, false
	}
	return p, true
}
