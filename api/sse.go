package api

import (
	"bytes"
	"context"
	"errors"
	"io"
)

const dataPrefix = "data: "

var doneSentinel = []byte("[DONE]")

// Decoder splits a byte stream into server-sent event payloads. Chunk
// boundaries are arbitrary: a partial line is carried over until its
// newline arrives, so the payloads produced never depend on how the stream
// was chunked.
type Decoder struct {
	buf  []byte
	done bool
}

// Feed appends chunk to the carry-over buffer and returns the payload of
// every complete `data: ` line in it. Lines without that prefix are
// ignored. Once a [DONE] payload is seen the decoder is finished and
// further input is discarded.
func (d *Decoder) Feed(chunk []byte) [][]byte {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var payloads [][]byte
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]

		payload, ok := d.payload(line)
		if !ok {
			continue
		}
		if d.done {
			d.buf = nil
			break
		}
		payloads = append(payloads, payload)
	}

	// Compact so the retained fragment does not pin consumed input.
	if len(d.buf) == 0 {
		d.buf = nil
	} else {
		d.buf = append([]byte(nil), d.buf...)
	}
	return payloads
}

// Flush returns the payload of an unterminated final line, if any. It is
// called once at end of stream.
func (d *Decoder) Flush() [][]byte {
	if d.done || len(d.buf) == 0 {
		return nil
	}
	line := d.buf
	d.buf = nil
	payload, ok := d.payload(line)
	if !ok || d.done {
		return nil
	}
	return [][]byte{payload}
}

// Done reports whether the [DONE] sentinel has been seen.
func (d *Decoder) Done() bool {
	return d.done
}

func (d *Decoder) payload(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return nil, false
	}
	data := line[len(dataPrefix):]
	if bytes.Equal(data, doneSentinel) {
		d.done = true
		return nil, true
	}
	// Returned payloads must survive later appends to buf.
	return append([]byte(nil), data...), true
}

// ReadEvents reads body to the end, or until [DONE], calling fn with each
// event payload in order. It returns the first error from fn or from the
// read, including ctx's error if the context is cancelled mid-stream.
func ReadEvents(ctx context.Context, body io.Reader, fn func(payload []byte) error) error {
	var dec Decoder
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, p := range dec.Feed(buf[:n]) {
				if err := fn(p); err != nil {
					return err
				}
			}
			if dec.Done() {
				return nil
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return readErr
			}
			for _, p := range dec.Flush() {
				if err := fn(p); err != nil {
					return err
				}
			}
			return nil
		}
	}
}
