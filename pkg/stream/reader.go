package stream

import (
	"errors"
	"fmt"
	"io"

	"AkuChat/pkg/chat"
)

// ChunkReader is a finite, non-restartable sequence of chunks. Next returns
// io.EOF once the stream ended normally and an ErrStreamInterrupted error
// when the transport failed part way through.
type ChunkReader interface {
	Next() (chat.Chunk, error)
	Close() error
}

const readBufferSize = 4 * 1024

// Reader decodes chunks lazily from a response body.
type Reader struct {
	body    io.ReadCloser
	dec     *Decoder
	buf     []byte
	pending []chat.Chunk
	err     error
}

func NewReader(body io.ReadCloser) *Reader {
	return &Reader{body: body, dec: NewDecoder(), buf: make([]byte, readBufferSize)}
}

func (r *Reader) Next() (chat.Chunk, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return chat.Chunk{}, r.err
		}
		n, err := r.body.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.dec.Push(r.buf[:n])...)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			// an unterminated trailing frame is never delivered
			r.err = io.EOF
		default:
			r.err = fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
		}
	}
	c := r.pending[0]
	r.pending = r.pending[1:]
	return c, nil
}

func (r *Reader) Close() error {
	return r.body.Close()
}

// Drain feeds every chunk of r to onChunk in order and returns nil on a
// normal end of stream. Chunks delivered before a failure stay delivered.
func Drain(r ChunkReader, onChunk func(chat.Chunk)) error {
	for {
		c, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		onChunk(c)
	}
}
