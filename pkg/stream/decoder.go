package stream

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"AkuChat/pkg/chat"
	"AkuChat/pkg/metrics"
)

var (
	frameDelimiter = []byte("\n\n")
	dataLine       = regexp.MustCompile(`(?m)^data:[ \t]?(.*)$`)

	validate     *validator.Validate
	validateOnce sync.Once
)

func chunkValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// wireChunk mirrors chat.Chunk with pointer fields so that a missing key can
// be told apart from a zero value.
type wireChunk struct {
	MessageID         *string `json:"messageId" validate:"required,min=1"`
	PreviousMessageID *string `json:"previousMessageId"`
	ChatID            *string `json:"chatId" validate:"required,min=1"`
	Role              *string `json:"role" validate:"required,oneof=user assistant"`
	Content           *string `json:"content" validate:"required"`
	Index             *int    `json:"index" validate:"required,min=0"`
	CreatedAt         *string `json:"createdAt" validate:"required"`
}

func (w wireChunk) chunk() chat.Chunk {
	return chat.Chunk{
		MessageID:         *w.MessageID,
		PreviousMessageID: w.PreviousMessageID,
		ChatID:            *w.ChatID,
		Role:              chat.Role(*w.Role),
		Content:           *w.Content,
		Index:             *w.Index,
		CreatedAt:         *w.CreatedAt,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Decoder turns a byte stream of server-sent event frames into chunks.
// Frames are separated by a blank line and may be split across any number of
// Push calls. A Decoder is not safe for concurrent use.
type Decoder struct {
	buf []byte
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Push feeds the next bytes read from the wire and returns the chunks of all
// frames completed by them, in order. Malformed frames are dropped.
func (d *Decoder) Push(p []byte) []chat.Chunk {
	d.buf = append(d.buf, p...)
	d.buf = bytes.ReplaceAll(d.buf, []byte("\r\n"), []byte("\n"))

	var out []chat.Chunk
	for {
		i := bytes.Index(d.buf, frameDelimiter)
		if i < 0 {
			break
		}
		frame := d.buf[:i]
		if c, ok := DecodeFrame(frame); ok {
			out = append(out, c)
		}
		d.buf = d.buf[i+len(frameDelimiter):]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return out
}

// Pending reports how many bytes of an unterminated frame are buffered.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// DecodeFrame extracts the first data line of one frame and decodes it.
func DecodeFrame(frame []byte) (chat.Chunk, bool) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return chat.Chunk{}, false
	}
	m := dataLine.FindSubmatch(frame)
	if m == nil {
		metrics.StreamFramesDropped.WithLabelValues(metrics.DropEmpty).Inc()
		return chat.Chunk{}, false
	}
	return DecodePayload(m[1])
}

// DecodePayload decodes a single JSON payload. Both the enveloped form
// {"data": {...}} and a bare chunk object are accepted.
func DecodePayload(payload []byte) (chat.Chunk, bool) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		metrics.StreamFramesDropped.WithLabelValues(metrics.DropEmpty).Inc()
		return chat.Chunk{}, false
	}

	body := payload
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.WithError(err).Debug("[stream] dropping frame with malformed json")
		metrics.StreamFramesDropped.WithLabelValues(metrics.DropJSON).Inc()
		return chat.Chunk{}, false
	}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		body = env.Data
	}

	var w wireChunk
	if err := json.Unmarshal(body, &w); err != nil {
		log.WithError(err).Debug("[stream] dropping frame with malformed chunk")
		metrics.StreamFramesDropped.WithLabelValues(metrics.DropJSON).Inc()
		return chat.Chunk{}, false
	}
	if err := chunkValidator().Struct(w); err != nil {
		log.WithError(err).Debug("[stream] dropping frame failing chunk validation")
		metrics.StreamFramesDropped.WithLabelValues(metrics.DropInvalid).Inc()
		return chat.Chunk{}, false
	}
	metrics.StreamChunksDecoded.Inc()
	return w.chunk(), true
}

// EncodeFrame renders a chunk as one enveloped frame, delimiter included.
func EncodeFrame(c chat.Chunk) ([]byte, error) {
	payload, err := EncodePayload(c)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	return append(frame, frameDelimiter...), nil
}

// EncodePayload renders a chunk in the {"data": {...}} envelope.
func EncodePayload(c chat.Chunk) ([]byte, error) {
	return json.Marshal(struct {
		Data chat.Chunk `json:"data"`
	}{Data: c})
}
