package meross

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Method is the verb carried in an envelope header.
type Method string

const (
	MethodGet  Method = "GET"
	MethodSet  Method = "SET"
	MethodPush Method = "PUSH"
)

const payloadVersion = 1

const nonceAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Header is the routing and signature part of an Envelope.
type Header struct {
	From           string `json:"from"`
	MessageID      string `json:"messageId"`
	Method         Method `json:"method"`
	Namespace      string `json:"namespace"`
	PayloadVersion int    `json:"payloadVersion"`
	Sign           string `json:"sign"`
	Timestamp      int64  `json:"timestamp"`
	TimestampMs    int64  `json:"timestampMs,omitempty"`
}

// Envelope is the signed message exchanged with appliances, over the broker
// or the local HTTP endpoint.
type Envelope struct {
	Header  Header          `json:"header"`
	Payload json.RawMessage `json:"payload"`
}

// DeviceUUID extracts the originating device from a header like
// "/appliance/<uuid>/publish". Returns "" when the field has no device part.
func (e *Envelope) DeviceUUID() string {
	parts := strings.Split(e.Header.From, "/")
	if len(parts) < 3 || parts[1] != "appliance" {
		return ""
	}
	return parts[2]
}

// Codec builds signed envelopes for one authenticated session.
//
// A Codec is deterministic for a given entropy stream and clock, which is
// what the tests rely on. Production code uses crypto/rand.
type Codec struct {
	key     string
	from    string
	entropy io.Reader
	now     func() time.Time
}

// NewCodec returns a codec signing with key and answering to the from topic.
func NewCodec(key, from string) *Codec {
	return &Codec{key: key, from: from, entropy: rand.Reader, now: time.Now}
}

// WithEntropy swaps the randomness source. Used by tests.
func (c *Codec) WithEntropy(r io.Reader) *Codec {
	c.entropy = r
	return c
}

// Encode wraps payload in a signed envelope with a fresh message id.
func (c *Codec) Encode(method Method, namespace string, payload any) (*Envelope, error) {
	if payload == nil {
		payload = struct{}{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload for %s: %w", namespace, err)
	}

	nonce, err := randomString(c.entropy, 16)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewRandomFromReader(c.entropy)
	if err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}
	messageID := md5Hex(nonce + id.String())
	timestamp := c.now().Unix()

	return &Envelope{
		Header: Header{
			From:           c.from,
			MessageID:      messageID,
			Method:         method,
			Namespace:      namespace,
			PayloadVersion: payloadVersion,
			Sign:           Sign(messageID, c.key, timestamp),
			Timestamp:      timestamp,
		},
		Payload: raw,
	}, nil
}

// Sign computes the header signature md5(messageId + key + timestamp).
func Sign(messageID, key string, timestamp int64) string {
	return md5Hex(messageID + key + strconv.FormatInt(timestamp, 10))
}

// Decode parses an inbound frame. Any failure wraps ErrMalformedFrame.
func Decode(raw []byte) (*Envelope, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Header.MessageID == "" && env.Header.Namespace == "" {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedFrame)
	}
	return &env, nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomString(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = nonceAlphabet[int(b)%len(nonceAlphabet)]
	}
	return string(buf), nil
}
