package meross

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedCodec(key string) *Codec {
	c := NewCodec(key, "/app/42-app/subscribe").WithEntropy(bytes.NewReader(make([]byte, 64)))
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestCodecEncodeDeterministic(t *testing.T) {
	env, err := fixedCodec("secretkey").Encode(MethodGet, "Appliance.System.All", nil)
	require.NoError(t, err)

	assert.Equal(t, "dc694162d80fab654beef074da0bd75b", env.Header.MessageID)
	assert.Equal(t, "40f75c53119a5927a26093449b61f63f", env.Header.Sign)
	assert.Equal(t, int64(1700000000), env.Header.Timestamp)
	assert.Equal(t, MethodGet, env.Header.Method)
	assert.Equal(t, "Appliance.System.All", env.Header.Namespace)
	assert.Equal(t, 1, env.Header.PayloadVersion)
	assert.Equal(t, "/app/42-app/subscribe", env.Header.From)
	assert.JSONEq(t, `{}`, string(env.Payload))
}

func TestCodecEncodeFreshMessageIDs(t *testing.T) {
	c := NewCodec("key", "/app/1-x/subscribe")
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		env, err := c.Encode(MethodSet, "Appliance.Control.Toggle", map[string]any{"toggle": map[string]int{"onoff": 1}})
		require.NoError(t, err)
		assert.Len(t, env.Header.MessageID, 32)
		assert.False(t, seen[env.Header.MessageID], "duplicate message id")
		seen[env.Header.MessageID] = true
		assert.Equal(t, Sign(env.Header.MessageID, "key", env.Header.Timestamp), env.Header.Sign)
	}
}

func TestCodecEnvelopeWireShape(t *testing.T) {
	env, err := fixedCodec("k").Encode(MethodSet, "Appliance.Control.ToggleX", map[string]any{"togglex": map[string]int{"channel": 0, "onoff": 1}})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var generic map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	for _, field := range []string{"from", "messageId", "method", "namespace", "payloadVersion", "sign", "timestamp"} {
		assert.Contains(t, generic["header"], field)
	}
	assert.Equal(t, map[string]any{"channel": float64(0), "onoff": float64(1)}, generic["payload"]["togglex"])
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		device  string
	}{
		{
			name:   "push from appliance",
			raw:    `{"header":{"messageId":"abc","namespace":"Appliance.System.Online","method":"PUSH","from":"/appliance/dev-1/publish","timestamp":1,"payloadVersion":1,"sign":"x"},"payload":{"online":{"status":1}}}`,
			device: "dev-1",
		},
		{
			name:   "from without appliance part",
			raw:    `{"header":{"messageId":"abc","namespace":"Appliance.System.All","from":"/app/42/subscribe"},"payload":{}}`,
			device: "",
		},
		{name: "empty frame", raw: ``, wantErr: true},
		{name: "not json", raw: `{"header":`, wantErr: true},
		{name: "missing header", raw: `{"payload":{}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedFrame)
				assert.Nil(t, env)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.device, env.DeviceUUID())
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Status: 1004, Info: "nope"}
	assert.Equal(t, "1004 (Wrong email or password) - nope", err.Error())
	assert.False(t, err.TokenExpired())

	assert.True(t, (&APIError{Status: 1019}).TokenExpired())
	assert.Equal(t, "Unknown error", StatusMessage(4242))
}
