package meross

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrLocalRequest = errors.New("meross: local request failed")

// LocalTransport posts envelopes straight to a device on the LAN.
type LocalTransport struct {
	client  *http.Client
	timeout time.Duration
}

func NewLocalTransport(client *http.Client, timeout time.Duration) *LocalTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &LocalTransport{client: client, timeout: timeout}
}

// Send posts env to http://<ip>/config. A 200 response with a body is decoded
// and handed to deliver, the same way a broker frame would be. Failures are
// returned without retry.
func (l *LocalTransport) Send(ctx context.Context, ip string, env *Envelope, deliver func(*Envelope)) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocalRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("http://%s/config", ip), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocalRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocalRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: got %d", ErrLocalRequest, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocalRequest, err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty body", ErrLocalRequest)
	}

	reply, err := Decode(raw)
	if err != nil {
		return err
	}
	deliver(reply)
	return nil
}
