package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PubSub is the slice of *Client the RPC caller needs.
type PubSub interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topic string) error
}

// Request is the envelope published on a service's RPC topic.
type Request struct {
	ID        string          `json:"id"`
	ReplyTo   string          `json:"reply_to"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Response is the envelope a service publishes on the caller's reply topic.
// Exactly one of Result or Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
}

// RemoteError is a method-level error returned by the remote service.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Caller issues request/response calls over the bus. Requests are correlated
// with their replies by a random UUID.
//
// A single reply subscription is shared by all calls; Start must be called
// once before Call.
type Caller struct {
	bus        PubSub
	replyTopic string
	qos        byte

	mu      sync.Mutex
	pending map[string]chan Response
	started bool
}

// NewCaller creates a Caller whose replies arrive on the reply topic for
// clientID.
func NewCaller(bus PubSub, clientID string, qos byte) *Caller {
	return &Caller{
		bus:        bus,
		replyTopic: Topics{}.RPCReply(clientID),
		qos:        qos,
		pending:    make(map[string]chan Response),
	}
}

// Start subscribes to the reply topic.
func (c *Caller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	if err := c.bus.Subscribe(c.replyTopic, c.qos, c.handleReply); err != nil {
		return fmt.Errorf("subscribing to reply topic: %w", err)
	}
	c.started = true
	return nil
}

// Close unsubscribes from the reply topic. Calls still waiting run into
// their context deadline.
func (c *Caller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.started = false
	return c.bus.Unsubscribe(c.replyTopic)
}

// Call invokes method on service and waits for the reply or for ctx.
//
// params is JSON encoded into the request; a non-nil result receives the
// decoded reply. A method-level failure returns an error matching both
// ErrRemoteMethod and *RemoteError.
func (c *Caller) Call(ctx context.Context, service, method string, params, result any) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return ErrCallerNotStarted
	}

	req := Request{
		ID:        uuid.NewString(),
		ReplyTo:   c.replyTopic,
		Method:    method,
		Timestamp: time.Now().UTC(),
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding %s params: %w", method, err)
		}
		req.Params = raw
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}

	replies := make(chan Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = replies
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.bus.Publish(Topics{}.RPCRequest(service), payload, c.qos, false); err != nil {
		return fmt.Errorf("calling %s.%s: %w", service, method, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s.%s: %w", ErrTimeout, service, method, ctx.Err())
	case resp := <-replies:
		if resp.Error != nil {
			return fmt.Errorf("%w: %s.%s: %w", ErrRemoteMethod, service, method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decoding %s.%s result: %w", service, method, err)
			}
		}
		return nil
	}
}

// Pending returns the number of calls awaiting a reply.
func (c *Caller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// handleReply routes a reply to its waiting call. Replies for calls that
// already gave up are dropped.
func (c *Caller) handleReply(_ string, payload []byte) error {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("decoding rpc reply: %w", err)
	}

	c.mu.Lock()
	replies, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if ok {
		replies <- resp
	}
	return nil
}
