package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fanpresence/internal/infrastructure/config"
)

// testConfig returns an MQTT configuration for a local Mosquitto broker.
func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to the local broker, skipping the test if none is
// running.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	client, err := Connect(testConfig(clientID))
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// tracked reports whether topic is in the client's restore set and how many
// topics the set holds.
func tracked(c *Client, topic string) (bool, int) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok, len(c.subscriptions)
}

// =============================================================================
// Broker-backed Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectOrSkip(t, "fan-presence-test-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := connectOrSkip(t, "fan-presence-test-health")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	client := connectOrSkip(t, "fan-presence-test-roundtrip")

	topic := Topics{}.TachState("roundtrip_test")
	received := make(chan string, 1)

	err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if ok, _ := tracked(client, topic); !ok {
		t.Error("topic not tracked after Subscribe()")
	}

	if err := client.Publish(topic, []byte(`{"rpm":4200}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != `{"rpm":4200}` {
			t.Errorf("received %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if _, n := tracked(client, topic); n != 0 {
		t.Errorf("tracked subscriptions = %d after Unsubscribe(), want 0", n)
	}
}

func TestCallerOverBroker(t *testing.T) {
	client := connectOrSkip(t, "fan-presence-test-rpc")

	// Serve a trivial echo method on the same connection.
	service := "test.Echo"
	err := client.Subscribe(Topics{}.RPCRequest(service), 1, func(_ string, payload []byte) error {
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			return err
		}
		resp, _ := json.Marshal(Response{ID: req.ID, Result: req.Params}) //nolint:errcheck // Test helper
		return client.Publish(req.ReplyTo, resp, 1, false)
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	caller := NewCaller(client, client.ClientID(), client.QoS())
	if err := caller.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer caller.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got string
	if err := caller.Call(ctx, service, "Echo", "hello", &got); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("Call() result = %q, want %q", got, "hello")
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig("fan-presence-test-refused")
	cfg.Broker.Port = 19999

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestDisconnectedClient(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if client.IsConnected() {
		t.Error("IsConnected() = true for unconnected client")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"publish empty topic", func() error { return client.Publish("", nil, 1, false) }, ErrInvalidTopic},
		{"publish bad qos", func() error { return client.Publish("t", nil, 3, false) }, ErrInvalidQoS},
		{"publish oversized", func() error { return client.Publish("t", make([]byte, maxPayloadSize+1), 1, false) }, ErrPublishFailed},
		{"publish disconnected", func() error { return client.Publish("t", nil, 1, false) }, ErrNotConnected},
		{"subscribe empty topic", func() error { return client.Subscribe("", 1, noop) }, ErrInvalidTopic},
		{"subscribe bad qos", func() error { return client.Subscribe("t", 3, noop) }, ErrInvalidQoS},
		{"subscribe nil handler", func() error { return client.Subscribe("t", 1, nil) }, ErrSubscribeFailed},
		{"subscribe disconnected", func() error { return client.Subscribe("t", 1, noop) }, ErrNotConnected},
		{"unsubscribe empty topic", func() error { return client.Unsubscribe("") }, ErrInvalidTopic},
		{"unsubscribe disconnected", func() error { return client.Unsubscribe("t") }, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, n := tracked(client, "t"); n != 0 {
		t.Errorf("tracked subscriptions = %d, want 0", n)
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestWrapHandler(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{}
	client.SetLogger(logger)

	failing := client.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })
	failing(nil, fakeMessage{topic: "t"})

	panicking := client.wrapHandler(func(string, []byte) error { panic("boom") })
	panicking(nil, fakeMessage{topic: "t"})

	if len(logger.warns) != 1 {
		t.Errorf("warns = %d, want 1", len(logger.warns))
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %d, want 1", len(logger.errors))
	}
}

func TestStatusPayload(t *testing.T) {
	var msg statusMessage
	if err := json.Unmarshal(statusPayload("fp", "offline", "graceful_shutdown"), &msg); err != nil {
		t.Fatalf("statusPayload() is not JSON: %v", err)
	}
	if msg.Status != "offline" || msg.ClientID != "fp" || msg.Reason != "graceful_shutdown" {
		t.Errorf("statusPayload() = %+v", msg)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339", msg.Timestamp)
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"RPCRequest", topics.RPCRequest("xyz.openbmc_project.ObjectMapper"), "platform/rpc/xyz.openbmc_project.ObjectMapper"},
		{"RPCReply", topics.RPCReply("fan-presence"), "platform/reply/fan-presence"},
		{"TachState", topics.TachState("fan0_0"), "platform/state/tach/fan0_0"},
		{"SystemStatus", topics.SystemStatus(), "platform/system/status"},
		{"Health", topics.Health("fan-presence"), "platform/health/fan-presence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}
