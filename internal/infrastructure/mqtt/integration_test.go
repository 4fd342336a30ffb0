//go:build integration

package mqtt

import (
	"errors"
	"testing"
	"time"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func connectTest(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID

	client, err := Connect(cfg, testTopics())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_ConnectInvalidBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg, testTopics())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_AvailabilityRetained(t *testing.T) {
	bridge := connectTest(t, "graylogic-int-bridge")
	if !bridge.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}

	// The online status is retained, so a later subscriber sees it.
	observer := connectTest(t, "graylogic-int-observer")
	got := make(chan string, 1)
	err := observer.Subscribe(testTopics().Availability(), 1, func(_ string, payload []byte) error {
		select {
		case got <- string(payload):
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case p := <-got:
		if p != PayloadOnline {
			t.Errorf("availability = %q, want %q", p, PayloadOnline)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no retained availability message")
	}
}

func TestIntegration_PublishSubscribeRoundtrip(t *testing.T) {
	client := connectTest(t, "graylogic-int-roundtrip")
	topic := testTopics().State("roundtrip")

	got := make(chan string, 1)
	if err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		got <- string(payload)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topic) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	want := `{"temperature":"21.5000"}`
	if err := client.Publish(topic, []byte(want), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case p := <-got:
		if p != want {
			t.Errorf("received %q, want %q", p, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topic) {
		t.Error("HasSubscription() = true after Unsubscribe")
	}
}

func TestIntegration_CloseDisconnects(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "graylogic-int-close"

	client, err := Connect(cfg, testTopics())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := client.Publish("x/y", []byte("z"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after Close error = %v, want ErrNotConnected", err)
	}
}
