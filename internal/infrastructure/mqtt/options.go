package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/scene-rotator/internal/infrastructure/config"
)

// Timeouts and limits.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second

	// Paho takes the disconnect quiesce period in milliseconds.
	defaultDisconnectQuiesce = 1000

	maxQoS = 2
)

// Presence states published on the presence topic.
const (
	presenceOnline  = "online"
	presenceOffline = "offline"
)

// brokerURL renders the paho server address for cfg.
func brokerURL(cfg config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}

// sessionOptions builds the paho options for one client. Sessions are
// clean; paho reconnects on its own within the configured delays, and the
// broker announces an offline presence if the client vanishes.
func sessionOptions(cfg config.MQTTConfig, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if d := time.Duration(cfg.Reconnect.InitialDelay) * time.Second; d > 0 {
		opts.SetConnectRetryInterval(d)
	}
	if d := time.Duration(cfg.Reconnect.MaxDelay) * time.Second; d > 0 {
		opts.SetMaxReconnectInterval(d)
	}

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	will := presence(cfg.Broker.ClientID, presenceOffline, "unexpected_disconnect")
	opts.SetBinaryWill(topics.Presence(), will, 1, true)
	return opts
}

// presencePayload is the retained body of the presence topic.
type presencePayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func presence(clientID, status, reason string) []byte {
	//nolint:errcheck // flat struct of strings
	data, _ := json.Marshal(presencePayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return data
}
