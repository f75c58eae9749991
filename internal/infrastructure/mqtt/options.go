package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/config"
)

const (
	connectTimeout          = 10 * time.Second
	operationTimeout        = 5 * time.Second
	keepAlive               = 60 * time.Second
	disconnectQuiesceMillis = 1000

	maxQoS = 2
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// clientOptions maps cfg onto paho options. Sessions are clean; the client
// replays its own subscriptions. The last will marks the scheduler offline
// if it vanishes without Close.
func clientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetWill(Topics{}.Status(), statusMessage(statusOffline, cfg.Broker.ClientID, "unexpected_disconnect"), 1, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// StatusMessage is the retained body of Topics.Status.
type StatusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusMessage(status, clientID, reason string) string {
	b, _ := json.Marshal(StatusMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return string(b)
}
