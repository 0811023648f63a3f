package meross

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// BrokerConfig describes one MQTT connection to a regional domain.
type BrokerConfig struct {
	Host          string
	Port          int
	ClientID      string
	Username      string
	Password      string
	KeepAlive     time.Duration
	RetryInterval time.Duration
	TLS           *tls.Config
}

// BrokerHooks are invoked by a BrokerClient from its own goroutines.
type BrokerHooks struct {
	OnConnect        func()
	OnConnectionLost func(err error)
	OnReconnecting   func()
	OnError          func(err error)
}

// BrokerClient is the slice of an MQTT client the transport needs.
type BrokerClient interface {
	// Connect starts connecting and returns immediately. Failures are
	// reported through BrokerHooks.OnError.
	Connect()
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Publish(topic string, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// Dialer builds a BrokerClient. DialPaho is the production implementation.
type Dialer func(cfg BrokerConfig, hooks BrokerHooks) BrokerClient

const brokerOperationTimeout = 10 * time.Second

type pahoClient struct {
	client mqtt.Client
	hooks  BrokerHooks
}

// DialPaho returns a BrokerClient backed by the Eclipse Paho MQTT client.
// Network-level keepalive and reconnects are left to paho.
func DialPaho(cfg BrokerConfig, hooks BrokerHooks) BrokerClient {
	tlsConfig := cfg.TLS
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tls://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetTLSConfig(tlsConfig).
		SetKeepAlive(cfg.KeepAlive).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(cfg.RetryInterval).
		SetConnectTimeout(brokerOperationTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			hooks.OnConnect()
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			hooks.OnConnectionLost(err)
		}).
		SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			hooks.OnReconnecting()
		})

	return &pahoClient{client: mqtt.NewClient(opts), hooks: hooks}
}

func (p *pahoClient) Connect() {
	token := p.client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			p.hooks.OnError(err)
		}
	}()
}

func (p *pahoClient) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := p.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(brokerOperationTimeout) {
		return fmt.Errorf("subscribe %s: %w", topic, errors.New("timed out"))
	}
	return token.Error()
}

func (p *pahoClient) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(brokerOperationTimeout) {
		return fmt.Errorf("publish %s: %w", topic, errors.New("timed out"))
	}
	return token.Error()
}

func (p *pahoClient) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

func (p *pahoClient) Disconnect() {
	p.client.Disconnect(0)
}
