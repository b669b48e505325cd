package push

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	DefaultTopic   = "notices/published"
	clientIDPrefix = "board-cache"
	subscribeQoS   = byte(1)
	disconnectWait = 250
)

// SyncRequester receives a resync request for every push message.
type SyncRequester interface {
	RequestSync(trigger string) error
}

type Config struct {
	Broker   string
	Topic    string
	Username string
	Password string
	BoardID  string
}

type Subscriber struct {
	cfg       Config
	requester SyncRequester
	client    mqtt.Client
}

func NewSubscriber(cfg Config, requester SyncRequester) (*Subscriber, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}

	s := &Subscriber{cfg: cfg, requester: requester}
	s.client = mqtt.NewClient(s.options())
	return s, nil
}

func (s *Subscriber) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.clientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		slog.Info("Push channel connected", "broker", s.cfg.Broker)
		token := client.Subscribe(s.cfg.Topic, subscribeQoS, s.handleMessage)
		if token.Wait() && token.Error() != nil {
			slog.Error("Failed to subscribe to push topic", "topic", s.cfg.Topic, "error", token.Error())
			return
		}
		slog.Info("Subscribed to push topic", "topic", s.cfg.Topic)
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		slog.Warn("Push channel connection lost", "broker", s.cfg.Broker, "error", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		slog.Debug("Push channel reconnecting", "broker", s.cfg.Broker)
	})

	return opts
}

func (s *Subscriber) clientID() string {
	id := clientIDPrefix
	if s.cfg.BoardID != "" {
		id += "-" + s.cfg.BoardID
	}
	return id + "-" + uuid.New().String()[:8]
}

// Start connects in the background; the client keeps retrying until the
// broker is reachable.
func (s *Subscriber) Start() {
	token := s.client.Connect()
	go func() {
		if token.Wait() && token.Error() != nil {
			slog.Error("Push channel connect failed", "broker", s.cfg.Broker, "error", token.Error())
		}
	}()
}

func (s *Subscriber) Stop() {
	s.client.Disconnect(disconnectWait)
	slog.Debug("Push channel disconnected", "broker", s.cfg.Broker)
}

func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	slog.Info("Push notification received", "topic", msg.Topic(), "bytes", len(msg.Payload()))

	if err := s.requester.RequestSync("push"); err != nil {
		slog.Warn("Failed to request sync from push notification", "error", err)
	}
}
