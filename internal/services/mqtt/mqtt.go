package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iwtcode/tomographyAdapter/internal/config"
	api "github.com/iwtcode/tomographyAdapter/internal/domain/models"
	"github.com/iwtcode/tomographyAdapter/internal/middleware/logging"
	"github.com/iwtcode/tomographyAdapter/models"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"
)

// CommandHandler выполняет команду, пришедшую из топика команд.
type CommandHandler func(cmd api.MQTTCommand) error

// Bridge публикует события в MQTT (msgpack) и принимает команды устройствам.
type Bridge struct {
	cfg    config.MQTTConfig
	client paho.Client
	logger *logging.Logger
}

func NewBridge(cfg config.MQTTConfig, logger *logging.Logger) *Bridge {
	return &Bridge{cfg: cfg, logger: logger.WithPrefix("MQTT")}
}

// Connect подключается к брокеру с автоматическим переподключением.
func (b *Bridge) Connect(ctx context.Context) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", b.cfg.Broker))
	opts.SetClientID(b.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(paho.Client) {
		b.logger.Info("MQTT connection established", "broker", b.cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		b.logger.Warn("MQTT connection lost, will auto-reconnect", "error", err)
	}

	b.client = paho.NewClient(opts)
	token := b.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt connect: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

func (b *Bridge) Name() string { return "mqtt" }

// Topic возвращает топик события: <events>/<device>/<type>.
func (b *Bridge) Topic(ev models.Event) string {
	device := ev.Device
	if device == "" {
		device = "manager"
	}
	return fmt.Sprintf("%s/%s/%s", b.cfg.TopicEvents, device, ev.Type)
}

// Publish отправляет событие без пикселей изображения.
func (b *Bridge) Publish(ctx context.Context, ev models.Event) error {
	if b.client == nil || !b.client.IsConnectionOpen() {
		return errors.New("mqtt not connected")
	}
	payload, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	token := b.client.Publish(b.Topic(ev), 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish: %w", ctx.Err())
	}
}

// SubscribeCommands передает handle каждую команду из топика команд.
func (b *Bridge) SubscribeCommands(handle CommandHandler) error {
	token := b.client.Subscribe(b.cfg.TopicCommands, 1, func(_ paho.Client, msg paho.Message) {
		cmd, err := DecodeCommand(msg.Payload())
		if err != nil {
			b.logger.Warn("Malformed command", "topic", msg.Topic(), "error", err)
			return
		}
		if err := handle(cmd); err != nil {
			b.logger.Warn("Command rejected", "device", cmd.Device, "function", cmd.Function, "error", err)
		}
	})
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("mqtt subscribe timeout")
	}
	return token.Error()
}

func (b *Bridge) Close() error {
	if b.client != nil {
		b.client.Disconnect(250)
	}
	return nil
}

// EncodeEvent кодирует событие в msgpack, заменяя массив его описанием.
func EncodeEvent(ev models.Event) ([]byte, error) {
	data, err := msgpack.Marshal(api.Compact(ev))
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// DecodeCommand разбирает команду в msgpack.
func DecodeCommand(data []byte) (api.MQTTCommand, error) {
	var cmd api.MQTTCommand
	if err := msgpack.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Device == "" || cmd.Function == "" {
		return cmd, errors.New("decode command: device and function are required")
	}
	return cmd, nil
}
