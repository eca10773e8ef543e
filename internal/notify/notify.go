package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const defaultWriteTimeout = 5 * time.Second

// Event сообщение для сервиса уведомлений.
type Event struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewEvent(n domain.Notification, now time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Reference: n.Reference,
		CreatedAt: now.UTC(),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier публикует уведомления в топик kafka. Ключ сообщения - id юзера, поэтому события одного юзера
// попадают в одну партицию и читаются по порядку.
type KafkaNotifier struct {
	writer  messageWriter
	timeout time.Duration
	l       *logrus.Entry
}

func NewKafkaNotifier(brokers []string, topic string, l *logrus.Logger) *KafkaNotifier {
	return newKafkaNotifier(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}, l)
}

func newKafkaNotifier(w messageWriter, l *logrus.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer:  w,
		timeout: defaultWriteTimeout,
		l:       l.WithField("component", "notify").WithField("module", "kafka"),
	}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n domain.Notification) error {
	event := NewEvent(n, time.Now())
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}

	writeCtx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err = k.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(strconv.FormatInt(n.UserID, 10)),
		Value: value,
		Time:  event.CreatedAt,
	}); err != nil {
		return errors.Wrapf(err, "publish %s notification for user %d", n.Type, n.UserID)
	}
	k.l.WithField("event_id", event.ID).WithField("type", event.Type).Debug("notification published")
	return nil
}

func (k *KafkaNotifier) Close() error {
	return errors.Wrap(k.writer.Close(), "close kafka writer")
}

// LogNotifier пишет уведомления только в лог. Используется, когда брокеры не настроены.
type LogNotifier struct {
	l *logrus.Entry
}

func NewLogNotifier(l *logrus.Logger) *LogNotifier {
	return &LogNotifier{l: l.WithField("component", "notify").WithField("module", "log")}
}

func (n *LogNotifier) Notify(_ context.Context, notification domain.Notification) error {
	n.l.WithFields(logrus.Fields{
		"user_id":   notification.UserID,
		"type":      notification.Type,
		"reference": notification.Reference,
	}).Info(notification.Message)
	return nil
}

func (n *LogNotifier) Close() error {
	return nil
}
