package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// StartActivityConsumer runs a resilient consumer for the room.activity
// queue. It reconnects with a fixed backoff when the broker connection
// drops and stops cleanly when ctx is cancelled. Each event is appended
// to logs/activity.log; a handler failure nacks without requeue so a
// poison message cannot wedge the queue.
func StartActivityConsumer(ctx context.Context) {
	log := logrus.WithField("component", "activity-consumer")
	backoff := 5 * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := consumeOnce(ctx, log); err != nil {
			log.WithError(err).Warn("activity consumer disconnected; retrying")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func consumeOnce(ctx context.Context, log *logrus.Entry) error {
	conn, err := amqp.Dial(brokerURL())
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(activityQueueName, true, false, false, false, nil); err != nil {
		return err
	}

	deliveries, err := ch.Consume(activityQueueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	log.Info("activity consumer running")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if err := handleActivity(d.Body); err != nil {
				log.WithError(err).Error("activity event rejected")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleActivity appends one activity event to the audit log file.
func handleActivity(body []byte) error {
	var event RoomActivityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("unmarshal activity event: %w", err)
	}

	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join("logs", "activity.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	line := fmt.Sprintf("%s action=%s room=%s (#%d) device=%s request=%d\n",
		event.OccurredAt, event.Action, event.RoomCode, event.RoomID, event.DeviceID, event.RequestID)
	if _, err := f.WriteString(line); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"action":  event.Action,
		"room_id": event.RoomID,
	}).Info("room activity recorded")
	return nil
}
