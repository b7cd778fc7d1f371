//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/felixgeelhaar/codepractice/internal/events"
)

// setupRabbitMQ creates a RabbitMQ container for testing
func setupRabbitMQ(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Skipf("failed to start RabbitMQ container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		t.Fatalf("failed to get AMQP URL: %v", err)
	}
	return amqpURL
}

func receiveOne(t *testing.T, amqpURL, queue string, v any) {
	t.Helper()

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	defer ch.Close()

	deliveries, err := ch.Consume(queue, "", true, false, false, false, nil)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	select {
	case d := <-deliveries:
		if d.ContentType != "application/json" {
			t.Errorf("ContentType = %q, want application/json", d.ContentType)
		}
		if err := json.Unmarshal(d.Body, v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestIntegration_PublishAttempt(t *testing.T) {
	amqpURL := setupRabbitMQ(t)

	pub, err := events.NewAMQPPublisher(amqpURL)
	if err != nil {
		t.Fatalf("NewAMQPPublisher() error = %v", err)
	}
	defer pub.Close()

	sent := &events.AttemptEvent{ExerciseID: "3", Language: "sql", IsCorrect: true, Message: "Correct! Results match perfectly."}
	if err := pub.PublishAttempt(context.Background(), sent); err != nil {
		t.Fatalf("PublishAttempt() error = %v", err)
	}

	var got events.AttemptEvent
	receiveOne(t, amqpURL, events.AttemptQueueName, &got)
	if got.ID != sent.ID || got.ExerciseID != "3" || !got.IsCorrect {
		t.Errorf("received %+v, want %+v", got, sent)
	}
}

func TestIntegration_PublishSession(t *testing.T) {
	amqpURL := setupRabbitMQ(t)

	pub, err := events.NewAMQPPublisher(amqpURL)
	if err != nil {
		t.Fatalf("NewAMQPPublisher() error = %v", err)
	}
	defer pub.Close()

	sent := &events.SessionEvent{SessionID: "s1", Category: "Data Science", Level: 2, Correct: 8, Total: 10, Percentage: 80}
	if err := pub.PublishSession(context.Background(), sent); err != nil {
		t.Fatalf("PublishSession() error = %v", err)
	}

	var got events.SessionEvent
	receiveOne(t, amqpURL, events.SessionQueueName, &got)
	if got.SessionID != "s1" || got.Correct != 8 || got.Percentage != 80 {
		t.Errorf("received %+v", got)
	}
}

func TestIntegration_InvalidURL(t *testing.T) {
	if _, err := events.NewAMQPPublisher("amqp://invalid:5672"); err == nil {
		t.Error("expected error for invalid URL")
	}
}
