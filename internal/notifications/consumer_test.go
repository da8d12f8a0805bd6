package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketplace-orders/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox/idempotency"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-orders/pkg/redis"
)

type failingCreator struct{ calls int }

func (f *failingCreator) Create(context.Context, *models.Notification) error {
	f.calls++
	return errors.New("db down")
}

func newManager(t *testing.T) *idempotency.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	manager, err := idempotency.NewManager(client, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return manager
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func lineItemMessage(t *testing.T, eventID uuid.UUID, payload payloads.LineItemStatusChangedEvent) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID.String(), OccurredAt: time.Now(), Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func TestConsumerCreatesBuyerNotificationOnce(t *testing.T) {
	conn := dbtest.Open(t)
	consumer := &Consumer{repo: NewRepository(conn), idempotency: newManager(t), logg: testLogger()}

	buyer := uuid.New()
	eventID := uuid.New()
	body := lineItemMessage(t, eventID, payloads.LineItemStatusChangedEvent{
		LineItemID:  uuid.New(),
		OrderID:     uuid.New(),
		BuyerID:     buyer,
		ProductName: "Desk lamp",
		Status:      enums.LineItemStatusShipped,
	})
	attrs := map[string]string{"event_type": string(enums.EventLineItemStatusChanged)}

	if retry := consumer.process(context.Background(), "m1", attrs, body); retry {
		t.Fatal("expected first delivery to ack")
	}
	if retry := consumer.process(context.Background(), "m2", attrs, body); retry {
		t.Fatal("expected redelivery to ack")
	}

	var rows []models.Notification
	if err := conn.Where("user_id = ?", buyer).Find(&rows).Error; err != nil {
		t.Fatalf("load notifications: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(rows))
	}
	if rows[0].Type != enums.NotificationTypeShippingUpdate || rows[0].Message != "Desk lamp has been shipped." {
		t.Fatalf("unexpected notification %+v", rows[0])
	}
}

func TestConsumerReleasesKeyOnFailure(t *testing.T) {
	creator := &failingCreator{}
	consumer := &Consumer{repo: creator, idempotency: newManager(t), logg: testLogger()}
	body := lineItemMessage(t, uuid.New(), payloads.LineItemStatusChangedEvent{BuyerID: uuid.New(), Status: enums.LineItemStatusShipping})
	attrs := map[string]string{"event_type": string(enums.EventLineItemStatusChanged)}

	if retry := consumer.process(context.Background(), "m1", attrs, body); !retry {
		t.Fatal("expected nack when the store fails")
	}
	if retry := consumer.process(context.Background(), "m1", attrs, body); !retry {
		t.Fatal("expected the redelivery to be attempted again")
	}
	if creator.calls != 2 {
		t.Fatalf("expected two create attempts, got %d", creator.calls)
	}
}

func TestConsumerSkipsOtherEvents(t *testing.T) {
	creator := &failingCreator{}
	consumer := &Consumer{repo: creator, idempotency: newManager(t), logg: testLogger()}

	if retry := consumer.process(context.Background(), "m1", map[string]string{"event_type": "order_created"}, []byte("{}")); retry {
		t.Fatal("expected ack for unrelated events")
	}
	if retry := consumer.process(context.Background(), "m2", map[string]string{"event_type": string(enums.EventLineItemStatusChanged)}, []byte("not json")); retry {
		t.Fatal("expected ack for undecodable payloads")
	}
	if creator.calls != 0 {
		t.Fatalf("expected no writes, got %d", creator.calls)
	}
}

func TestShippingMessage(t *testing.T) {
	title, message := shippingMessage(payloads.LineItemStatusChangedEvent{Status: enums.LineItemStatusFailedToShip})
	if title != "Shipping problem" || message != "An item could not be shipped." {
		t.Fatalf("unexpected message %q / %q", title, message)
	}
}
