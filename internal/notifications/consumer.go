package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox/payloads"
)

const shippingNotificationConsumer = "shipping-notifications"

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type processedGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns line item status changes into buyer notifications. Failures here
// never affect the transition that produced the event.
type Consumer struct {
	repo         creator
	subscription *pubsub.Subscriber
	idempotency  processedGuard
	logg         *logger.Logger
}

func NewConsumer(repo creator, subscription *pubsub.Subscriber, guard processedGuard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run blocks until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process reports whether the message should be redelivered.
func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	eventType := attrs["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventLineItemStatusChanged) {
		c.logg.Debug(logCtx, "skipping event")
		return false
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return false
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return false
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, shippingNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return true
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return false
	}

	var payload payloads.LineItemStatusChangedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return false
	}
	logCtx = c.logg.WithOrderID(logCtx, payload.OrderID.String())

	if err := c.notifyBuyer(ctx, payload); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, shippingNotificationConsumer, eventID)
		return true
	}
	c.logg.Info(logCtx, "buyer notified of shipping update")
	return false
}

func (c *Consumer) notifyBuyer(ctx context.Context, payload payloads.LineItemStatusChangedEvent) error {
	if payload.BuyerID == uuid.Nil {
		return fmt.Errorf("buyer id missing")
	}
	title, message := shippingMessage(payload)
	link := fmt.Sprintf("/orders/%s", payload.OrderID)
	return c.repo.Create(ctx, &models.Notification{
		UserID:  payload.BuyerID,
		Type:    enums.NotificationTypeShippingUpdate,
		Title:   title,
		Message: message,
		Link:    &link,
	})
}

func shippingMessage(payload payloads.LineItemStatusChangedEvent) (string, string) {
	name := payload.ProductName
	if name == "" {
		name = "An item"
	}
	switch payload.Status {
	case enums.LineItemStatusShipping:
		return "Item on its way", fmt.Sprintf("%s is being shipped.", name)
	case enums.LineItemStatusShipped:
		return "Item delivered", fmt.Sprintf("%s has been shipped.", name)
	case enums.LineItemStatusFailedToShip:
		return "Shipping problem", fmt.Sprintf("%s could not be shipped.", name)
	default:
		return "Order updated", fmt.Sprintf("%s is now %s.", name, payload.Status)
	}
}
