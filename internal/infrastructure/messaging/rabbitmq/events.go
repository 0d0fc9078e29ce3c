package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/usecase"
)

// Routing keys published by billing on the billing.events exchange.
const (
	KeySubscriptionCreated   = "subscription.created"
	KeySubscriptionActivated = "subscription.activated"
	KeySubscriptionCancelled = "subscription.cancelled"
	KeySubscriptionExpired   = "subscription.expired"
	KeySubscriptionSuspended = "subscription.suspended"
)

var errUnroutable = errors.New("unroutable billing event")

// subscriptionEvent is the billing payload for every subscription.* key.
type subscriptionEvent struct {
	EventID        string    `json:"event_id"`
	SubscriptionID string    `json:"subscription_id"`
	UserID         string    `json:"user_id"`
	Type           string    `json:"type,omitempty"`
	Status         string    `json:"status,omitempty"`
	StartAt        time.Time `json:"start_at,omitempty"`
	EndAt          time.Time `json:"end_at,omitempty"`
	Amount         float64   `json:"amount,omitempty"`
}

var statusByKey = map[string]domain.SubscriptionStatus{
	KeySubscriptionActivated: domain.SubscriptionActive,
	KeySubscriptionCancelled: domain.SubscriptionCancelled,
	KeySubscriptionExpired:   domain.SubscriptionExpired,
	KeySubscriptionSuspended: domain.SubscriptionSuspended,
}

// decode turns a billing message into the command it stands for. Commands are
// issued by the system actor.
func decode(routingKey string, body []byte) (any, error) {
	var evt subscriptionEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", routingKey, err)
	}
	if evt.SubscriptionID == "" || evt.UserID == "" {
		return nil, fmt.Errorf("decode %s: subscription_id and user_id are required", routingKey)
	}

	if routingKey == KeySubscriptionCreated {
		status := domain.SubscriptionPending
		if evt.Status != "" {
			parsed, err := domain.ParseSubscriptionStatus(evt.Status)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", routingKey, err)
			}
			status = parsed
		}
		return usecase.CreateSubscription{
			ActorID: domain.SystemActor,
			EventID: evt.EventID,
			ID:      evt.SubscriptionID,
			UserID:  evt.UserID,
			Type:    domain.SubscriptionType(strings.ToLower(evt.Type)),
			Status:  status,
			StartAt: evt.StartAt,
			EndAt:   evt.EndAt,
			Amount:  evt.Amount,
		}, nil
	}

	status, ok := statusByKey[routingKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnroutable, routingKey)
	}
	return usecase.UpdateSubscriptionStatus{
		ActorID:        domain.SystemActor,
		EventID:        evt.EventID,
		UserID:         evt.UserID,
		SubscriptionID: evt.SubscriptionID,
		Status:         status,
	}, nil
}
