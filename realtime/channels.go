package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Shared channels.
const (
	ChannelPublicFeed = "public-feed"
	ChannelRiders     = "riders"
)

// Event names.
const (
	EventNewOrder       = "new-order"
	EventOrderStatus    = "order-status"
	EventOrderAvailable = "order-available"
	EventChatMessage    = "chat-message"
	EventNotification   = "notification"
	EventRatingRequest  = "rating-request"
	EventDishPublished  = "dish-published"
	EventDishUpdated    = "dish-updated"

	EventSubscribed        = "subscription-succeeded"
	EventSubscriptionError = "subscription-error"
)

// Frame actions sent by clients.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

func UserChannel(userID uint) string {
	return fmt.Sprintf("user-%d", userID)
}

func RestaurantChannel(restaurantID uint) string {
	return fmt.Sprintf("restaurant-%d", restaurantID)
}

// ChannelKind classifies a channel name.
type ChannelKind int

const (
	KindUnknown ChannelKind = iota
	KindUser
	KindRestaurant
	KindPublicFeed
	KindRiders
)

// ParseChannel splits a channel name into its kind and scoped id.
func ParseChannel(name string) (ChannelKind, uint) {
	switch name {
	case ChannelPublicFeed:
		return KindPublicFeed, 0
	case ChannelRiders:
		return KindRiders, 0
	}
	for prefix, kind := range map[string]ChannelKind{"user-": KindUser, "restaurant-": KindRestaurant} {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			id, err := strconv.ParseUint(rest, 10, 64)
			if err != nil || id == 0 {
				return KindUnknown, 0
			}
			return kind, uint(id)
		}
	}
	return KindUnknown, 0
}

// Envelope is the server to client frame.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Frame is the client to server frame.
type Frame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// Principal is the authenticated identity behind a connection.
type Principal struct {
	UserID       uint
	Role         string
	RestaurantID uint
}

// ErrChannelForbidden is returned when a principal may not join a channel.
type ErrChannelForbidden struct {
	Channel string
}

func (e *ErrChannelForbidden) Error() string {
	return fmt.Sprintf("not allowed to subscribe to %s", e.Channel)
}

// Authorize decides whether p may subscribe to channel.
func Authorize(p Principal, channel string) error {
	kind, id := ParseChannel(channel)
	switch kind {
	case KindPublicFeed:
		return nil
	case KindUser:
		if id == p.UserID {
			return nil
		}
	case KindRestaurant:
		if p.Role == "restaurant" && id == p.RestaurantID {
			return nil
		}
	case KindRiders:
		if p.Role == "rider" {
			return nil
		}
	}
	return &ErrChannelForbidden{Channel: channel}
}

// DefaultChannels lists the channels an actor joins after connecting.
func DefaultChannels(p Principal) []string {
	channels := []string{UserChannel(p.UserID), ChannelPublicFeed}
	switch p.Role {
	case "restaurant":
		if p.RestaurantID != 0 {
			channels = append(channels, RestaurantChannel(p.RestaurantID))
		}
	case "rider":
		channels = append(channels, ChannelRiders)
	}
	return channels
}
