package backend

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// User is the public profile embedded in most records.
type User struct {
	ID            ID     `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email,omitempty"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	IsSeller      bool   `json:"is_seller,omitempty"`
	IsStaff       bool   `json:"is_staff,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

// Message types.
const (
	MessageText  = "text"
	MessageImage = "image"
)

// Message is a chat message as the backend returns it over REST and WebSocket.
type Message struct {
	ID          ID        `json:"id"`
	Chat        ID        `json:"chat"`
	Sender      *User     `json:"sender,omitempty"`
	SenderID    ID        `json:"sender_id,omitempty"`
	MessageType string    `json:"message_type"`
	Content     string    `json:"content"`
	Image       string    `json:"image,omitempty"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// From returns the sender id whichever field carried it.
func (m Message) From() ID {
	if m.SenderID != "" {
		return m.SenderID
	}
	if m.Sender != nil {
		return m.Sender.ID
	}
	return ""
}

// Chat is a two-party conversation.
type Chat struct {
	ID               ID        `json:"id"`
	Participants     []User    `json:"participants,omitempty"`
	OtherParticipant *User     `json:"other_participant,omitempty"`
	Product          *Product  `json:"product,omitempty"`
	LastMessage      *Message  `json:"last_message,omitempty"`
	UnreadCount      int       `json:"unread_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Other returns the participant that is not me.
func (c Chat) Other(me ID) User {
	if c.OtherParticipant != nil {
		return *c.OtherParticipant
	}
	for _, p := range c.Participants {
		if p.ID != me {
			return p
		}
	}
	return User{}
}

// LastActivity is the time the conversation list sorts on.
func (c Chat) LastActivity() time.Time {
	if c.LastMessage != nil && c.LastMessage.CreatedAt.After(c.UpdatedAt) {
		return c.LastMessage.CreatedAt
	}
	if c.UpdatedAt.IsZero() {
		return c.CreatedAt
	}
	return c.UpdatedAt
}

// Product is a marketplace listing.
type Product struct {
	ID          ID              `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency,omitempty"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category,omitempty"`
	Images      []string        `json:"images,omitempty"`
	Seller      *User           `json:"seller,omitempty"`
	IsFavorited bool            `json:"is_favorited"`
}

// InStock reports whether the listing shows stock. Advisory only.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// CartItem is one cart line.
type CartItem struct {
	ID       ID              `json:"id"`
	Product  Product         `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Cart mirrors the backend cart; Total is always the backend's figure.
type Cart struct {
	ID    ID              `json:"id"`
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// Available hides lines whose product shows no stock. This is a display filter:
// checkout may still reject lines it keeps, and the total is not recomputed.
func (c Cart) Available() []CartItem {
	out := make([]CartItem, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Product.InStock() {
			out = append(out, it)
		}
	}
	return out
}

// Order statuses.
const (
	OrderPending    = "pending"
	OrderPaid       = "paid"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
)

// OrderItem is one purchased line.
type OrderItem struct {
	Product  Product         `json:"product"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Order is a placed order.
type Order struct {
	ID              ID              `json:"id"`
	Status          string          `json:"status"`
	Items           []OrderItem     `json:"items,omitempty"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	Carrier         string          `json:"carrier,omitempty"`
	Buyer           *User           `json:"buyer,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Seller application statuses.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// SellerApplication is a request to become a seller.
type SellerApplication struct {
	ID              ID        `json:"id"`
	User            *User     `json:"user,omitempty"`
	ShopName        string    `json:"shop_name"`
	Description     string    `json:"description"`
	Phone           string    `json:"phone,omitempty"`
	Photos          []string  `json:"photos,omitempty"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Page is a paginated listing. Endpoints without pagination return a bare array,
// which decodes into Results with Count set to its length.
type Page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []T    `json:"results"`
}

func (p *Page[T]) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		if err := json.Unmarshal(b, &p.Results); err != nil {
			return err
		}
		p.Count = len(p.Results)
		return nil
	}
	var raw pageFields[T]
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = Page[T](raw)
	return nil
}

type pageFields[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []T    `json:"results"`
}
