package storage

import (
	"time"

	"modgarage/internal/tracking"
)

// Order status. Tracking progression only applies while an order is
// confirmed; cancellation freezes the stage at its last computed value.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Review moderation status.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
)

// DefaultPaymentMethod is applied when checkout omits one.
const DefaultPaymentMethod = "cash_on_delivery"

type Order struct {
	ID            string         `json:"id"`
	BuyerName     string         `json:"buyer_name"`
	BuyerEmail    string         `json:"buyer_email"`
	Title         string         `json:"title"`
	Price         float64        `json:"price"`
	Address       string         `json:"address"`
	PaymentMethod string         `json:"payment_method"`
	Status        string         `json:"status"`
	TrackingStage tracking.Stage `json:"tracking_stage"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"created_at"`
}

type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type Review struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Vehicle   string    `json:"vehicle"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Collection names. These are both the persisted snapshot keys and the
// identifiers carried on sync-channel notifications.
const (
	CollectionOrders   = "orders"
	CollectionUsers    = "users"
	CollectionMessages = "messages"
	CollectionReviews  = "reviews"

	// CollectionOrderHistory is the legacy order collection. It is read
	// once by the migration pass and never written afterwards.
	CollectionOrderHistory = "order_history"
)

// collectionAliases maps a logical collection to every snapshot key it may
// have been stored under. Earlier storefront builds kept duplicated copies
// of the order list under separate keys; a delete has to hit all of them.
var collectionAliases = map[string][]string{
	CollectionOrders:   {CollectionOrders, "all_orders", "admin_orders"},
	CollectionUsers:    {CollectionUsers},
	CollectionMessages: {CollectionMessages},
	CollectionReviews:  {CollectionReviews},
}

// Aliases returns every snapshot key the named collection may live under,
// primary key first. Unknown collections map to themselves.
func Aliases(collection string) []string {
	if keys, ok := collectionAliases[collection]; ok {
		return keys
	}
	return []string{collection}
}

// KnownCollection reports whether name identifies one of the four
// admin-managed collections.
func KnownCollection(name string) bool {
	_, ok := collectionAliases[name]
	return ok
}
