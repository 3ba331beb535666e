package repository

import (
	"errors"
	"time"
)

var ErrObjectNotFound = errors.New("not found")

type Order struct {
	ID            string    `db:"id"`
	BuyerName     string    `db:"buyer_name"`
	BuyerEmail    string    `db:"buyer_email"`
	Title         string    `db:"title"`
	Price         float64   `db:"price"`
	Address       string    `db:"address"`
	PaymentMethod string    `db:"payment_method"`
	Status        string    `db:"status"`
	TrackingStage string    `db:"tracking_stage"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type User struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Admin        bool      `db:"admin"`
	CreatedAt    time.Time `db:"created_at"`
}

type Message struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Subject   string    `db:"subject"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

type Review struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Vehicle   string    `db:"vehicle"`
	Rating    int       `db:"rating"`
	Comment   string    `db:"comment"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

// LegacyOrder is a raw historical record kept verbatim as JSON. The
// migration pass reads these once and never writes them back.
type LegacyOrder struct {
	ID      int64     `db:"id"`
	Payload []byte    `db:"payload"`
	AddedAt time.Time `db:"added_at"`
}
