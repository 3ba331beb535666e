package legacy

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"modgarage/internal/storage"
	"modgarage/internal/tracking"
)

// SchemaKind discriminates the historically-observed order record shapes.
// Every legacy shape is an enumerable, testable case; there is no open-ended
// fallback chain.
type SchemaKind string

const (
	// SchemaCanonical is the current shape (snake_case keys, with the
	// camelCase spelling of the same fields also observed in older dumps).
	SchemaCanonical SchemaKind = "canonical"
	// SchemaStorefront is the early storefront checkout shape keyed by
	// user / product / payment.
	SchemaStorefront SchemaKind = "storefront"
	// SchemaAdmin is the generic admin-console export shape.
	SchemaAdmin SchemaKind = "admin"
)

// fieldMap names, per schema, the source keys for each canonical field in
// priority order. Only spelling variants of the same schema appear together.
type fieldMap struct {
	ID         []string
	BuyerName  []string
	BuyerEmail []string
	Title      []string
	Price      []string
	Address    []string
	Payment    []string
	Status     []string
	Stage      []string
	Created    []string
	Updated    []string
}

var schemaFields = map[SchemaKind]fieldMap{
	SchemaCanonical: {
		ID:         []string{"id"},
		BuyerName:  []string{"buyer_name", "buyerName"},
		BuyerEmail: []string{"buyer_email", "buyerEmail"},
		Title:      []string{"title"},
		Price:      []string{"price"},
		Address:    []string{"address"},
		Payment:    []string{"payment_method", "paymentMethod"},
		Status:     []string{"status"},
		Stage:      []string{"tracking_stage", "trackingStage"},
		Created:    []string{"created_at", "creationTimestamp"},
		Updated:    []string{"updated_at"},
	},
	SchemaStorefront: {
		ID:         []string{"id"},
		BuyerName:  []string{"user"},
		BuyerEmail: []string{"email"},
		Title:      []string{"product"},
		Price:      []string{"price"},
		Address:    []string{"address"},
		Payment:    []string{"payment"},
		Status:     []string{"status"},
		Stage:      []string{"stage"},
		Created:    []string{"date"},
	},
	SchemaAdmin: {
		ID:         []string{"id"},
		BuyerName:  []string{"customer"},
		BuyerEmail: []string{"contact"},
		Title:      []string{"name"},
		Price:      []string{"amount", "price"},
		Address:    []string{"address"},
		Payment:    []string{"payment"},
		Status:     []string{"status"},
		Created:    []string{"created"},
	},
}

// DetectSchema classifies a raw record. Canonical wins when its keys are
// present; the storefront shape is recognized by its distinctive keys;
// anything else is treated as the admin export shape.
func DetectSchema(raw map[string]any) SchemaKind {
	if hasAny(raw, "buyer_name", "buyerName") {
		return SchemaCanonical
	}
	if hasAny(raw, "user", "product", "payment") {
		return SchemaStorefront
	}
	return SchemaAdmin
}

// Normalizer converts any observed record shape into a canonical Order that
// satisfies every schema invariant. It never fails and is idempotent.
type Normalizer struct {
	timeNow func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{timeNow: func() time.Time { return time.Now().UTC() }}
}

func (n *Normalizer) Normalize(raw map[string]any) storage.Order {
	fields := schemaFields[DetectSchema(raw)]
	now := n.timeNow()

	createdAt, ok := pickTime(raw, fields.Created)
	if !ok {
		createdAt = now
	}
	updatedAt, ok := pickTime(raw, fields.Updated)
	if !ok {
		updatedAt = createdAt
	}

	order := storage.Order{
		ID:            pickString(raw, fields.ID, ""),
		BuyerName:     pickString(raw, fields.BuyerName, "Unknown Customer"),
		BuyerEmail:    pickString(raw, fields.BuyerEmail, "unknown@example.com"),
		Title:         pickString(raw, fields.Title, "Unknown Item"),
		Price:         pickPrice(raw, fields.Price),
		Address:       pickString(raw, fields.Address, ""),
		PaymentMethod: pickString(raw, fields.Payment, storage.DefaultPaymentMethod),
		Status:        normalizeStatus(pickString(raw, fields.Status, storage.StatusConfirmed)),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}

	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	stage := normalizeStage(pickString(raw, fields.Stage, ""))
	if !tracking.Valid(stage) {
		// No usable recorded stage: recompute from creation time. For a
		// cancelled record this is the best available freeze point.
		stage = tracking.StageAt(order.CreatedAt, now)
	}
	order.TrackingStage = stage

	return order
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cancelled", "canceled":
		return storage.StatusCancelled
	default:
		return storage.StatusConfirmed
	}
}

// normalizeStage maps recorded stage spellings ("Order Confirmed",
// "out-for-delivery", ...) onto the canonical stage names.
func normalizeStage(s string) tracking.Stage {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return tracking.Stage(s)
}

func hasAny(raw map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := raw[k]; ok {
			return true
		}
	}
	return false
}

// pickString returns the first non-empty string among the source keys, else
// the default. Non-string scalars are stringified; null counts as missing.
func pickString(raw map[string]any, keys []string, def string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return def
}

// pickPrice coalesces the price fields to a non-negative number. Anything
// missing, malformed, or negative becomes 0.
func pickPrice(raw map[string]any, keys []string) float64 {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			if t >= 0 {
				return t
			}
			return 0
		case int:
			if t >= 0 {
				return float64(t)
			}
			return 0
		case string:
			if p, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && p >= 0 {
				return p
			}
			return 0
		}
	}
	return 0
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func pickTime(raw map[string]any, keys []string) (time.Time, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			for _, layout := range timeLayouts {
				if ts, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
					return ts.UTC(), true
				}
			}
		case float64:
			// Unix timestamps, in seconds or milliseconds.
			if t > 1e12 {
				return time.UnixMilli(int64(t)).UTC(), true
			}
			if t > 0 {
				return time.Unix(int64(t), 0).UTC(), true
			}
		}
	}
	return time.Time{}, false
}
