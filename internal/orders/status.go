// Package orders carries the order-lifecycle domain model consumed by the
// panel framework: the status ladder, the delivery methods, and the single
// editability policy every order field defers to.
package orders

import (
	"fmt"

	"github.com/saborverde/opsboard/model"
)

// DeliveryMethod distinguishes delivered orders from customer pickups.
type DeliveryMethod string

const (
	DeliveryEntrega  DeliveryMethod = "ENTREGA"
	DeliveryRetirada DeliveryMethod = "RETIRADA"
)

// OrderStatus is one rung of the order lifecycle ladder. SequenceOrder zero
// means the order has not yet entered processing; DeliveryMethod is empty for
// rungs shared by both fulfilment paths.
type OrderStatus struct {
	ID             string         `json:"id"`
	Description    string         `json:"description"`
	SequenceOrder  int            `json:"sequence_order"`
	DeliveryMethod DeliveryMethod `json:"delivery_method,omitempty"`
}

// Editable is the one editability policy for order fields: an order stays
// editable only while its status has not advanced past the initial rung.
// Every field of every order panel must call this rather than re-derive the
// predicate locally; divergence between fields of the same order is a bug,
// not policy.
func Editable(status OrderStatus) bool {
	return status.SequenceOrder == 0
}

// StatusFromRecord reads the embedded status object out of an order record.
// The orders service nests it under the "status" key as a JSON object.
func StatusFromRecord(rec model.Record) (OrderStatus, error) {
	raw, ok := rec["status"]
	if !ok || raw == nil {
		return OrderStatus{}, fmt.Errorf("order record has no status")
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		if s, ok := raw.(OrderStatus); ok {
			return s, nil
		}
		return OrderStatus{}, fmt.Errorf("order status: expected object, got %T", raw)
	}

	var status OrderStatus
	if v, ok := obj["id"].(string); ok {
		status.ID = v
	}
	if v, ok := obj["description"].(string); ok {
		status.Description = v
	}
	switch v := obj["sequence_order"].(type) {
	case int:
		status.SequenceOrder = v
	case int64:
		status.SequenceOrder = int(v)
	case float64:
		status.SequenceOrder = int(v)
	}
	if v, ok := obj["delivery_method"].(string); ok {
		status.DeliveryMethod = DeliveryMethod(v)
	}
	return status, nil
}

// Wrap pairs a raw field value with the editability computed from the order's
// status at the moment of the call. The result is frozen: reopening the panel
// is the only way to pick up a status change.
func Wrap(rec model.Record, value any) model.Editable {
	status, err := StatusFromRecord(rec)
	if err != nil {
		// No status means no evidence the order advanced; treat as editable.
		return model.Editable{Value: value, IsEditable: true}
	}
	return model.Editable{Value: value, IsEditable: Editable(status)}
}
