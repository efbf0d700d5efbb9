// Package apperr carries the business-rule error taxonomy shared by the
// order, menu and payment services. Infrastructure errors (store down, broker
// unreachable) are never wrapped into these kinds; they propagate as-is.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInsufficientStock
	KindInvalidPaymentMethod
	KindInvalidStateTransition
	KindInvalidCallback
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case KindInvalidPaymentMethod:
		return "INVALID_PAYMENT_METHOD"
	case KindInvalidStateTransition:
		return "INVALID_STATE_TRANSITION"
	case KindInvalidCallback:
		return "INVALID_CALLBACK"
	case KindValidation:
		return "VALIDATION"
	}
	return "UNKNOWN"
}

// Error is a tagged business error: a kind plus the entity/id it concerns.
// Requested/Available are filled for stock refusals only.
type Error struct {
	Kind      Kind
	Entity    string
	ID        string
	Msg       string
	Requested int
	Available int
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindInsufficientStock:
		return fmt.Sprintf("%s %s: insufficient stock: requested %d, available %d",
			e.Entity, e.ID, e.Requested, e.Available)
	case e.ID != "" && e.Msg != "":
		return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Msg)
	case e.ID != "":
		return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Kind)
	}
	return e.Msg
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Msg: "not found"}
}

func InsufficientStock(offeringID string, requested, available int) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Entity:    "offering",
		ID:        offeringID,
		Requested: requested,
		Available: available,
	}
}

func InvalidPaymentMethod(method string) *Error {
	return &Error{
		Kind: KindInvalidPaymentMethod,
		Msg:  fmt.Sprintf("payment method %q is not supported", method),
	}
}

func InvalidTransition(orderID, msg string) *Error {
	return &Error{Kind: KindInvalidStateTransition, Entity: "order", ID: orderID, Msg: msg}
}

func InvalidCallback(msg string) *Error {
	return &Error{Kind: KindInvalidCallback, Msg: msg}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the business kind of err, or KindUnknown for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, k Kind) bool { return KindOf(err) == k }
