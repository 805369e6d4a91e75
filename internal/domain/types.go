package domain

import "strings"

// BookingStatus is the closed set of booking lifecycle states.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// Label returns the capitalized status used in driver views.
func (s BookingStatus) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// PaymentMethod is the closed set of accepted mobile wallets.
type PaymentMethod string

const (
	PaymentBkash  PaymentMethod = "bkash"
	PaymentNagad  PaymentMethod = "nagad"
	PaymentRocket PaymentMethod = "rocket"
)

// ParsePaymentMethod normalizes s and reports whether it is an accepted method.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case PaymentBkash, PaymentNagad, PaymentRocket:
		return m, true
	}
	return "", false
}

// User roles.
const (
	RoleStudent = "student"
	RoleDriver  = "driver"
	RoleAdmin   = "admin"
)

// RequestContext carries authenticated user info when available.
type RequestContext struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
