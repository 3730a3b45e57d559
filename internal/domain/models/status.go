package models

// Document status values for users and groups.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)
