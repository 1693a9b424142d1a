package models

// Entity ids are nanoids over a lowercase alphanumeric alphabet.
const (
	Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	IDLength = 16
)
