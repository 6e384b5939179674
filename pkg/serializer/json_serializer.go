/*
Package serializer provides utilities for serializing and deserializing data.
It implements JSON serialization, used for Magic Admin API payloads, DID token
claims and the HTTP envelopes returned to callers.

Components:
- JSONSerializer interface: Defines methods for encoding and decoding data.
- JSONSerialization struct: Implements the JSONSerializer interface using encoding/json.

Usage:
To use this package, create an instance of JSONSerialization, then call the Encode and Decode methods
to serialize and deserialize data respectively.
*/

// Package serializer provides utilities for serializing and deserializing data.
package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONSerializer is an interface for objects that can serialize and deserialize data.
// It provides methods for encoding and decoding data structures.
type JSONSerializer interface {
	// Encode serializes the provided value into a byte slice.
	// Parameters:
	//   - v: The value to serialize.
	// Returns:
	//   - A byte slice containing the serialized data.
	//   - An error if the operation fails.
	Encode(v interface{}) ([]byte, error)

	// Decode deserializes data from a byte slice into the provided value.
	// Parameters:
	//   - data: The byte slice containing serialized data.
	//   - v: The value to populate with the deserialized data.
	// Returns:
	//   - An error if the operation fails.
	Decode(data []byte, v interface{}) error
}

// JSONSerialization implements JSONSerializer using encoding/json.
type JSONSerialization struct{}

// NewJSONSerialization creates a new instance of JSONSerialization.
// Returns:
//   - A pointer to the newly created JSONSerialization instance.
func NewJSONSerialization() *JSONSerialization {
	return &JSONSerialization{}
}

// Encode serializes the provided value as JSON.
// Parameters:
//   - v: The value to serialize.
//
// Returns:
//   - A byte slice containing the serialized data.
//   - An error if the encoding operation fails.
func (js *JSONSerialization) Encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json: %w", err)
	}
	return data, nil
}

// Decode deserializes JSON data into the provided value.
// Empty input is rejected so callers can tell a missing body from a zero value.
// Parameters:
//   - data: The byte slice containing serialized data.
//   - v: The value to populate with the deserialized data.
//
// Returns:
//   - An error if the decoding operation fails.
func (js *JSONSerialization) Decode(data []byte, v interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("failed to decode json: empty input")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode json: %w", err)
	}
	return nil
}
