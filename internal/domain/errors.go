package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
// Callers treat it as recoverable: the dialog restarts at the main menu.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownTopic is returned when content is requested for a topic
// outside the catalog.
var ErrUnknownTopic = errors.New("unknown topic")
