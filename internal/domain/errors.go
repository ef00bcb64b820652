package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidInput indicates an empty or unusable user message
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidSession indicates a malformed session token
	ErrInvalidSession = errors.New("invalid session id")
	// ErrProvider indicates an external capability returned nothing usable
	ErrProvider = errors.New("provider error")
	// ErrRetrieval indicates the embedding or index capability failed
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration indicates the final language-model call failed
	ErrGeneration = errors.New("generation failed")
)
