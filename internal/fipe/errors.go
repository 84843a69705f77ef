package fipe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput means make/model are empty or the year is outside [1900, 2100]
	ErrInvalidInput = errors.New("invalid lookup input")

	// ErrNotFound is matched by every *NotFoundError
	ErrNotFound = errors.New("not found in FIPE catalog")

	// ErrUpstreamUnavailable covers transport errors, timeouts and non-2xx answers
	ErrUpstreamUnavailable = errors.New("FIPE upstream unavailable")

	// ErrUnparsableResponse means the price string did not parse; it points to upstream format drift
	ErrUnparsableResponse = errors.New("FIPE price could not be parsed")
)

// Stage names the catalog level where a lookup stopped
type Stage string

const (
	StageMarca  Stage = "marca"
	StageModelo Stage = "modelo"
	StageAno    Stage = "ano"
)

// NotFoundError reports a catalog miss at one stage
type NotFoundError struct {
	Stage Stage
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found in FIPE catalog", e.Stage, e.Query)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UnparsableError carries the raw price string that failed to parse
type UnparsableError struct {
	Raw string
}

func (e *UnparsableError) Error() string {
	return fmt.Sprintf("FIPE price %q could not be parsed", e.Raw)
}

func (e *UnparsableError) Is(target error) bool {
	return target == ErrUnparsableResponse
}
