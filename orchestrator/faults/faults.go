// Copyright 2025 ChainSight
// SPDX-License-Identifier: Apache-2.0

// Package faults defines the error taxonomy shared by the orchestrator's
// sub-agents. The coordinator inspects these types to decide whether a
// failure is penalized (access denial), surfaced as a degraded field
// (upstream failure) or turned into a specific user-facing suggestion
// (extraction failure). A fault in one sub-agent never aborts the turn.
package faults

import (
	"errors"
	"fmt"
)

// AccessDeniedError reports a role or region policy violation. Message is
// safe to show to the user; it never exposes the underlying data.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string {
	return e.Message
}

// AccessDenied builds an AccessDeniedError from a format string.
func AccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// IsAccessDenied reports whether err is (or wraps) an AccessDeniedError.
func IsAccessDenied(err error) bool {
	var target *AccessDeniedError
	return errors.As(err, &target)
}

// UpstreamError reports a failure of an external collaborator (LLM,
// embedding service, search API, database). Only rate limiting is ever
// retried; every other upstream failure is surfaced after the current
// attempt.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err as an UpstreamError for the named service.
func Upstream(service string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Err: err}
}

// IsUpstream reports whether err is (or wraps) an UpstreamError.
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// ExtractionError reports that a required value could not be parsed out
// of free text (for example a market/year pair). It is surfaced as a
// specific user-facing suggestion, not a generic failure.
type ExtractionError struct {
	What string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract %s", e.What)
}

// IsExtraction reports whether err is (or wraps) an ExtractionError.
func IsExtraction(err error) bool {
	var target *ExtractionError
	return errors.As(err, &target)
}
