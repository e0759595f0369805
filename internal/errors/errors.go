// Package errors provides the structured error type used across the
// cluster manager, modeled on the error-kind table of the cluster
// manager's error handling design: config errors are fatal to load,
// everything else is local to one request or one discovery cycle.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies a specific error kind for dispatch.
type ErrorCode string

const (
	// ErrCodeConfigError covers unknown cluster type, duplicate cluster
	// name, a missing SDS backing config, or a missing local cluster.
	ErrCodeConfigError ErrorCode = "CONFIG_ERROR"
	// ErrCodeUnknownCluster is returned when a hot-path lookup names a
	// cluster the calling worker does not know about.
	ErrCodeUnknownCluster ErrorCode = "UNKNOWN_CLUSTER"
	// ErrCodeNoHealthyUpstream is returned when a load balancer has no
	// host to offer.
	ErrCodeNoHealthyUpstream ErrorCode = "NO_HEALTHY_UPSTREAM"
	// ErrCodeDNSTransient marks a recoverable DNS resolution failure.
	ErrCodeDNSTransient ErrorCode = "DNS_TRANSIENT"
	// ErrCodeSDSTransient marks a recoverable SDS refresh failure.
	ErrCodeSDSTransient ErrorCode = "SDS_TRANSIENT"
	// ErrCodeHealthCheckFailure marks a failed active health probe. It
	// is never propagated as an error to a caller; it only drives the
	// per-host state machine.
	ErrCodeHealthCheckFailure ErrorCode = "HEALTH_CHECK_FAILURE"
	// ErrCodeInternal covers anything that doesn't fit the table above.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ClusterManagerError is a structured error carrying enough context to
// decide retryability and HTTP disposition without string matching.
type ClusterManagerError struct {
	Code      ErrorCode
	Component string
	Message   string
	Cluster   string
	Timestamp time.Time
	Cause     error
}

// Error implements the error interface.
func (e *ClusterManagerError) Error() string {
	if e.Cluster != "" {
		return fmt.Sprintf("[%s][%s] cluster=%s: %s", e.Code, e.Component, e.Cluster, e.Message)
	}
	return fmt.Sprintf("[%s][%s] %s", e.Code, e.Component, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ClusterManagerError) Unwrap() error { return e.Cause }

// Is matches by error code, so callers can use errors.Is(err, &ClusterManagerError{Code: ...}).
func (e *ClusterManagerError) Is(target error) bool {
	var t *ClusterManagerError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// IsRetryable reports whether retrying the operation might succeed.
func (e *ClusterManagerError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeDNSTransient, ErrCodeSDSTransient:
		return true
	default:
		return false
	}
}

// NewConfigError builds a fatal-to-load configuration error.
func NewConfigError(component, message string) *ClusterManagerError {
	return &ClusterManagerError{Code: ErrCodeConfigError, Component: component, Message: message, Timestamp: time.Now()}
}

// NewUnknownClusterError builds the error returned when a worker doesn't
// recognize a cluster name on the hot path.
func NewUnknownClusterError(cluster string) *ClusterManagerError {
	return &ClusterManagerError{
		Code: ErrCodeUnknownCluster, Component: "worker", Cluster: cluster,
		Message: fmt.Sprintf("unknown cluster %q", cluster), Timestamp: time.Now(),
	}
}

// NewNoHealthyUpstreamError builds the error a load balancer returns when
// it has no host to offer for the named cluster.
func NewNoHealthyUpstreamError(cluster string) *ClusterManagerError {
	return &ClusterManagerError{
		Code: ErrCodeNoHealthyUpstream, Component: "load_balancer", Cluster: cluster,
		Message: "no healthy upstream host available", Timestamp: time.Now(),
	}
}

// WrapDNSTransient wraps a resolver error as a transient DNS failure.
func WrapDNSTransient(cluster string, cause error) *ClusterManagerError {
	return &ClusterManagerError{
		Code: ErrCodeDNSTransient, Component: "dns_resolver", Cluster: cluster,
		Message: "dns resolution failed, keeping previous membership", Cause: cause, Timestamp: time.Now(),
	}
}

// WrapSDSTransient wraps a discovery-service error as a transient SDS failure.
func WrapSDSTransient(cluster string, cause error) *ClusterManagerError {
	return &ClusterManagerError{
		Code: ErrCodeSDSTransient, Component: "sds", Cluster: cluster,
		Message: "sds refresh failed, keeping previous membership", Cause: cause, Timestamp: time.Now(),
	}
}

// IsRetryable reports whether err is a ClusterManagerError marked retryable.
func IsRetryable(err error) bool {
	var cmErr *ClusterManagerError
	if errors.As(err, &cmErr) {
		return cmErr.IsRetryable()
	}
	return false
}

// Code extracts the ErrorCode from err, or ErrCodeInternal if err is not
// a ClusterManagerError.
func Code(err error) ErrorCode {
	var cmErr *ClusterManagerError
	if errors.As(err, &cmErr) {
		return cmErr.Code
	}
	return ErrCodeInternal
}
