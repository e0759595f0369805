package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatsWithClusterWhenSet(t *testing.T) {
	err := NewUnknownClusterError("cluster-a")
	assert.Contains(t, err.Error(), "cluster=cluster-a")
	assert.Contains(t, err.Error(), string(ErrCodeUnknownCluster))
}

func TestErrorFormatsWithoutClusterWhenUnset(t *testing.T) {
	err := NewConfigError("manager", "duplicate cluster name")
	assert.NotContains(t, err.Error(), "cluster=")
	assert.Contains(t, err.Error(), "duplicate cluster name")
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapDNSTransient("cluster-a", cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestErrorsIsMatchesByCodeAlone(t *testing.T) {
	err := NewUnknownClusterError("cluster-a")
	target := &ClusterManagerError{Code: ErrCodeUnknownCluster}
	assert.True(t, errors.Is(err, target))

	other := &ClusterManagerError{Code: ErrCodeConfigError}
	assert.False(t, errors.Is(err, other))
}

func TestIsRetryableTrueForDNSAndSDSTransient(t *testing.T) {
	assert.True(t, WrapDNSTransient("cluster-a", errors.New("x")).IsRetryable())
	assert.True(t, WrapSDSTransient("cluster-a", errors.New("x")).IsRetryable())
}

func TestIsRetryableFalseForOtherCodes(t *testing.T) {
	assert.False(t, NewConfigError("manager", "bad config").IsRetryable())
	assert.False(t, NewUnknownClusterError("cluster-a").IsRetryable())
	assert.False(t, NewNoHealthyUpstreamError("cluster-a").IsRetryable())
}

func TestPackageIsRetryableDelegatesToWrappedError(t *testing.T) {
	assert.True(t, IsRetryable(WrapSDSTransient("cluster-a", errors.New("x"))))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestCodeExtractsCodeOrFallsBackToInternal(t *testing.T) {
	assert.Equal(t, ErrCodeUnknownCluster, Code(NewUnknownClusterError("cluster-a")))
	assert.Equal(t, ErrCodeInternal, Code(errors.New("plain error")))
}

func TestNewNoHealthyUpstreamErrorSetsClusterAndCode(t *testing.T) {
	err := NewNoHealthyUpstreamError("cluster-a")
	assert.Equal(t, ErrCodeNoHealthyUpstream, err.Code)
	assert.Equal(t, "cluster-a", err.Cluster)
	assert.False(t, err.Timestamp.IsZero())
}
