package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"plain", New("boom"), KindNone},
		{"wrapped reconcile error", fmt.Errorf("outer: %w", Wrap(KindProviderIO, "CLM-1", "read", New("eof"))), KindProviderIO},
		{"input defect", InputDefect("blank fact name"), KindInputDefect},
		{"unsupported policy", UnsupportedPolicy("best-per-doc", "latest-run"), KindUnsupportedPolicy},
		{"config error", NewConfigError("llm", "unknown provider", nil), KindConfig},
		{"bare sentinel", fmt.Errorf("write: %w", ErrPersist), KindPersist},
		{"context", context.Canceled, KindNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestReconcileError_IsAndUnwrap(t *testing.T) {
	cause := New("disk full")
	err := Wrap(KindPersist, "CLM-9", "write report", cause)

	assert.True(t, Is(err, ErrPersist))
	assert.False(t, Is(err, ErrProviderIO))
	assert.True(t, Is(err, cause))
	assert.Equal(t, "claim CLM-9: write report: disk full", err.Error())
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("provider", "create sqlite provider", New("dsn required"))
	assert.True(t, Is(err, ErrConfig))
	assert.Equal(t, "configuration error in provider: create sqlite provider: dsn required", err.Error())

	var ce *ConfigError
	assert.True(t, As(fmt.Errorf("wrap: %w", err), &ce))
	assert.Equal(t, "provider", ce.Component)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("report CLM-1: %w", ErrNotFound)))
	assert.False(t, IsNotFound(ErrPersist))
}
