package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/resilience"
)

func TestArchiveEventRoundTrip(t *testing.T) {
	payload, err := encodeArchiveUploaded("lover.tar.bz2", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	assert.JSONEq(t, `{"archive_filename":"lover.tar.bz2","uploaded_at":"2024-01-02T03:04:05Z"}`, string(payload))

	name, err := decodeArchiveUploaded(payload)
	require.NoError(t, err)
	assert.Equal(t, "lover.tar.bz2", name)
}

func TestDecodeArchiveUploadedBareName(t *testing.T) {
	name, err := decodeArchiveUploaded([]byte(" forskrifter.zip\n"))
	require.NoError(t, err)
	assert.Equal(t, "forskrifter.zip", name)

	_, err = decodeArchiveUploaded([]byte(`{"archive_filename":""}`))
	assert.Error(t, err)
	_, err = decodeArchiveUploaded(nil)
	assert.Error(t, err)
}

func TestEncodeRejectsEmptyName(t *testing.T) {
	_, err := encodeArchiveUploaded("  ", time.Now())
	assert.Error(t, err)
}

func TestClassifyNATSError(t *testing.T) {
	assert.True(t, classifyNATSError(nats.ErrNoServers).Retryable)
	assert.False(t, classifyNATSError(context.Canceled).RecordFailure)
	assert.False(t, classifyNATSError(errors.New("bad subject")).Retryable)

	wrapped := wrapTemporaryIfNeeded(nats.ErrTimeout)
	assert.True(t, errors.Is(wrapped, domain.ErrTemporary))
	assert.Equal(t, resilience.ErrorClassification{}, classifyNATSError(nil))
}
