package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndKindOf(t *testing.T) {
	err := New(InvalidCredentials, "ssid is required")
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, InvalidCredentials, kind)
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(WifiAssocFailed, "failed to activate wifi connection", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "wifi_assoc_failed")
}

func TestTimedoutCarriesStage(t *testing.T) {
	err := Timedout(StageAssoc, "association did not reach COMPLETED in time")
	assert.Contains(t, err.Error(), "assoc")
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, Timeout, kind)
}

func TestKindOf_WrappedThroughFmtErrorf(t *testing.T) {
	inner := New(PersistenceError, "rename failed")
	outer := fmt.Errorf("pairing: save: %w", inner)
	kind, ok := KindOf(outer)
	assert.True(t, ok)
	assert.Equal(t, PersistenceError, kind)
}

func TestKindOf_PlainErrorIsNotFound(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}
