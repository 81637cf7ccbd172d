package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dkeye/duet/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestTaxonomyUnwraps(t *testing.T) {
	cause := errors.New("boom")

	var reg *RegistrationError
	err := fmt.Errorf("init: %w", &RegistrationError{Peer: "a", Err: ErrIDTaken})
	assert.True(t, errors.As(err, &reg))
	assert.ErrorIs(t, err, ErrIDTaken)

	var dial *DialError
	err = &DialError{Remote: "peer-42", Kind: domain.KindMedia, Err: ErrPeerUnavailable}
	assert.True(t, errors.As(err, &dial))
	assert.Equal(t, domain.PeerID("peer-42"), dial.Remote)
	assert.ErrorIs(t, err, ErrPeerUnavailable)
	assert.Contains(t, err.Error(), "peer-42")

	assert.ErrorIs(t, &CaptureError{Err: cause}, cause)
	assert.ErrorIs(t, &TransportError{Kind: domain.KindData, Err: cause}, cause)
}
