package blob

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/lauri000/hashtree/internal/swaperr"
)

func TestAssertEncryptedUpload_RejectsMissingKey(t *testing.T) {
	g := NewPrivacyGuard()
	require.ErrorIs(t, g.AssertEncryptedUpload(false), swaperr.ErrPrivacyViolation)
	require.NoError(t, g.AssertEncryptedUpload(true))
}

func TestShouldServeHashToPeer_DefaultsToFalse(t *testing.T) {
	g := NewPrivacyGuard()
	var h common.Hash
	h[0] = 1
	require.False(t, g.ShouldServeHashToPeer(h))
}

func TestMarkShareable_AllowsServing(t *testing.T) {
	g := NewPrivacyGuard()
	var h common.Hash
	h[0] = 2

	g.MarkShareable(h)
	require.True(t, g.ShouldServeHashToPeer(h))
}

func TestForget_RevokesSharing(t *testing.T) {
	g := NewPrivacyGuard()
	var h common.Hash
	h[0] = 3

	g.MarkShareable(h)
	require.True(t, g.ShouldServeHashToPeer(h))

	g.Forget(h)
	require.False(t, g.ShouldServeHashToPeer(h))
}
