package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

func TestValidScoreBoundaries(t *testing.T) {
	require.True(t, validScore(0.0))
	require.True(t, validScore(1.0))
	require.True(t, validScore(0.5))
	require.False(t, validScore(-0.001))
	require.False(t, validScore(1.5))
}

func TestAssociateRejectsOutOfRangeScore(t *testing.T) {
	// Validation happens before any repository call, so nil repos are
	// fine here.
	assoc := NewAssociator(nil, nil)

	_, err := assoc.AssociateSource(context.Background(), "turn-1", "src-1", 1.5)
	require.ErrorIs(t, err, appErr.ErrInvalidScore)

	_, err = assoc.AssociateChunk(context.Background(), "turn-1", "chunk-1", -0.1)
	require.ErrorIs(t, err, appErr.ErrInvalidScore)
}
