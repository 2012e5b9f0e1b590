package apierror_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/model"
)

func TestNewErrorMessageIncludesKindAndMsg(t *testing.T) {
	err := apierror.New(apierror.KindForbidden, "missing write permission")
	require.Equal(t, "Forbidden: missing write permission", err.Error())
}

func TestNewErrorWithoutMsgFallsBackToKindString(t *testing.T) {
	err := apierror.New(apierror.KindConflict, "")
	require.Equal(t, "Conflict", err.Error())
}

func TestIsMatchesByKindNotMessage(t *testing.T) {
	err := apierror.New(apierror.KindForbidden, "a specific resource")
	require.True(t, errors.Is(err, apierror.Forbidden))
	require.False(t, errors.Is(err, apierror.Conflict))
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("underlying mdbx failure")
	err := apierror.Wrap(apierror.KindDatabaseError, cause, "committing transaction")
	require.True(t, errors.Is(err, cause))
}

func TestNotFoundCarriesStringifiedID(t *testing.T) {
	var id model.ID
	id[0] = 0x42
	err := apierror.NotFound(id)
	require.Equal(t, apierror.KindNotFound, err.Kind)
	require.Contains(t, err.Error(), id.String())
}
