package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArunaStorage/aos-server/internal/model"
)

// TestEventIDOrderingMatchesSerialThenStep is spec property 4's pure
// half: comparing EventID as big-endian bytes agrees with comparing
// (serial, step) lexicographically.
func TestEventIDOrderingMatchesSerialThenStep(t *testing.T) {
	cases := []struct {
		a, b               model.EventID
		wantLess, wantMore bool
	}{
		{model.NewEventID(1, 0), model.NewEventID(2, 0), true, false},
		{model.NewEventID(1, 5), model.NewEventID(1, 6), true, false},
		{model.NewEventID(2, 0), model.NewEventID(1, 999), false, true},
		{model.NewEventID(1, 1), model.NewEventID(1, 1), false, false},
	}
	for _, c := range cases {
		require.Equal(t, c.wantLess, c.a.Less(c.b))
		require.Equal(t, c.wantMore, c.b.Less(c.a))
	}
}

func TestEventIDSerialAndStepRoundTrip(t *testing.T) {
	id := model.NewEventID(42, 7)
	require.EqualValues(t, 42, id.Serial())
	require.EqualValues(t, 7, id.Step())
}
