package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenReadyIsNextAssignee(t *testing.T) {
	r := NewRegistry()
	a := Addr{Host: "localhost", Port: 6001}
	w, _, hasReplay := r.Register(a)
	require.False(t, hasReplay)
	require.Equal(t, Ready, w.State)

	next, ok := r.NextReady()
	require.True(t, ok)
	assert.Equal(t, a, next)
}

func TestLowestSequenceWinsAmongReady(t *testing.T) {
	r := NewRegistry()
	first := Addr{Host: "localhost", Port: 6001}
	second := Addr{Host: "localhost", Port: 6002}
	r.Register(first)
	r.Register(second)

	next, ok := r.NextReady()
	require.True(t, ok)
	assert.Equal(t, first, next)
}

func TestMarkBusyRemovesFromReadyPool(t *testing.T) {
	r := NewRegistry()
	a := Addr{Host: "localhost", Port: 6001}
	r.Register(a)
	r.MarkBusy(a, 3)

	_, ok := r.NextReady()
	assert.False(t, ok)
}

func TestMarkDeadReturnsInFlightTask(t *testing.T) {
	r := NewRegistry()
	a := Addr{Host: "localhost", Port: 6001}
	r.Register(a)
	r.MarkBusy(a, 7)

	taskID, hadTask := r.MarkDead(a)
	require.True(t, hadTask)
	assert.Equal(t, 7, taskID)

	_, stillHadTask := r.MarkDead(a)
	assert.False(t, stillHadTask, "re-killing an already-dead worker must be a no-op")
}

func TestReRegistrationTombstonesPriorRecordAndReassigns(t *testing.T) {
	r := NewRegistry()
	a := Addr{Host: "localhost", Port: 6001}
	first, _, _ := r.Register(a)
	r.MarkBusy(a, 9)

	second, replayTaskID, hasReplay := r.Register(a)
	require.True(t, hasReplay)
	assert.Equal(t, 9, replayTaskID)
	assert.NotEqual(t, first.Seq, second.Seq)
	assert.Greater(t, second.Seq, first.Seq)

	next, ok := r.NextReady()
	require.True(t, ok)
	assert.Equal(t, a, next, "exactly one live registry entry must exist at the address")
}

func TestDeadWorkerNeverReturnsToReadyWithoutReRegistering(t *testing.T) {
	r := NewRegistry()
	a := Addr{Host: "localhost", Port: 6001}
	r.Register(a)
	r.MarkDead(a)

	assert.False(t, r.MarkReady(a))
	_, ok := r.NextReady()
	assert.False(t, ok)
}

func TestHeartbeatFromUnknownAddressIsIgnored(t *testing.T) {
	r := NewRegistry()
	unknown := Addr{Host: "localhost", Port: 9999}
	r.ResetHeartbeat(unknown) // must not panic
	assert.False(t, r.IsAlive(unknown))
}

func TestAgeHeartbeatsMarksThresholdExpired(t *testing.T) {
	r := NewRegistry()
	a := Addr{Host: "localhost", Port: 6001}
	r.Register(a)

	for i := 0; i < 4; i++ {
		expired := r.AgeHeartbeats(5)
		assert.Empty(t, expired)
	}
	expired := r.AgeHeartbeats(5)
	assert.Equal(t, []Addr{a}, expired)
}

func TestResetHeartbeatClearsCounter(t *testing.T) {
	r := NewRegistry()
	a := Addr{Host: "localhost", Port: 6001}
	r.Register(a)

	r.AgeHeartbeats(5)
	r.AgeHeartbeats(5)
	r.ResetHeartbeat(a)

	for i := 0; i < 4; i++ {
		expired := r.AgeHeartbeats(5)
		assert.Empty(t, expired)
	}
}
