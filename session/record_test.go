package session

import (
	"testing"

	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/ratchetstate"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T, used, closed int64) *ratchetstate.State {
	t.Helper()
	kp, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	s := ratchetstate.New()
	s.EphemeralKeyPair = *kp
	s.IndexInfo.BaseKey = kp.Public
	s.IndexInfo.Used = used
	s.IndexInfo.Closed = closed
	s.IndexInfo.BaseKeyType = ratchetstate.THEIRS
	return s
}

func TestRecordAtMostOneOpenSession(t *testing.T) {
	r := NewRecord()
	s1 := newTestState(t, 1, -1)
	r.PutSession(s1)
	require.Equal(t, s1, r.OpenSession())

	r.CloseCurrentSession()
	s2 := newTestState(t, 2, -1)
	r.PutSession(s2)

	require.NotEqual(t, int64(-1), s1.IndexInfo.Closed)
	require.Equal(t, s2, r.OpenSession())
}

func TestGetSessionsSortedByUsedDescending(t *testing.T) {
	r := NewRecord()
	s1 := newTestState(t, 10, 5)
	s2 := newTestState(t, 30, 5)
	s3 := newTestState(t, 20, 5)
	r.PutSession(s1)
	r.PutSession(s2)
	r.PutSession(s3)

	got := r.GetSessions()
	require.Len(t, got, 3)
	require.Equal(t, s2, got[0])
	require.Equal(t, s3, got[1])
	require.Equal(t, s1, got[2])
}

func TestGetSessionExcludesOurs(t *testing.T) {
	r := NewRecord()
	s := newTestState(t, 1, -1)
	s.IndexInfo.BaseKeyType = ratchetstate.OURS
	r.PutSession(s)

	require.Nil(t, r.GetSession(s.IndexInfo.BaseKey))
}

func TestRemoveOldSessionsEvictsOldestClosedBeyondLimit(t *testing.T) {
	r := NewRecord()
	for i := 0; i < 42; i++ {
		s := newTestState(t, int64(i), int64(i))
		r.PutSession(s)
	}
	r.RemoveOldSessions()
	require.Equal(t, MaxRetiredSessions, r.TotalSessions())
}

func TestSerializeDeserializeFixpoint(t *testing.T) {
	r := NewRecord()
	s1 := newTestState(t, 5, -1)
	preKeyID := uint32(7)
	s1.PendingPreKey = &ratchetstate.PendingPreKey{
		BaseKey:     s1.IndexInfo.BaseKey,
		SignedKeyID: 1,
		PreKeyID:    &preKeyID,
	}
	remote, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, ratchetstate.DHRatchet(s1, remote.Public, true))
	r.PutSession(s1)

	data, err := r.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)

	data2, err := restored.Serialize()
	require.NoError(t, err)
	require.JSONEq(t, string(data), string(data2))
}
