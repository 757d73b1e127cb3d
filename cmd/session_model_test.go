package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/bnema/opennow-cli/internal/application"
	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/mailbox"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	snap      application.Snapshot
	handleErr error
	intents   []application.Intent
	inputs    []domain.InputEvent
	ticks     int
}

func (d *fakeDriver) Tick(time.Time) {
	d.ticks++
}

func (d *fakeDriver) Snapshot() application.Snapshot {
	return d.snap
}

func (d *fakeDriver) Handle(in application.Intent) error {
	d.intents = append(d.intents, in)
	return d.handleErr
}

func (d *fakeDriver) SendInput(event domain.InputEvent) bool {
	d.inputs = append(d.inputs, event)
	return true
}

var (
	testGame     = domain.Game{ID: "app-1", Title: "Test Game"}
	testConflict = domain.ActiveSessionDescriptor{ID: "sess-9", AppID: "app-2", ServerIP: "10.0.0.9"}
	testNow      = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
)

func stepModel(t *testing.T, m sessionModel) (sessionModel, tea.Cmd) {
	t.Helper()

	next, cmd := m.Update(frameMsg(testNow))
	result, ok := next.(sessionModel)
	require.True(t, ok)
	return result, cmd
}

func TestSessionModelStartsWithIntentOnFirstFrame(t *testing.T) {
	driver := &fakeDriver{snap: application.Snapshot{LoggedIn: true, Requesting: true}}
	m := newSessionModel(driver, application.LaunchIntent{Game: testGame}, conflictAbort, func() time.Time { return testNow })

	m, cmd := stepModel(t, m)
	require.NotNil(t, cmd)
	assert.False(t, m.done)
	assert.Equal(t, []application.Intent{application.LaunchIntent{Game: testGame}}, driver.intents)
	assert.Equal(t, 1, driver.ticks)

	m, _ = stepModel(t, m)
	assert.Len(t, driver.intents, 1)
	assert.Equal(t, 2, driver.ticks)
	assert.False(t, m.done)
}

func TestSessionModelStopsWhenStartIsRejected(t *testing.T) {
	driver := &fakeDriver{handleErr: domain.ErrNotLoggedIn}
	m := newSessionModel(driver, application.LaunchIntent{Game: testGame}, conflictAbort, time.Now)

	m, _ = stepModel(t, m)
	assert.True(t, m.done)
	assert.ErrorIs(t, m.err, domain.ErrNotLoggedIn)
	assert.Zero(t, driver.ticks)
}

func TestSessionModelResolvesConflicts(t *testing.T) {
	tests := []struct {
		name       string
		policy     conflictPolicy
		wantIntent application.Intent
		wantErr    error
	}{
		{
			name:       "abort dismisses and fails",
			policy:     conflictAbort,
			wantIntent: application.DismissConflictIntent{},
			wantErr:    ErrSessionConflict,
		},
		{
			name:       "resume claims the running session",
			policy:     conflictResume,
			wantIntent: application.ResumeIntent{Session: testConflict},
		},
		{
			name:       "replace terminates then launches",
			policy:     conflictReplace,
			wantIntent: application.TerminateAndLaunchIntent{SessionID: "sess-9", Game: testGame},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := testGame
			driver := &fakeDriver{snap: application.Snapshot{
				LoggedIn:    true,
				PendingGame: &game,
				Conflicts:   []domain.ActiveSessionDescriptor{testConflict},
			}}
			m := newSessionModel(driver, application.LaunchIntent{Game: testGame}, tt.policy, time.Now)

			m, _ = stepModel(t, m)
			require.Len(t, driver.intents, 2)
			assert.Equal(t, tt.wantIntent, driver.intents[1])
			if tt.wantErr != nil {
				assert.True(t, m.done)
				assert.ErrorIs(t, m.err, tt.wantErr)
				return
			}
			assert.False(t, m.done)
			assert.NoError(t, m.err)
		})
	}
}

func TestSessionModelFinishes(t *testing.T) {
	tests := []struct {
		name    string
		snap    application.Snapshot
		wantErr string
	}{
		{
			name:    "session error",
			snap:    application.Snapshot{LoggedIn: true, LastError: "Failed to create session: boom"},
			wantErr: "Failed to create session: boom",
		},
		{
			name: "stream ended",
			snap: application.Snapshot{LoggedIn: true, LastEnd: &mailbox.StreamEnd{Outcome: domain.NormalEnd(), Attempts: 1}},
		},
		{
			name: "nothing left to do",
			snap: application.Snapshot{LoggedIn: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &fakeDriver{snap: tt.snap}
			m := newSessionModel(driver, application.ResumeIntent{Session: testConflict}, conflictAbort, time.Now)

			m, _ = stepModel(t, m)
			assert.True(t, m.done)
			if tt.wantErr != "" {
				require.Error(t, m.err)
				assert.Equal(t, tt.wantErr, m.err.Error())
				return
			}
			assert.NoError(t, m.err)
		})
	}
}

func TestSessionModelKeepsRunningWhileStreaming(t *testing.T) {
	record := domain.SessionRecord{ID: "sess-1", Phase: domain.Phase(domain.PhaseStreaming)}
	driver := &fakeDriver{snap: application.Snapshot{LoggedIn: true, Session: &record}}
	m := newSessionModel(driver, application.LaunchIntent{Game: testGame}, conflictAbort, time.Now)

	m, cmd := stepModel(t, m)
	assert.False(t, m.done)
	assert.NotNil(t, cmd)
}

func TestSessionModelForwardsKeys(t *testing.T) {
	driver := &fakeDriver{}
	m := newSessionModel(driver, application.LaunchIntent{Game: testGame}, conflictAbort, time.Now)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	assert.Nil(t, cmd)
	assert.False(t, next.(sessionModel).done)
	assert.Equal(t, []domain.InputEvent{
		{Kind: domain.InputKey, Code: 'w', Pressed: true},
		{Kind: domain.InputKey, Code: 'w'},
	}, driver.inputs)
}

func TestSessionModelEscStopsStreaming(t *testing.T) {
	driver := &fakeDriver{handleErr: errors.New("ignored")}
	m := newSessionModel(driver, application.LaunchIntent{Game: testGame}, conflictAbort, time.Now)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	result := next.(sessionModel)
	assert.True(t, result.done)
	assert.NoError(t, result.err)
	assert.Equal(t, []application.Intent{application.StopStreamingIntent{}}, driver.intents)
}

func TestPickSession(t *testing.T) {
	active := []domain.ActiveSessionDescriptor{{ID: "a"}, {ID: "b"}}

	got, err := pickSession(active, "")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	got, err = pickSession(active, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	_, err = pickSession(active, "c")
	assert.ErrorIs(t, err, domain.ErrNoSession)

	_, err = pickSession(nil, "")
	assert.ErrorIs(t, err, domain.ErrNoSession)
}
