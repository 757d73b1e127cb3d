package application

import (
	"fmt"

	"github.com/bnema/opennow-cli/internal/domain"
)

// Intent is a user action handed to the Orchestrator by a frontend.
type Intent interface {
	intent()
}

type LaunchIntent struct {
	Game domain.Game
}

type ResumeIntent struct {
	Session domain.ActiveSessionDescriptor
}

type TerminateAndLaunchIntent struct {
	SessionID string
	Game      domain.Game
}

type DismissConflictIntent struct{}

type SelectServerIntent struct {
	ID string
}

type SetAutoSelectIntent struct {
	Auto bool
}

type StartPingTestIntent struct{}

type StopStreamingIntent struct{}

type TerminateIntent struct{}

func (LaunchIntent) intent()             {}
func (ResumeIntent) intent()             {}
func (TerminateAndLaunchIntent) intent() {}
func (DismissConflictIntent) intent()    {}
func (SelectServerIntent) intent()       {}
func (SetAutoSelectIntent) intent()      {}
func (StartPingTestIntent) intent()      {}
func (StopStreamingIntent) intent()      {}
func (TerminateIntent) intent()          {}

// Handle dispatches an intent to the matching entry point.
func (o *Orchestrator) Handle(in Intent) error {
	switch in := in.(type) {
	case LaunchIntent:
		return o.Launch(in.Game)
	case ResumeIntent:
		return o.Resume(in.Session)
	case TerminateAndLaunchIntent:
		return o.TerminateAndLaunch(in.SessionID, in.Game)
	case DismissConflictIntent:
		o.DismissConflict()
	case SelectServerIntent:
		return o.SelectServer(in.ID)
	case SetAutoSelectIntent:
		o.SetAutoServerSelection(in.Auto)
	case StartPingTestIntent:
		o.StartPingTest()
	case StopStreamingIntent:
		o.StopStreaming()
	case TerminateIntent:
		o.TerminateCurrent()
	default:
		return fmt.Errorf("unsupported intent %T", in)
	}

	return nil
}
