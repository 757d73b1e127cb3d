package domain

import "time"

type Game struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Publisher     string `json:"publisher,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
	Store         string `json:"store"`
	AppID         string `json:"app_id,omitempty"`
	InstallToPlay bool   `json:"install_to_play,omitempty"`
}

// LaunchID is the identifier the session service expects.
func (g Game) LaunchID() string {
	if g.AppID != "" {
		return g.AppID
	}

	return g.ID
}

// AccountLinked is false for install-to-play titles.
func (g Game) AccountLinked() bool {
	return !g.InstallToPlay
}

type GameSection struct {
	ID    string
	Title string
	Games []Game
}

type Subscription struct {
	Tier           string
	RemainingHours float64
	TotalHours     float64
	Unlimited      bool
}

type LoginProvider struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Alliance    bool   `json:"alliance,omitempty"`
}

// Region is a dynamically discovered streaming zone.
type Region struct {
	Name string
	URL  string
}

type QueueServer struct {
	ID         string
	Region     string
	QueueDepth int
	QueueETA   time.Duration
	Latency    time.Duration
	Status     ServerStatus
}
