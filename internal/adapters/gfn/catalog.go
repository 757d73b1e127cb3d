package gfn

import (
	"context"
	"net/http"
	"strings"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/ports"
)

// Catalog implements ports.Catalog.
type Catalog struct {
	client *Client
}

var _ ports.Catalog = (*Catalog)(nil)

type appBody struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Publisher     string `json:"publisher"`
	ImageURL      string `json:"imageUrl"`
	Store         string `json:"store"`
	AppID         string `json:"appId"`
	InstallToPlay bool   `json:"installToPlay"`
}

type appEnvelope struct {
	App appBody `json:"app"`
}

type appListEnvelope struct {
	Apps []appBody `json:"apps"`
}

type sectionBody struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Apps  []appBody `json:"apps"`
}

type sectionListEnvelope struct {
	Sections []sectionBody `json:"sections"`
}

type subscriptionBody struct {
	Tier           string  `json:"tier"`
	RemainingHours float64 `json:"remainingHours"`
	TotalHours     float64 `json:"totalHours"`
	Unlimited      bool    `json:"unlimited"`
}

type regionListEnvelope struct {
	Regions []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"regions"`
}

type queueListEnvelope struct {
	Servers []struct {
		ID         string  `json:"id"`
		Region     string  `json:"region"`
		QueueDepth int     `json:"queueDepth"`
		ETASeconds float64 `json:"etaSeconds"`
	} `json:"servers"`
}

func (c *Catalog) Games(ctx context.Context, cred domain.Credential) ([]domain.Game, error) {
	var env appListEnvelope
	if err := c.client.do(ctx, request{
		operation: "list games",
		method:    http.MethodGet,
		url:       c.client.catalogBase + "/v1/apps",
		cred:      &cred,
	}, &env); err != nil {
		return nil, err
	}

	return toGames(env.Apps), nil
}

func (c *Catalog) Sections(ctx context.Context, cred domain.Credential) ([]domain.GameSection, error) {
	var env sectionListEnvelope
	if err := c.client.do(ctx, request{
		operation: "list sections",
		method:    http.MethodGet,
		url:       c.client.catalogBase + "/v1/sections",
		cred:      &cred,
	}, &env); err != nil {
		return nil, err
	}

	sections := make([]domain.GameSection, 0, len(env.Sections))
	for _, body := range env.Sections {
		sections = append(sections, domain.GameSection{
			ID:    body.ID,
			Title: body.Title,
			Games: toGames(body.Apps),
		})
	}

	return sections, nil
}

func (c *Catalog) Subscription(ctx context.Context, cred domain.Credential) (domain.Subscription, error) {
	var body subscriptionBody
	if err := c.client.do(ctx, request{
		operation: "subscription",
		method:    http.MethodGet,
		url:       c.client.catalogBase + "/v1/subscription",
		cred:      &cred,
	}, &body); err != nil {
		return domain.Subscription{}, err
	}

	return domain.Subscription{
		Tier:           body.Tier,
		RemainingHours: body.RemainingHours,
		TotalHours:     body.TotalHours,
		Unlimited:      body.Unlimited,
	}, nil
}

// Regions lists the streaming zones available to the account.
func (c *Catalog) Regions(ctx context.Context, cred domain.Credential) ([]domain.Region, error) {
	var env regionListEnvelope
	if err := c.client.do(ctx, request{
		operation: "list regions",
		method:    http.MethodGet,
		url:       c.client.apiBase + "/v2/serverInfo",
		cred:      &cred,
	}, &env); err != nil {
		return nil, err
	}

	regions := make([]domain.Region, 0, len(env.Regions))
	for _, r := range env.Regions {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		regions = append(regions, domain.Region{Name: r.Name, URL: r.URL})
	}

	return regions, nil
}

// QueueServers is public and needs no credential.
func (c *Catalog) QueueServers(ctx context.Context) ([]domain.QueueServer, error) {
	var env queueListEnvelope
	if err := c.client.do(ctx, request{
		operation: "list queue servers",
		method:    http.MethodGet,
		url:       c.client.catalogBase + "/v1/queue",
	}, &env); err != nil {
		return nil, err
	}

	servers := make([]domain.QueueServer, 0, len(env.Servers))
	for _, s := range env.Servers {
		if s.ID == "" {
			continue
		}
		servers = append(servers, domain.QueueServer{
			ID:         s.ID,
			Region:     s.Region,
			QueueDepth: s.QueueDepth,
			QueueETA:   seconds(s.ETASeconds),
			Status:     domain.ServerStatusUnknown,
		})
	}

	return servers, nil
}

func toGames(apps []appBody) []domain.Game {
	games := make([]domain.Game, 0, len(apps))
	for _, app := range apps {
		games = append(games, toGame(app))
	}
	return games
}

func toGame(app appBody) domain.Game {
	return domain.Game{
		ID:            app.ID,
		Title:         app.Title,
		Publisher:     app.Publisher,
		ImageURL:      app.ImageURL,
		Store:         app.Store,
		AppID:         app.AppID,
		InstallToPlay: app.InstallToPlay,
	}
}
