package gfn

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/ports"
)

// SessionService implements ports.SessionService over the session API.
type SessionService struct {
	client *Client
}

var _ ports.SessionService = (*SessionService)(nil)

var ErrEmptySessionID = errors.New("session id is required")

type streamSettingsBody struct {
	Resolution     string `json:"resolution"`
	FPS            int    `json:"fps"`
	Codec          string `json:"codec"`
	MaxBitrateMbps int    `json:"maxBitrateMbps"`
}

type createSessionBody struct {
	AppID          string             `json:"appId"`
	Title          string             `json:"title,omitempty"`
	Zone           string             `json:"zone,omitempty"`
	AccountLinked  bool               `json:"accountLinked"`
	StreamSettings streamSettingsBody `json:"streamSettings"`
}

type claimSessionBody struct {
	Action         string             `json:"action"`
	ServerIP       string             `json:"serverIp"`
	AppID          string             `json:"appId,omitempty"`
	StreamSettings streamSettingsBody `json:"streamSettings"`
}

type iceServerBody struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type sessionBody struct {
	SessionID           string          `json:"sessionId"`
	Zone                string          `json:"zone"`
	Status              string          `json:"status"`
	QueuePosition       int             `json:"queuePosition"`
	ETASeconds          float64         `json:"etaSeconds"`
	AdsRemainingSeconds float64         `json:"adsRemainingSeconds"`
	AdsTotalSeconds     float64         `json:"adsTotalSeconds"`
	GPUType             string          `json:"gpuType"`
	ServerIP            string          `json:"serverIp"`
	AppID               string          `json:"appId"`
	SignalingURL        string          `json:"signalingUrl"`
	ICEServers          []iceServerBody `json:"iceServers"`
	ErrorMessage        string          `json:"errorMessage"`
}

type sessionEnvelope struct {
	Session sessionBody `json:"session"`
}

type sessionListEnvelope struct {
	Sessions []sessionBody `json:"sessions"`
}

func settingsBody(settings domain.StreamSettings) streamSettingsBody {
	return streamSettingsBody{
		Resolution:     settings.Resolution,
		FPS:            settings.FPS,
		Codec:          settings.Codec,
		MaxBitrateMbps: settings.MaxBitrateMbps,
	}
}

func (s *SessionService) sessionURL(id string) string {
	return s.client.apiBase + "/v2/session/" + url.PathEscape(id)
}

func (s *SessionService) Create(ctx context.Context, cred domain.Credential, req ports.CreateSessionRequest) (domain.SessionRecord, error) {
	if strings.TrimSpace(req.AppID) == "" {
		return domain.SessionRecord{}, errors.New("app id is required")
	}

	var env sessionEnvelope
	err := s.client.do(ctx, request{
		operation: "create session",
		method:    http.MethodPost,
		url:       s.client.apiBase + "/v2/session",
		cred:      &cred,
		body: createSessionBody{
			AppID:          req.AppID,
			Title:          req.Title,
			Zone:           req.Zone,
			AccountLinked:  req.AccountLinked,
			StreamSettings: settingsBody(req.Settings),
		},
	}, &env)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	record := toRecord(env.Session)
	if record.Zone == "" {
		record.Zone = req.Zone
	}
	if record.AppID == "" {
		record.AppID = req.AppID
	}

	return record, nil
}

func (s *SessionService) Claim(ctx context.Context, cred domain.Credential, req ports.ClaimSessionRequest) (domain.SessionRecord, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return domain.SessionRecord{}, ErrEmptySessionID
	}
	if strings.TrimSpace(req.ServerIP) == "" {
		return domain.SessionRecord{}, domain.ErrMissingServerAddress
	}

	var env sessionEnvelope
	err := s.client.do(ctx, request{
		operation: "claim session",
		method:    http.MethodPut,
		url:       s.sessionURL(req.SessionID),
		cred:      &cred,
		body: claimSessionBody{
			Action:         "resume",
			ServerIP:       req.ServerIP,
			AppID:          req.AppID,
			StreamSettings: settingsBody(req.Settings),
		},
	}, &env)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	record := toRecord(env.Session)
	if record.ID == "" {
		record.ID = req.SessionID
	}
	if record.ServerIP == "" {
		record.ServerIP = req.ServerIP
	}

	return record, nil
}

func (s *SessionService) Poll(ctx context.Context, cred domain.Credential, sessionID, zone, serverIP string) (domain.SessionRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.SessionRecord{}, ErrEmptySessionID
	}

	var env sessionEnvelope
	err := s.client.do(ctx, request{
		operation: "poll session",
		method:    http.MethodGet,
		url:       s.sessionURL(sessionID),
		query:     locationQuery(zone, serverIP),
		cred:      &cred,
	}, &env)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	record := toRecord(env.Session)
	if record.ID == "" {
		record.ID = sessionID
	}
	if record.Zone == "" {
		record.Zone = zone
	}
	if record.ServerIP == "" {
		record.ServerIP = serverIP
	}

	return record, nil
}

func (s *SessionService) Stop(ctx context.Context, cred domain.Credential, sessionID, zone, serverIP string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrEmptySessionID
	}

	err := s.client.do(ctx, request{
		operation: "stop session",
		method:    http.MethodDelete,
		url:       s.sessionURL(sessionID),
		query:     locationQuery(zone, serverIP),
		cred:      &cred,
	}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}

	return err
}

func (s *SessionService) ListActive(ctx context.Context, cred domain.Credential) ([]domain.ActiveSessionDescriptor, error) {
	var env sessionListEnvelope
	err := s.client.do(ctx, request{
		operation: "list sessions",
		method:    http.MethodGet,
		url:       s.client.apiBase + "/v2/session",
		cred:      &cred,
	}, &env)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ActiveSessionDescriptor, 0, len(env.Sessions))
	for _, body := range env.Sessions {
		if body.SessionID == "" {
			continue
		}
		out = append(out, domain.ActiveSessionDescriptor{
			ID:           body.SessionID,
			AppID:        body.AppID,
			Status:       body.Status,
			ServerIP:     body.ServerIP,
			SignalingURL: body.SignalingURL,
		})
	}

	return out, nil
}

func (s *SessionService) AppDetails(ctx context.Context, cred domain.Credential, appID string) (domain.Game, error) {
	if strings.TrimSpace(appID) == "" {
		return domain.Game{}, errors.New("app id is required")
	}

	var env appEnvelope
	err := s.client.do(ctx, request{
		operation: "app details",
		method:    http.MethodGet,
		url:       s.client.catalogBase + "/v1/apps/" + url.PathEscape(appID),
		cred:      &cred,
	}, &env)
	if err != nil {
		return domain.Game{}, err
	}

	return toGame(env.App), nil
}

func locationQuery(zone, serverIP string) url.Values {
	q := url.Values{}
	if zone != "" {
		q.Set("zone", zone)
	}
	if serverIP != "" {
		q.Set("serverIp", serverIP)
	}
	return q
}

func toRecord(body sessionBody) domain.SessionRecord {
	record := domain.SessionRecord{
		ID:           body.SessionID,
		Zone:         body.Zone,
		ServerIP:     body.ServerIP,
		GPUType:      body.GPUType,
		AppID:        body.AppID,
		SignalingURL: body.SignalingURL,
		Phase:        toPhase(body),
	}
	for _, ice := range body.ICEServers {
		record.ICEServers = append(record.ICEServers, domain.ICEServer{
			URLs:       ice.URLs,
			Username:   ice.Username,
			Credential: ice.Credential,
		})
	}

	return record
}

// toPhase maps the wire status. Unknown statuses are treated as still
// launching so polling continues. A server-side STREAMING session still needs
// this client to attach, so it maps to Ready.
func toPhase(body sessionBody) domain.SessionPhase {
	switch strings.ToUpper(strings.TrimSpace(body.Status)) {
	case "REQUESTING":
		return domain.Phase(domain.PhaseRequesting)
	case "CONNECTING":
		return domain.Phase(domain.PhaseConnecting)
	case "CLEANING_UP":
		return domain.Phase(domain.PhaseCleaningUp)
	case "WAITING_FOR_STORAGE":
		return domain.Phase(domain.PhaseWaitingForStorage)
	case "IN_QUEUE":
		return domain.InQueue(body.QueuePosition, seconds(body.ETASeconds))
	case "WATCHING_ADS":
		return domain.WatchingAds(seconds(body.AdsRemainingSeconds), seconds(body.AdsTotalSeconds))
	case "READY", "STREAMING":
		return domain.Phase(domain.PhaseReady)
	case "ERROR":
		message := body.ErrorMessage
		if message == "" {
			message = "session failed"
		}
		return domain.Failed(message)
	default:
		return domain.Phase(domain.PhaseLaunching)
	}
}
