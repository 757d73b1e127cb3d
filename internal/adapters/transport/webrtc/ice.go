package webrtc

import (
	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/pion/webrtc/v4"
)

// iceServersFromRecord converts the session's ICE servers. An empty list
// leaves only host candidates.
func iceServersFromRecord(record domain.SessionRecord) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(record.ICEServers))
	for _, server := range record.ICEServers {
		if len(server.URLs) == 0 {
			continue
		}
		servers = append(servers, webrtc.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}

	return servers
}
