package application

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dialRecorder struct {
	mu        sync.Mutex
	addresses []string
	online    map[string]bool
}

func (d *dialRecorder) dial(_ context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.addresses = append(d.addresses, address)
	d.mu.Unlock()

	if network != "tcp" {
		return nil, errors.New("unexpected network " + network)
	}
	host, _, _ := net.SplitHostPort(address)
	if !d.online[host] {
		return nil, errors.New("connection refused")
	}

	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

func TestProberMarksReachableCandidatesOnline(t *testing.T) {
	rec := &dialRecorder{online: map[string]bool{
		"eu-a.example.net": true,
		"10.0.0.7":         true,
	}}
	prober := NewProber(ProberConfig{Domain: "example.net", Dial: rec.dial}, zerolog.Nop())

	results := prober.Probe(context.Background(), []domain.ServerCandidate{
		{ID: "eu-a"},
		{ID: "eu-b"},
		{ID: "np-x", Address: "10.0.0.7"},
	})

	require.Len(t, results, 3)
	assert.Equal(t, domain.ServerStatusOnline, results[0].Status)
	assert.Equal(t, domain.ServerStatusOffline, results[1].Status)
	assert.Zero(t, results[1].Latency)
	assert.Equal(t, domain.ServerStatusOnline, results[2].Status)
	assert.ElementsMatch(t, []string{"eu-a.example.net:443", "eu-b.example.net:443", "10.0.0.7:443"}, rec.addresses)
}

func TestProberQueueUsesLowercasedID(t *testing.T) {
	rec := &dialRecorder{online: map[string]bool{"np-ams-06.example.net": true}}
	prober := NewProber(ProberConfig{Domain: "example.net", Port: "8443", Dial: rec.dial}, zerolog.Nop())

	results := prober.ProbeQueue(context.Background(), []domain.QueueServer{
		{ID: "NP-AMS-06", QueueDepth: 12},
		{ID: "NP-FRA-02"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, domain.ServerStatusOnline, results[0].Status)
	assert.Equal(t, 12, results[0].QueueDepth)
	assert.Equal(t, domain.ServerStatusOffline, results[1].Status)
	for _, addr := range rec.addresses {
		assert.Equal(t, strings.ToLower(addr), addr)
		assert.True(t, strings.HasSuffix(addr, ":8443"))
	}
}

func TestProberTimesOutUnresponsiveHost(t *testing.T) {
	block := func(ctx context.Context, _, _ string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	prober := NewProber(ProberConfig{Timeout: 20 * time.Millisecond, Dial: block}, zerolog.Nop())

	results := prober.Probe(context.Background(), []domain.ServerCandidate{{ID: "slow"}})

	assert.Equal(t, domain.ServerStatusOffline, results[0].Status)
}
