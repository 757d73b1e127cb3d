package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreExposed(t *testing.T) {
	before := testutil.ToFloat64(MailboxOverwritesTotal.WithLabelValues("session"))
	MailboxOverwritesTotal.WithLabelValues("session").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(MailboxOverwritesTotal.WithLabelValues("session")))

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "opennow_mailbox_overwrites_total")
}
