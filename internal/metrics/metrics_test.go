package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tzspd/internal/core"
)

func TestStatsString(t *testing.T) {
	s := &Stats{}
	s.ObserveReceived("stats-string", core.ProtoUDP)
	s.ObserveReceived("stats-string", core.ProtoUDP)
	s.ObserveReceived("stats-string", core.ProtoTCP)
	s.ObserveReceived("stats-string", core.ProtoSCTP)
	s.ObserveReceived("stats-string", 1) // ICMP
	s.ObserveSent("stats-string", "hep")

	want := "Total received: [5]\r\n" +
		"TCP received: [1]\r\n" +
		"UDP received: [2]\r\n" +
		"SCTP received: [1]\r\n" +
		"Total sent: [1]\r\n"
	assert.Equal(t, want, s.String())

	s.Reset()
	assert.Contains(t, s.String(), "Total received: [0]")
}

func TestObserveUpdatesVectors(t *testing.T) {
	s := &Stats{}
	s.ObserveReceived("vectors", core.ProtoUDP)
	s.ObserveReceived("vectors", 47) // GRE
	s.ObserveSent("vectors", "kafka")

	assert.Equal(t, 1.0, testutil.ToFloat64(ReceivedTotal.WithLabelValues("vectors", "udp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ReceivedTotal.WithLabelValues("vectors", "other")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SentTotal.WithLabelValues("vectors", "kafka")))
}

func TestProtoLabel(t *testing.T) {
	assert.Equal(t, "tcp", ProtoLabel(core.ProtoTCP))
	assert.Equal(t, "udp", ProtoLabel(core.ProtoUDP))
	assert.Equal(t, "sctp", ProtoLabel(core.ProtoSCTP))
	assert.Equal(t, "other", ProtoLabel(0))
}

func TestServerServesMetrics(t *testing.T) {
	DatagramsTotal.WithLabelValues("server").Inc()

	srv := NewServer("127.0.0.1:0", "")
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	resp, err := http.Get("http://" + srv.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tzspd_datagrams_total{profile="server"} 1`)
}

func TestServerStartFailsOnBusyPort(t *testing.T) {
	first := NewServer("127.0.0.1:0", "/metrics")
	require.NoError(t, first.Start(context.Background()))
	t.Cleanup(func() { _ = first.Stop(context.Background()) })

	second := NewServer(first.Addr().String(), "/metrics")
	assert.Error(t, second.Start(context.Background()))
}
