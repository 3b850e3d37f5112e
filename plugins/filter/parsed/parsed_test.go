package parsed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/pkg/plugin"
)

func udpMessage(payload int) *core.Message {
	data := make([]byte, 20+8+payload)
	return &core.Message{
		Data:     data,
		Len:      len(data),
		LinkLen:  14,
		HdrLen:   14 + 20 + 8,
		IPFamily: core.FamilyIPv4,
		IPProto:  core.ProtoUDP,
		Parsed:   true,
	}
}

func TestFilter_Init(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{name: "nil config", config: nil},
		{name: "protocols list", config: map[string]any{"protocols": []any{"udp", "TCP"}}},
		{name: "protocols string", config: map[string]any{"protocols": "udp,tcp"}},
		{name: "sctp is never parsed", config: map[string]any{"protocols": []any{"sctp"}}, wantErr: true},
		{name: "sctp in a list", config: map[string]any{"protocols": "udp,sctp"}, wantErr: true},
		{name: "unknown protocol", config: map[string]any{"protocols": []any{"icmp"}}, wantErr: true},
		{name: "negative payload", config: map[string]any{"min_payload": -1}, wantErr: true},
		{name: "unknown option", config: map[string]any{"protocol": "udp"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewFilter().Init(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilter_Handle(t *testing.T) {
	ctx := context.Background()

	f := NewFilter()
	require.NoError(t, f.Init(nil))

	res, err := f.Handle(ctx, udpMessage(10))
	require.NoError(t, err)
	assert.Equal(t, plugin.Continue, res)

	unparsed := udpMessage(10)
	unparsed.Parsed = false
	res, err = f.Handle(ctx, unparsed)
	require.NoError(t, err)
	assert.Equal(t, plugin.Drop, res)
}

func TestFilter_HandleProtocolsAndPayload(t *testing.T) {
	ctx := context.Background()

	f := NewFilter()
	require.NoError(t, f.Init(map[string]any{"protocols": []any{"tcp"}, "min_payload": 4}))

	res, _ := f.Handle(ctx, udpMessage(10))
	assert.Equal(t, plugin.Drop, res, "udp not allowed")

	tcp := udpMessage(2)
	tcp.IPProto = core.ProtoTCP
	res, _ = f.Handle(ctx, tcp)
	assert.Equal(t, plugin.Drop, res, "payload below minimum")

	tcp = udpMessage(4)
	tcp.IPProto = core.ProtoTCP
	res, _ = f.Handle(ctx, tcp)
	assert.Equal(t, plugin.Continue, res)
}
