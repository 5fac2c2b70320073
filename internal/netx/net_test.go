package netx

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundIP_Loopback(t *testing.T) {
	ip, err := OutboundIP("127.0.0.1:9")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)
	assert.NotNil(t, net.ParseIP(ip))
}

func TestOutboundIP_BadAddress(t *testing.T) {
	_, err := OutboundIP("not-an-address")
	require.Error(t, err)

	assert.Equal(t, "", OutboundIPOrEmpty("not-an-address"))
}
