package discovery_test

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"

	"meshtalk/internal/discovery"
)

func entry(port int, txt []string, v4 ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry("relay", discovery.ServiceType, discovery.Domain)
	e.Port = port
	e.Text = txt
	for _, a := range v4 {
		e.AddrIPv4 = append(e.AddrIPv4, net.ParseIP(a))
	}
	return e
}

func TestEntryURLPrefersTXT(t *testing.T) {
	e := entry(9000, []string{"version=1", "url=https://relay.example/"}, "10.0.0.2")
	assert.Equal(t, "https://relay.example", discovery.EntryURL(e))
}

func TestEntryURLFromAddress(t *testing.T) {
	assert.Equal(t, "http://10.0.0.2:9000", discovery.EntryURL(entry(9000, nil, "10.0.0.2")))

	e := entry(9000, nil)
	e.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	assert.Equal(t, "http://[fe80::1]:9000", discovery.EntryURL(e))
}

func TestEntryURLEmpty(t *testing.T) {
	assert.Empty(t, discovery.EntryURL(nil))
	assert.Empty(t, discovery.EntryURL(entry(9000, nil)))
}
