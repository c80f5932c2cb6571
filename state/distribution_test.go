package state

import (
	"crypto/rand"
	"net/netip"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleUnbundle(t *testing.T) {
	root := GenerateKey()
	cfg := NetworkCfg{
		Nodes: []PeerCfg{
			{Id: "node1", Endpoint: netip.MustParseAddrPort("10.0.0.1:4000")},
			{Id: "node2", Endpoint: netip.MustParseAddrPort("10.0.0.2:4000")},
		},
		Graph: []string{
			"node1, node2",
			"a = node1",
			"b = a",
			"a, b",
		},
		Metric: "l2",
	}
	txt, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	bundle, err := BundleConfig(string(txt), root)
	require.NoError(t, err)

	finalCfg, err := UnbundleConfig(bundle, root.Pubkey())
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(cfg.Nodes, finalCfg.Nodes, cmpopts.EquateComparable(netip.AddrPort{})))
	assert.Equal(t, cfg.Graph, finalCfg.Graph)
	// bundling stamps the config
	assert.NotZero(t, finalCfg.Timestamp)
}

func TestBundleRejectsInvalidConfig(t *testing.T) {
	root := GenerateKey()
	cfg := NetworkCfg{
		Nodes: []PeerCfg{{Id: "Not A Name"}},
	}
	txt, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	_, err = BundleConfig(string(txt), root)
	assert.Error(t, err)
}

func TestUnbundleWrongKey(t *testing.T) {
	root := GenerateKey()
	other := GenerateKey()
	cfg := NetworkCfg{
		Nodes: []PeerCfg{{Id: "node1", Endpoint: netip.MustParseAddrPort("10.0.0.1:4000")}},
	}
	txt, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	bundle, err := BundleConfig(string(txt), root)
	require.NoError(t, err)

	_, err = UnbundleConfig(bundle, other.Pubkey())
	assert.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	key := GenerateKey()
	payload := []byte("config payload")

	signed, err := SignBundle(payload, key)
	require.NoError(t, err)
	out, err := VerifyBundle(signed, key.Pubkey())
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	// any bit flip must break verification
	signed[0] ^= 0xff
	_, err = VerifyBundle(signed, key.Pubkey())
	assert.Error(t, err)
}

func TestSealOpen(t *testing.T) {
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	payload := []byte("sealed payload")

	sealed, err := SealBundle(payload, key)
	require.NoError(t, err)
	out, err := OpenBundle(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	wrong := make([]byte, KeySize)
	_, err = OpenBundle(sealed, wrong)
	assert.Error(t, err)
}
