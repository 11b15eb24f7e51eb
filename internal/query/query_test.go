package query

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/web3-frozen/dedust-pool-monitor/internal/pool"
	"github.com/web3-frozen/dedust-pool-monitor/internal/snapshot"
)

const fixture = `[{"timestamp":"2024-01-01 00:00:00","pools":[{"name":"TON/USDT","tvl":"$1,000","volume":"$500","fees":"$1","apr":"5%"}]}]`

func newService(t *testing.T, body string) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool_data.json")
	if body != "" {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return New(snapshot.New(path)), path
}

func TestFindByName(t *testing.T) {
	svc, _ := newService(t, fixture)

	m, err := svc.FindByName("TON/USDT")
	require.NoError(t, err)
	require.Equal(t, Match{
		Timestamp: "2024-01-01 00:00:00",
		Pool:      pool.Record{Name: "TON/USDT", TVL: "$1,000", Volume: "$500", Fees: "$1", APR: "5%"},
	}, m)

	for _, name := range []string{"UNKNOWN", "ton/usdt", "TON/USDT ", ""} {
		_, err := svc.FindByName(name)
		require.ErrorIs(t, err, ErrNotFound, name)
	}
}

func TestListAllVerbatim(t *testing.T) {
	svc, _ := newService(t, fixture)

	b, err := svc.ListAll()
	require.NoError(t, err)
	require.Equal(t, fixture, string(b))
}

func TestReadsFreshEveryCall(t *testing.T) {
	svc, path := newService(t, fixture)

	_, err := svc.FindByName("NOT/TON")
	require.ErrorIs(t, err, ErrNotFound)

	updated := `[{"timestamp":"2024-01-01 00:05:00","pools":[{"name":"NOT/TON","tvl":"$9","volume":"$8","fees":"$7","apr":"6%"}]}]`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	m, err := svc.FindByName("NOT/TON")
	require.NoError(t, err)
	require.Equal(t, "2024-01-01 00:05:00", m.Timestamp)
}

func TestMissingOrMalformedSnapshot(t *testing.T) {
	svc, _ := newService(t, "")
	_, err := svc.FindByName("TON/USDT")
	require.ErrorIs(t, err, snapshot.ErrNoSnapshot)
	_, err = svc.ListAll()
	require.ErrorIs(t, err, snapshot.ErrNoSnapshot)

	svc, _ = newService(t, "[{")
	_, err = svc.FindByName("TON/USDT")
	require.ErrorIs(t, err, snapshot.ErrMalformed)
	_, err = svc.ListAll()
	require.ErrorIs(t, err, snapshot.ErrMalformed)
}
