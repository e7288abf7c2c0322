package staleness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	funnelerrors "github.com/ducminhle1904/risk-funnel-bot/internal/errors"
)

func fixedGuard(now time.Time) *Guard {
	return NewGuardAt(func() time.Time { return now })
}

func TestFreshSourcesPass(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	g := fixedGuard(now)

	result, err := g.Check([]Source{
		{Name: "account", AsOf: now.Add(-time.Hour), MaxAge: 24 * time.Hour, Critical: true},
		{Name: "state", AsOf: now.Add(-48 * time.Hour), MaxAge: 7 * 24 * time.Hour},
	})

	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
}

func TestStaleCriticalSourceBlocksWithRemediation(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	g := fixedGuard(now)

	_, err := g.Check([]Source{
		{
			Name:        "account",
			AsOf:        now.Add(-25 * time.Hour),
			MaxAge:      24 * time.Hour,
			Critical:    true,
			Remediation: "verify broker connectivity and re-fetch the snapshot",
		},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "account is stale")
	assert.Contains(t, err.Error(), "verify broker connectivity")

	var fe *funnelerrors.FunnelError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, funnelerrors.ErrorCategoryStaleness, fe.Category)
}

func TestStaleNonCriticalSourceOnlyWarns(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	g := fixedGuard(now)

	result, err := g.Check([]Source{
		{Name: "saved state", AsOf: now.Add(-8 * 24 * time.Hour), MaxAge: 7 * 24 * time.Hour},
	})

	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "proceeding degraded")
}

func TestZeroTimestampCountsAsStale(t *testing.T) {
	g := fixedGuard(time.Now())

	_, err := g.Check([]Source{
		{Name: "account", MaxAge: 24 * time.Hour, Critical: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
}

func TestCriticalStaleShortCircuitsRemainingSources(t *testing.T) {
	now := time.Now()
	g := fixedGuard(now)

	result, err := g.Check([]Source{
		{Name: "account", AsOf: now.Add(-48 * time.Hour), MaxAge: 24 * time.Hour, Critical: true},
		{Name: "saved state", AsOf: now.Add(-30 * 24 * time.Hour), MaxAge: 7 * 24 * time.Hour},
	})

	require.Error(t, err)
	assert.Empty(t, result.Warnings)
}
