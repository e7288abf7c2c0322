// Package staleness gates each cycle on the age of its inputs. Acting
// on stale account or market data is worse than not acting at all, so
// critical sources fail the cycle closed.
package staleness

import (
	"fmt"
	"time"

	funnelerrors "github.com/ducminhle1904/risk-funnel-bot/internal/errors"
)

// Source is one timestamped input checked before a cycle runs.
type Source struct {
	Name        string
	AsOf        time.Time
	MaxAge      time.Duration
	Critical    bool
	Remediation string // operator hint included when a critical source blocks
}

// Result reports non-blocking degradations.
type Result struct {
	Warnings []string
}

// Guard validates input freshness per cycle.
type Guard struct {
	now func() time.Time
}

// NewGuard creates a staleness guard.
func NewGuard() *Guard {
	return &Guard{now: time.Now}
}

// NewGuardAt creates a guard with a fixed clock, for tests.
func NewGuardAt(now func() time.Time) *Guard {
	return &Guard{now: now}
}

// Check inspects every source. A stale critical source returns a
// staleness error naming the source, its age, and the remediation; the
// cycle must not proceed. Stale non-critical sources only add warnings.
// A zero AsOf counts as stale.
func (g *Guard) Check(sources []Source) (Result, error) {
	now := g.now()
	var result Result

	for _, src := range sources {
		age := now.Sub(src.AsOf)
		stale := src.AsOf.IsZero() || age > src.MaxAge

		if !stale {
			continue
		}

		if src.Critical {
			msg := fmt.Sprintf("%s is stale (age %s, max %s)", src.Name, formatAge(src.AsOf, age), src.MaxAge)
			if src.Remediation != "" {
				msg += ": " + src.Remediation
			}
			return result, funnelerrors.NewStalenessError("staleness", "Check", msg)
		}

		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s is stale (age %s, max %s), proceeding degraded", src.Name, formatAge(src.AsOf, age), src.MaxAge))
	}

	return result, nil
}

func formatAge(asOf time.Time, age time.Duration) string {
	if asOf.IsZero() {
		return "unknown"
	}
	return age.Truncate(time.Second).String()
}
