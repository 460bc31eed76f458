// AngelaMos | 2026
// scheduler_test.go

package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/musicdesk/internal/config"
)

type fakePurger struct {
	calls int
	err   error
}

func (f *fakePurger) PurgeExpiredSessions(context.Context) (int64, error) {
	f.calls++
	return 3, f.err
}

func TestRegisterRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(slog.Default())

	err := s.Register(config.JobsConfig{TokenCleanup: "every hour"}, &fakePurger{})
	assert.Error(t, err)
}

func TestRegisterHourlyCleanup(t *testing.T) {
	s := NewScheduler(slog.Default())

	require.NoError(t, s.Register(config.JobsConfig{TokenCleanup: "0 0 * * * *"}, &fakePurger{}))
	assert.Len(t, s.cron.Entries(), 1)
}

func TestRunInvokesPurger(t *testing.T) {
	s := NewScheduler(slog.Default())
	purger := &fakePurger{}

	require.NoError(t, s.Register(config.JobsConfig{TokenCleanup: "0 0 * * * *"}, purger))
	s.cron.Entries()[0].Job.Run()

	assert.Equal(t, 1, purger.calls)
}

func TestRunSurvivesFailureAndPanic(t *testing.T) {
	s := NewScheduler(slog.Default())

	assert.NotPanics(t, func() {
		s.run("failing", func(context.Context) error { return errors.New("db down") })
		s.run("panicking", func(context.Context) error { panic("boom") })
	})
}
