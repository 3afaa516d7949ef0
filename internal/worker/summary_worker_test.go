package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcamento/internal/amqp"
	"orcamento/internal/budget"
	"orcamento/internal/core"
	"orcamento/internal/log"
)

type fakeSummaries struct {
	requests    []budget.Request
	invalidated []*core.Period
	summary     core.MonthlyBudgetSummary
	err         error
}

func (f *fakeSummaries) Summary(_ context.Context, req budget.Request) (core.MonthlyBudgetSummary, error) {
	f.requests = append(f.requests, req)
	return f.summary, f.err
}

func (f *fakeSummaries) Invalidate(_ string, p *core.Period) int {
	f.invalidated = append(f.invalidated, p)
	return 0
}

type fakeConsumer struct {
	msgs []*amqp.BudgetChangedMessage
	errs []error
}

func (c *fakeConsumer) ConsumeBudgetChanges(ctx context.Context, h amqp.Handler) error {
	for _, m := range c.msgs {
		c.errs = append(c.errs, h(ctx, m))
	}
	<-ctx.Done()
	return ctx.Err()
}

var now = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

func newWorker(s SummaryService, buf *bytes.Buffer) *SummaryWorker {
	return NewSummaryWorker(s, Config{
		RuleEnabled: true,
		Logger:      log.New(log.Config{Level: slog.LevelDebug, Format: "json", Output: buf}),
		Now:         func() time.Time { return now },
	})
}

func TestHandleMonthScopedChange(t *testing.T) {
	buf := &bytes.Buffer{}
	fs := &fakeSummaries{summary: core.MonthlyBudgetSummary{Alerts: []string{"5.00 of income is not yet assigned to any category."}}}
	w := newWorker(fs, buf)

	msg := amqp.NewBudgetChangedMessage(amqp.ChangeCategoryTarget, "u1", 3, 3, 2025, 2)
	require.NoError(t, w.HandleBudgetChanged(context.Background(), msg))

	require.Len(t, fs.requests, 1)
	assert.Equal(t, budget.Request{Owner: "u1", Period: core.Period{Month: 3, Year: 2025}, RuleEnabled: true}, fs.requests[0])
	require.Len(t, fs.invalidated, 1)
	require.NotNil(t, fs.invalidated[0])
	assert.Equal(t, 3, fs.invalidated[0].Month)

	out := buf.String()
	assert.Contains(t, out, "Budget summary recomputed")
	assert.Contains(t, out, "not yet assigned")
	assert.Contains(t, out, `"component":"worker"`)
}

func TestHandleGroupChangeUsesCurrentMonth(t *testing.T) {
	fs := &fakeSummaries{}
	w := newWorker(fs, &bytes.Buffer{})

	msg := amqp.NewBudgetChangedMessage(amqp.ChangeBudgetGroup, "u1", 3, 0, 0, 1)
	require.NoError(t, w.HandleBudgetChanged(context.Background(), msg))

	require.Len(t, fs.requests, 1)
	assert.Equal(t, core.Period{Month: 5, Year: 2025}, fs.requests[0].Period)
	require.Len(t, fs.invalidated, 1)
	assert.Nil(t, fs.invalidated[0])
}

func TestHandleErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		age     time.Duration
		requeue bool
	}{
		{"validation is dropped", &core.ValidationError{Field: "owner"}, 0, false},
		{"not found is dropped", &core.NotFoundError{Resource: "category", ID: "3"}, 0, false},
		{"assembly error is retried", &core.AssemblyError{Stage: budget.StageActuals, Err: errors.New("timeout")}, time.Minute, true},
		{"stale assembly error is dropped", &core.AssemblyError{Stage: budget.StageActuals, Err: errors.New("timeout")}, time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorker(&fakeSummaries{err: tt.err}, &bytes.Buffer{})
			msg := amqp.NewBudgetChangedMessage(amqp.ChangePlannedIncome, "u1", 0, 5, 2025, 1)
			msg.Timestamp = now.Add(-tt.age)

			err := w.HandleBudgetChanged(context.Background(), msg)
			if tt.requeue {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	fs := &fakeSummaries{}
	w := newWorker(fs, &bytes.Buffer{})
	consumer := &fakeConsumer{msgs: []*amqp.BudgetChangedMessage{
		amqp.NewBudgetChangedMessage(amqp.ChangePlannedIncome, "u1", 0, 5, 2025, 1),
		amqp.NewBudgetChangedMessage(amqp.ChangeCategoryTarget, "u2", 9, 4, 2025, 3),
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Run(ctx, consumer))

	assert.Len(t, fs.requests, 2)
	assert.Equal(t, []error{nil, nil}, consumer.errs)
}
