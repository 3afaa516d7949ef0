package adapters

import (
	"context"
	"net/url"

	"github.com/google/uuid"

	"orcamento/internal/core"
)

// GoalsClient implements ports.GoalReader against the goals service.
type GoalsClient struct {
	remote *remote
}

func NewGoalsClient(opts Options) (*GoalsClient, error) {
	r, err := newRemote("goals", opts)
	if err != nil {
		return nil, err
	}
	return &GoalsClient{remote: r}, nil
}

type goalPayload struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Icon          string     `json:"icon"`
	TargetAmount  core.Money `json:"target_amount"`
	CurrentAmount core.Money `json:"current_amount"`
	TargetDate    *core.Date `json:"target_date"`
}

type contributionPayload struct {
	ID     uuid.UUID  `json:"id"`
	GoalID uuid.UUID  `json:"goal_id"`
	Amount core.Money `json:"amount"`
	Date   core.Date  `json:"date"`
}

func (c *GoalsClient) ListGoals(ctx context.Context, owner string) ([]core.Goal, error) {
	var payload []goalPayload
	if err := c.remote.getJSON(ctx, owner, "/goals/", nil, "goals", owner, &payload); err != nil {
		return nil, err
	}
	out := make([]core.Goal, 0, len(payload))
	for _, g := range payload {
		out = append(out, core.Goal{
			ID:            g.ID,
			OwnerID:       owner,
			Name:          g.Name,
			Icon:          g.Icon,
			TargetAmount:  g.TargetAmount,
			CurrentAmount: g.CurrentAmount,
			TargetDate:    g.TargetDate,
		})
	}
	return out, nil
}

// ListContributions asks the service for [from, to]. The range is applied
// again locally.
func (c *GoalsClient) ListContributions(ctx context.Context, owner string, goalID uuid.UUID, from, to core.Date) ([]core.Contribution, error) {
	q := url.Values{}
	q.Set("from", from.String())
	q.Set("to", to.String())

	var payload []contributionPayload
	path := "/goals/" + goalID.String() + "/contributions"
	if err := c.remote.getJSON(ctx, owner, path, q, "goal", goalID.String(), &payload); err != nil {
		return nil, err
	}

	out := make([]core.Contribution, 0, len(payload))
	for _, p := range payload {
		if p.Date.Before(from.Time) || p.Date.After(to.Time) {
			continue
		}
		gid := p.GoalID
		if gid == uuid.Nil {
			gid = goalID
		}
		out = append(out, core.Contribution{ID: p.ID, GoalID: gid, Amount: p.Amount, Date: p.Date})
	}
	return out, nil
}
