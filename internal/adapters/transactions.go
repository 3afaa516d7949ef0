package adapters

import (
	"context"
	"net/url"
	"strconv"

	"orcamento/internal/core"
)

// TransactionsClient implements ports.TransactionAggregator against
// GET {base}/transactions/summary?month=&year=.
type TransactionsClient struct {
	remote *remote
}

func NewTransactionsClient(opts Options) (*TransactionsClient, error) {
	r, err := newRemote("transactions", opts)
	if err != nil {
		return nil, err
	}
	return &TransactionsClient{remote: r}, nil
}

type monthSummaryResponse struct {
	Categories []struct {
		CategoryID int64      `json:"category_id"`
		Amount     core.Money `json:"amount"`
	} `json:"categories"`
	Income core.Money `json:"income"`
}

func (c *TransactionsClient) MonthActuals(ctx context.Context, owner string, period core.Period) (core.MonthActuals, error) {
	q := url.Values{}
	q.Set("month", strconv.Itoa(period.Month))
	q.Set("year", strconv.Itoa(period.Year))

	var resp monthSummaryResponse
	if err := c.remote.getJSON(ctx, owner, "/transactions/summary", q, "transactions", period.String(), &resp); err != nil {
		return core.MonthActuals{}, err
	}

	out := core.MonthActuals{ByCategory: make(map[int64]core.Money, len(resp.Categories)), Income: resp.Income}
	for _, row := range resp.Categories {
		out.ByCategory[row.CategoryID] = out.ByCategory[row.CategoryID].Add(row.Amount)
	}
	return out, nil
}
