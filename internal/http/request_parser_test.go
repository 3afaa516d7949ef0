package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcamento/internal/core"
)

func TestParsePeriodQuery(t *testing.T) {
	now := time.Date(2025, 7, 31, 23, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	tests := []struct {
		name      string
		query     string
		want      core.Period
		wantField string
	}{
		{"defaults to current UTC month", "", core.Period{Month: 8, Year: 2025}, ""},
		{"explicit values", "month=2&year=2024", core.Period{Month: 2, Year: 2024}, ""},
		{"only month", "month=12", core.Period{Month: 12, Year: 2025}, ""},
		{"whitespace trimmed", "month=%203%20", core.Period{Month: 3, Year: 2025}, ""},
		{"month too high", "month=13", core.Period{}, "month"},
		{"month zero", "month=0", core.Period{}, "month"},
		{"month not numeric", "month=jan", core.Period{}, "month"},
		{"year not numeric", "year=20x5", core.Period{}, "year"},
		{"year out of range", "year=1900", core.Period{}, "year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, err := ParsePeriodQuery(q, now)
			if tt.wantField != "" {
				var ve *core.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.wantField, ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBoolParam(t *testing.T) {
	tests := []struct {
		value   string
		want    bool
		wantErr bool
	}{
		{"", false, false},
		{"true", true, false},
		{"1", true, false},
		{"TRUE", true, false},
		{"yes", true, false},
		{"on", true, false},
		{"false", false, false},
		{"0", false, false},
		{"off", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseBoolParam(url.Values{"flag": {tt.value}}, "flag", false)
			if tt.wantErr {
				assert.True(t, core.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Month int `json:"month"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"month":4}`, ""},
		{"empty", ``, "request body is empty"},
		{"malformed", `{"month":`, "malformed JSON body"},
		{"wrong type", `{"month":"april"}`, "malformed JSON body"},
		{"trailing object", `{"month":4}{"month":5}`, "single JSON object"},
		{"too large", `{"month":4,"pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`, "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), req, &p)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, 4, p.Month)
				return
			}
			var br *badRequest
			require.ErrorAs(t, err, &br)
			assert.Contains(t, br.msg, tt.wantErr)
		})
	}
}

func TestParseCategoryID(t *testing.T) {
	id, err := ParseCategoryID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "4.5", "abc"} {
		_, err := ParseCategoryID(raw)
		assert.True(t, core.IsValidation(err), raw)
	}
}

func TestAmountField(t *testing.T) {
	m, err := amountField([]byte(`"12,50"`), "planned_income")
	require.NoError(t, err)
	assert.Equal(t, core.Cents(1250), m)

	_, err = amountField([]byte(`true`), "planned_income")
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "planned_income", ve.Field)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}
