package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "otithi/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLimitOffset(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int64
		wantErr    bool
	}{
		{"defaults", "", 10, 0, false},
		{"explicit", "?limit=25&offset=50", 25, 50, false},
		{"capped", "?limit=5000", 100, 0, false},
		{"negative offset", "?offset=-4", 10, 0, false},
		{"bad limit", "?limit=abc", 0, 0, true},
		{"bad offset", "?offset=x", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/listings"+tt.query, nil)
			limit, offset, err := ExtractLimitOffset(r)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Title string `json:"title"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"Cox's Bazar villa"}`))
	require.NoError(t, DecodeJSON(r, &body))
	assert.Equal(t, "Cox's Bazar villa", body.Title)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x","extra":1}`))
	assert.True(t, apperrors.HasCode(DecodeJSON(r, &body), apperrors.CodeInvalidInput))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	err := DecodeJSON(r, &body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-12-24")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("24/12/2026")
	assert.Error(t, err)

	opt, err := ParseOptionalDate("")
	require.NoError(t, err)
	assert.Nil(t, opt)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteError(w, apperrors.Conflict("dates already booked")))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"code":"CONFLICT","message":"dates already booked"}`, w.Body.String())
}

func TestWriteError_HidesUnknownCause(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteError(w, assert.AnError))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestWritePaginated(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WritePaginated(w, []string{"a"}, 7, 10, 20))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":["a"],"total_count":7,"limit":10,"offset":20}`, w.Body.String())
}
