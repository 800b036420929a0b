package brokerfolio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			fmt.Fprint(w, `{"compra": 1150.5}`)
		case "/busy":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/bad":
			fmt.Fprint(w, `not json`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	var got struct {
		Compra float64 `json:"compra"`
	}
	require.NoError(t, GetJSON(ctx, srv.Client(), srv.URL+"/ok", &got))
	assert.Equal(t, 1150.5, got.Compra)

	err := GetJSON(ctx, srv.Client(), srv.URL+"/missing", &got)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.False(t, IsTemporary(err))

	err = GetJSON(ctx, srv.Client(), srv.URL+"/busy", &got)
	assert.True(t, IsTemporary(err))

	err = GetJSON(ctx, srv.Client(), srv.URL+"/bad", &got)
	require.Error(t, err)
	assert.False(t, IsTemporary(err))
}
