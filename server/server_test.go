package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/etnz/brokerfolio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokerFunc func(ctx context.Context) (brokerfolio.Portfolio, error)

func (f brokerFunc) Portfolio(ctx context.Context) (brokerfolio.Portfolio, error) { return f(ctx) }

func nvda() brokerfolio.Portfolio {
	usd := func(v float64) brokerfolio.Money { return brokerfolio.M(v, brokerfolio.USD) }
	return brokerfolio.Portfolio{
		brokerfolio.NewPortfolioEntry("NVDA", "NVIDIA", usd(160), brokerfolio.Q(6), usd(10), decimal.RequireFromString("6.25")),
	}
}

func get(t *testing.T, s *Server, path string) (*http.Response, string) {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_Portfolio(t *testing.T) {
	s := New(brokerFunc(func(ctx context.Context) (brokerfolio.Portfolio, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok, "the broker runs under a deadline")
		return nvda(), nil
	}), time.Second, nil)

	resp, body := get(t, s, "/portfolio")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `[{"Ticker":"NVDA","Name":"NVIDIA","Price (USD)":160,"Quantity":6,"Price Change (USD)":10,"Price Change (%)":6.25,"Total Value (USD)":960}]`, body)
}

func TestServer_EmptyPortfolio(t *testing.T) {
	s := New(brokerFunc(func(context.Context) (brokerfolio.Portfolio, error) { return nil, nil }), time.Second, nil)
	_, body := get(t, s, "/portfolio")
	assert.JSONEq(t, `[]`, body)
}

func TestServer_PortfolioHTML(t *testing.T) {
	s := New(brokerFunc(func(context.Context) (brokerfolio.Portfolio, error) { return nvda(), nil }), time.Second, nil)
	resp, body := get(t, s, "/portfolio?format=html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, "NVIDIA")
}

func TestServer_BrokerFailure(t *testing.T) {
	s := New(brokerFunc(func(context.Context) (brokerfolio.Portfolio, error) {
		return nil, errors.New("fx down")
	}), time.Second, nil)

	resp, body := get(t, s, "/portfolio")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, "fx down", payload["error"])
}

func TestServer_Health(t *testing.T) {
	s := New(nil, time.Second, nil)
	resp, body := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	resp, _ = get(t, s, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ListenAndServe(t *testing.T) {
	s := New(nil, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
