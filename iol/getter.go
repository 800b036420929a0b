package iol

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/etnz/brokerfolio"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Account segments of the portfolio endpoint.
const (
	Argentina     = "argentina"
	UnitedStates  = "estados_Unidos"
	portfolioPath = "/api/v2/portafolio/"
)

// DefaultSegments are all the segments of an account.
var DefaultSegments = []string{Argentina, UnitedStates}

// Client reads an account through the API.
type Client struct {
	session *Session
	base    string
	logger  *zap.Logger
}

// NewClient returns a Client on the API at baseURL, authenticated by session.
func NewClient(session *Session, baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{session: session, base: strings.TrimSuffix(baseURL, "/"), logger: logger}
}

// asset is one line of the portfolio endpoint.
//
// sample of response (numbers are fake)
//
//	{
//	    "pais": "argentina",
//	    "activos": [
//	        {
//	            "cantidad": 10,
//	            "comprometido": 0,
//	            "variacionDiaria": 1.25,
//	            "ultimoPrecio": 5000,
//	            "ppc": 4100.5,
//	            "valorizado": 50000,
//	            "titulo": {
//	                "simbolo": "GGAL",
//	                "descripcion": "Grupo Financiero Galicia",
//	                "pais": "argentina",
//	                "mercado": "bCBA",
//	                "tipo": "ACCIONES",
//	                "moneda": "peso_Argentino"
//	            }
//	        }
//	    ]
//	}
type asset struct {
	Quantity           decimal.Decimal `json:"cantidad"`
	DailyChangePercent decimal.Decimal `json:"variacionDiaria"`
	LastPrice          decimal.Decimal `json:"ultimoPrecio"`
	Valuation          decimal.Decimal `json:"valorizado"`
	Title              struct {
		Symbol      string `json:"simbolo"`
		Description string `json:"descripcion"`
		Market      string `json:"mercado"`
		Currency    string `json:"moneda"`
	} `json:"titulo"`
}

// Holdings returns the holdings of a segment of the account.
func (c *Client) Holdings(ctx context.Context, segment string) ([]brokerfolio.Holding, error) {
	uri := c.base + portfolioPath + url.PathEscape(segment)
	data, err := c.session.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error querying %s portfolio: %w", segment, err)
	}

	var snapshot struct {
		Assets []asset `json:"activos"`
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		c.logger.Debug("undecodable portfolio", zap.ByteString("json", data))
		return nil, fmt.Errorf("could not decode iol portfolio json: %w", err)
	}

	holdings := make([]brokerfolio.Holding, 0, len(snapshot.Assets))
	for _, a := range snapshot.Assets {
		holdings = append(holdings, brokerfolio.Holding{
			Symbol:             a.Title.Symbol,
			Description:        a.Title.Description,
			Currency:           a.Title.Currency,
			LastPrice:          a.LastPrice,
			Valuation:          a.Valuation,
			Quantity:           a.Quantity,
			DailyChangePercent: a.DailyChangePercent,
			Market:             a.Title.Market,
		})
	}
	c.logger.Debug("iol holdings", zap.String("segment", segment), zap.Int("count", len(holdings)))
	return holdings, nil
}
