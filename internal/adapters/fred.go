package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"
)

// FREDAdapter reads macro series from the St. Louis Fed. Every capability
// maps to the same observations endpoint; the series_id param picks the
// series and the template pins the response to the single latest point.
type FREDAdapter struct {
	BaseAdapter
}

func newFRED(d Descriptor, key, secret string) (Adapter, error) {
	const observations = "/fred/series/observations?file_type=json&sort_order=desc&limit=1"
	return &FREDAdapter{
		BaseAdapter: newBase("fred", d, map[string]string{
			"rates":     observations,
			"inflation": observations,
			"fx":        observations,
		}, key, secret),
	}, nil
}

func (a *FREDAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	p := map[string]string{}
	if id := req.Params["series_id"]; id != "" {
		p["series_id"] = id
	}
	if a.apiKey != "" {
		p["api_key"] = a.apiKey
	}
	req.Params = p
	return a.do(ctx, req, http.MethodGet, nil)
}

func (a *FREDAdapter) Transform(raw []byte, dataType string) (any, error) {
	switch dataType {
	case "rates", "inflation", "fx":
		obs := gjson.GetBytes(raw, "observations.0")
		if !obs.Exists() {
			return nil, fmt.Errorf("series has no observations")
		}
		// FRED publishes "." for dates with no reading.
		value, err := strconv.ParseFloat(obs.Get("value").String(), 64)
		if err != nil {
			return nil, fmt.Errorf("no numeric observation, got %q", obs.Get("value").String())
		}
		return Series{
			Value:    value,
			AsOfDate: obs.Get("date").String(),
		}, nil
	}
	return nil, fmt.Errorf("unsupported data type %q", dataType)
}

var _ Adapter = (*FREDAdapter)(nil)
