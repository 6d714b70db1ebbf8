package adapters

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// AlternativeMeAdapter serves the Fear and Greed index. Single public
// endpoint, no credentials, updates once a day.
type AlternativeMeAdapter struct {
	BaseAdapter
}

func newAlternativeMe(d Descriptor, key, secret string) (Adapter, error) {
	return &AlternativeMeAdapter{
		BaseAdapter: newBase("alternative_me", d, map[string]string{
			"fear_greed": "/fng/",
		}, key, secret),
	}, nil
}

func (a *AlternativeMeAdapter) Transform(raw []byte, dataType string) (any, error) {
	if msg := gjson.GetBytes(raw, "metadata.error"); msg.Exists() && msg.String() != "" {
		return nil, fmt.Errorf("api error: %s", msg.String())
	}
	switch dataType {
	case "fear_greed":
		entry := gjson.GetBytes(raw, "data.0")
		if !entry.Exists() {
			return nil, fmt.Errorf("response carries no index data")
		}
		out := FearGreed{
			Value:          int(entry.Get("value").Int()),
			Classification: entry.Get("value_classification").String(),
		}
		if ts := entry.Get("timestamp").Int(); ts > 0 {
			out.AsOfUTC = time.Unix(ts, 0).UTC().Format(time.RFC3339)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported data type %q", dataType)
}

var _ Adapter = (*AlternativeMeAdapter)(nil)
