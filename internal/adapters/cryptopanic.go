package adapters

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// maxArticlesPerResponse bounds the news payload to the most recent page.
const maxArticlesPerResponse = 20

// CryptoPanicAdapter is the primary news source. The posts feed requires an
// auth_token query param even for public content, so the registry only
// builds this adapter when a key is configured.
type CryptoPanicAdapter struct {
	BaseAdapter
}

func newCryptoPanic(d Descriptor, key, secret string) (Adapter, error) {
	return &CryptoPanicAdapter{
		BaseAdapter: newBase("cryptopanic", d, map[string]string{
			"news": "/api/v1/posts/?public=true",
		}, key, secret),
	}, nil
}

func (a *CryptoPanicAdapter) FetchRaw(ctx context.Context, req Request) (*RawResult, error) {
	p := map[string]string{}
	if sym := req.Params["symbol"]; sym != "" {
		// The feed filters by currency code, not trading pair.
		base, _ := splitPair(sym)
		p["currencies"] = base
	}
	if a.apiKey != "" {
		p["auth_token"] = a.apiKey
	}
	req.Params = p
	return a.do(ctx, req, http.MethodGet, nil)
}

func (a *CryptoPanicAdapter) Transform(raw []byte, dataType string) (any, error) {
	switch dataType {
	case "news":
		results := gjson.GetBytes(raw, "results")
		if !results.Exists() {
			return nil, fmt.Errorf("response carries no results array")
		}
		out := News{Articles: []Article{}}
		results.ForEach(func(_, p gjson.Result) bool {
			out.Articles = append(out.Articles, Article{
				Title:        p.Get("title").String(),
				URL:          p.Get("url").String(),
				Source:       p.Get("source.title").String(),
				PublishedUTC: p.Get("published_at").String(),
			})
			return len(out.Articles) < maxArticlesPerResponse
		})
		return out, nil
	}
	return nil, fmt.Errorf("unsupported data type %q", dataType)
}

var _ Adapter = (*CryptoPanicAdapter)(nil)
