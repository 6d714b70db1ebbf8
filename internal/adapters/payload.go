package adapters

// Normalized payload shapes. Every adapter's Transform produces one of
// these, so equivalent fields from different providers land under the same
// names and the conflict resolver can compare them by dotted path.

// Basic is the identity card of an asset.
type Basic struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Chain        string `json:"chain,omitempty"`
	TokenAddress string `json:"token_address,omitempty"`
	Website      string `json:"website,omitempty"`
	RepoURL      string `json:"repo_url,omitempty"`
	Rank         int    `json:"rank,omitempty"`
}

// Market is the spot market summary for an asset.
type Market struct {
	Price            float64 `json:"price"`
	Volume24h        float64 `json:"volume_24h"`
	MarketCap        float64 `json:"market_cap,omitempty"`
	Change24hPercent float64 `json:"change_24h_percent"`
	High24h          float64 `json:"high_24h,omitempty"`
	Low24h           float64 `json:"low_24h,omitempty"`
}

// Supply is the token supply breakdown.
type Supply struct {
	Circulating float64 `json:"circulating,omitempty"`
	Total       float64 `json:"total,omitempty"`
	Max         float64 `json:"max,omitempty"`
}

// Holder is one address in a holder distribution sample.
type Holder struct {
	Address      string  `json:"address"`
	SharePercent float64 `json:"share_percent,omitempty"`
}

// Holders is the on-chain holder distribution for a token contract.
type Holders struct {
	HolderCount int      `json:"holder_count"`
	Top         []Holder `json:"top,omitempty"`
}

// Security is a token contract risk summary.
type Security struct {
	IsOpenSource  bool    `json:"is_open_source"`
	IsHoneypot    bool    `json:"is_honeypot"`
	BuyTaxPercent float64 `json:"buy_tax_percent"`
	SellTaxPercent float64 `json:"sell_tax_percent"`
	HolderCount   int     `json:"holder_count,omitempty"`
}

// Developer is repository activity for an asset's main codebase.
type Developer struct {
	Repo          string `json:"repo"`
	Stars         int    `json:"stars"`
	Forks         int    `json:"forks"`
	OpenIssues    int    `json:"open_issues"`
	LastCommitUTC string `json:"last_commit_utc,omitempty"`
}

// Ticker is one trading pair's quote snapshot.
type Ticker struct {
	Symbol           string  `json:"symbol"`
	Last             float64 `json:"last"`
	Bid              float64 `json:"bid,omitempty"`
	Ask              float64 `json:"ask,omitempty"`
	Volume24h        float64 `json:"volume_24h"`
	Change24hPercent float64 `json:"change_24h_percent"`
}

// PriceLevel is one order book level as [price, quantity].
type PriceLevel [2]float64

// OrderBook is an order book snapshot.
type OrderBook struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// Trade is one public trade.
type Trade struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Side     string  `json:"side,omitempty"`
	TimeUTC  string  `json:"time_utc"`
}

// Trades is a recent public trade list.
type Trades struct {
	Symbol string  `json:"symbol"`
	Trades []Trade `json:"trades"`
}

// Funding is a perpetual funding snapshot.
type Funding struct {
	Symbol         string  `json:"symbol"`
	FundingRate    float64 `json:"funding_rate"`
	MarkPrice      float64 `json:"mark_price,omitempty"`
	NextFundingUTC string  `json:"next_funding_utc,omitempty"`
}

// OpenInterest is an open interest snapshot.
type OpenInterest struct {
	Symbol            string  `json:"symbol"`
	OpenInterest      float64 `json:"open_interest"`
	OpenInterestValue float64 `json:"open_interest_value,omitempty"`
}

// Options is an options market summary for one currency.
type Options struct {
	Currency         string  `json:"currency"`
	InstrumentsCount int     `json:"instruments_count"`
	TotalOpenInterest float64 `json:"total_open_interest"`
	TotalVolume24h   float64 `json:"total_volume_24h"`
}

// TVL is a protocol's total value locked.
type TVL struct {
	Protocol        string             `json:"protocol"`
	TVLUSD          float64            `json:"tvl_usd"`
	ChainTVLs       map[string]float64 `json:"chain_tvls,omitempty"`
	Change7dPercent float64            `json:"change_7d_percent,omitempty"`
}

// Fees is a protocol's fee and revenue summary.
type Fees struct {
	Protocol      string  `json:"protocol"`
	Fees24hUSD    float64 `json:"fees_24h_usd"`
	Revenue24hUSD float64 `json:"revenue_24h_usd,omitempty"`
}

// Pool is one liquidity pool.
type Pool struct {
	Pair         string  `json:"pair"`
	DEX          string  `json:"dex,omitempty"`
	TVLUSD       float64 `json:"tvl_usd"`
	Volume24hUSD float64 `json:"volume_24h_usd,omitempty"`
	PriceUSD     float64 `json:"price_usd,omitempty"`
}

// Pools is a pool list for a protocol or token.
type Pools struct {
	Pools []Pool `json:"pools"`
}

// Series is one macro time-series observation.
type Series struct {
	SeriesID  string  `json:"series_id,omitempty"`
	Value     float64 `json:"value"`
	Units     string  `json:"units,omitempty"`
	AsOfDate  string  `json:"as_of_date"`
}

// Article is one news item.
type Article struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Source       string `json:"source,omitempty"`
	PublishedUTC string `json:"published_utc,omitempty"`
}

// News is a news article list.
type News struct {
	Articles []Article `json:"articles"`
}

// FearGreed is the market sentiment index snapshot.
type FearGreed struct {
	Value          int    `json:"value"`
	Classification string `json:"classification"`
	AsOfUTC        string `json:"as_of_utc,omitempty"`
}

// TrendingCoin is one trending search entry.
type TrendingCoin struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Rank   int    `json:"rank"`
}

// Trending is the trending asset list.
type Trending struct {
	Coins []TrendingCoin `json:"coins"`
}
