package cryptocompare

// rawQuote is one RAW.<TICKER>.<CCY> object of the pricemultifull response.
type rawQuote struct {
	Price          float64 `json:"PRICE"`
	ChangePct24h   float64 `json:"CHANGEPCT24HOUR"`
	LastUpdateUnix int64   `json:"LASTUPDATE"`
}

// priceMultiFullResponse is the envelope of /pricemultifull. RAW maps ticker
// then quote currency to the raw quote. On errors the API still answers 200
// with a Response/Message pair instead.
type priceMultiFullResponse struct {
	Response string                         `json:"Response,omitempty"`
	Message  string                         `json:"Message,omitempty"`
	Raw      map[string]map[string]rawQuote `json:"RAW"`
}
