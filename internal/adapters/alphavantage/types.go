package alphavantage

// --- Tipos internos de la API Alpha Vantage ---
// Todos los valores numéricos llegan como strings.

type apiMessage struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

// rsiResponse es la respuesta de function=RSI.
type rsiResponse struct {
	Series map[string]rsiValue `json:"Technical Analysis: RSI"`
}

type rsiValue struct {
	RSI string `json:"RSI"`
}

// dailyResponse es la respuesta de function=TIME_SERIES_DAILY.
type dailyResponse struct {
	Series map[string]dailyBar `json:"Time Series (Daily)"`
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}
