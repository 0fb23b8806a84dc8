package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/rsisweep/internal/domain"
)

// Config es la configuración completa del backtester.
type Config struct {
	Backtest BacktestConfig `yaml:"backtest"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Data     DataConfig     `yaml:"data"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// BacktestConfig define la cesta y el capital de cada simulación.
type BacktestConfig struct {
	Symbols        []string `yaml:"symbols"`
	StartDate      string   `yaml:"start_date"` // YYYY-MM-DD; vacío = últimos 10 años
	StartingCash   float64  `yaml:"starting_cash"`
	TradeSize      float64  `yaml:"trade_size"`
	LiquidateAtEnd bool     `yaml:"liquidate_at_end"` // vende lo abierto al último cierre
}

// SweepConfig define el grid de umbrales y el paralelismo.
type SweepConfig struct {
	Buy      Range `yaml:"buy"`
	Sell     Range `yaml:"sell"`
	Workers  int   `yaml:"workers"`   // 0 = NumCPU
	FailFast bool  `yaml:"fail_fast"` // aborta con el primer instrumento que falle
	Top      int   `yaml:"top"`       // filas del ranking en consola
}

// Range es un rango [From, To) con paso Step, como range() de los scripts originales.
type Range struct {
	From float64 `yaml:"from"`
	To   float64 `yaml:"to"`
	Step float64 `yaml:"step"`
}

// DataConfig controla de dónde salen las series.
type DataConfig struct {
	Dir       string `yaml:"dir"`        // cache JSON: <dir>/rsi, <dir>/price
	Indicator string `yaml:"indicator"`  // alphavantage | local
	RSIPeriod int    `yaml:"rsi_period"` // periodo del RSI
}

// APIConfig contiene los datos de acceso a Alpha Vantage.
type APIConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"` // mejor por env: ALPHA_VANTAGE_API_KEY
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	SeriesType        string `yaml:"series_type"` // open | close | high | low
}

// StorageConfig controla dónde se persisten los sweeps.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

const (
	IndicatorAlphaVantage = "alphavantage"
	IndicatorLocal        = "local"
)

// defaultSymbols es la cesta de large caps de los scripts originales.
var defaultSymbols = []string{
	"MSFT", "AAPL", "NVDA", "GOOG", "AMZN", "META", "BRK-B",
	"LLY", "TSM", "AVGO", "JPM", "V", "NVO", "TSLA",
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Un path vacío o inexistente usa solo defaults y variables de entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// sin archivo: defaults
		case err != nil:
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate comprueba rangos, capital y fecha de inicio.
func (c *Config) Validate() error {
	if err := c.Sweep.Buy.validate(); err != nil {
		return fmt.Errorf("sweep.buy: %w", err)
	}
	if err := c.Sweep.Sell.validate(); err != nil {
		return fmt.Errorf("sweep.sell: %w", err)
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	if _, err := c.Since(); err != nil {
		return err
	}
	if c.Data.Indicator != IndicatorAlphaVantage && c.Data.Indicator != IndicatorLocal {
		return fmt.Errorf("data.indicator: unknown source %q", c.Data.Indicator)
	}
	if len(c.Backtest.Symbols) == 0 {
		return errors.New("backtest.symbols: empty")
	}
	return nil
}

// Params devuelve los parámetros de simulación.
func (c *Config) Params() domain.Params {
	return domain.Params{
		StartingCash:   c.Backtest.StartingCash,
		TradeSize:      c.Backtest.TradeSize,
		LiquidateAtEnd: c.Backtest.LiquidateAtEnd,
	}
}

// Since devuelve la fecha de inicio de la ventana de backtest.
func (c *Config) Since() (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, c.Backtest.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("backtest.start_date: %w", err)
	}
	return t, nil
}

// Values devuelve From, From+Step, ... < To. Se calcula por índice para no
// acumular error de coma flotante.
func (r Range) Values() []float64 {
	if r.Step <= 0 || r.To <= r.From {
		return nil
	}
	n := int(math.Ceil((r.To - r.From) / r.Step))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := r.From + float64(i)*r.Step
		if v >= r.To {
			break
		}
		out = append(out, v)
	}
	return out
}

func (r Range) validate() error {
	if r.Step <= 0 {
		return fmt.Errorf("step must be > 0, got %v", r.Step)
	}
	if r.To <= r.From {
		return fmt.Errorf("to (%v) must be > from (%v)", r.To, r.From)
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("RSISWEEP_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if len(cfg.Backtest.Symbols) == 0 {
		cfg.Backtest.Symbols = defaultSymbols
	}
	cfg.Backtest.Symbols = normalizeSymbols(cfg.Backtest.Symbols)
	if cfg.Backtest.StartDate == "" {
		cfg.Backtest.StartDate = time.Now().UTC().AddDate(-10, 0, 0).Format(domain.DateLayout)
	}
	if cfg.Backtest.StartingCash <= 0 {
		cfg.Backtest.StartingCash = domain.DefaultStartingCash
	}
	if cfg.Backtest.TradeSize <= 0 {
		cfg.Backtest.TradeSize = domain.DefaultTradeSize
	}
	if cfg.Sweep.Buy == (Range{}) {
		cfg.Sweep.Buy = Range{From: 75, To: 90, Step: 1}
	}
	if cfg.Sweep.Sell == (Range{}) {
		cfg.Sweep.Sell = Range{From: 75, To: 90, Step: 1}
	}
	if cfg.Sweep.Top <= 0 {
		cfg.Sweep.Top = 20
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data"
	}
	if cfg.Data.Indicator == "" {
		cfg.Data.Indicator = IndicatorAlphaVantage
	}
	if cfg.Data.RSIPeriod <= 0 {
		cfg.Data.RSIPeriod = 14
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://www.alphavantage.co"
	}
	if cfg.API.RequestsPerMinute <= 0 {
		cfg.API.RequestsPerMinute = 5 // free tier
	}
	if cfg.API.SeriesType == "" {
		cfg.API.SeriesType = "open"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "rsisweep.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// normalizeSymbols pasa a mayúsculas, quita vacíos y duplicados conservando el orden.
func normalizeSymbols(symbols []string) []string {
	up := lo.Map(symbols, func(s string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})
	return lo.Uniq(lo.Compact(up))
}
