package filecache

// store.go — cache en disco de las series descargadas.
//
// Layout (compatible con los ficheros ya descargados):
//   <dir>/rsi/<SYM>_rsi.json     {"2024-01-02": {"RSI": "55.1"}, ...}
//   <dir>/price/<SYM>_price.json {"2024-01-02": "371.50", ...}
//
// Los valores se guardan como strings igual que los devuelve la API; "NaN"
// se conserva para que el simulador lo rechace en la fecha correspondiente.

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// ErrMiss indica que el símbolo no está en cache.
var ErrMiss = errors.New("filecache: not cached")

// Store lee y escribe las series de un directorio base.
type Store struct {
	dir string
}

// New crea un Store sobre dir. Los subdirectorios se crean al escribir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) rsiPath(symbol string) string {
	return filepath.Join(s.dir, "rsi", symbol+"_rsi.json")
}

func (s *Store) pricePath(symbol string) string {
	return filepath.Join(s.dir, "price", symbol+"_price.json")
}

// LoadRSI lee el RSI cacheado del símbolo.
func (s *Store) LoadRSI(symbol string) (map[string]float64, error) {
	var raw map[string]struct {
		RSI *value `json:"RSI"`
	}
	if err := readJSON(s.rsiPath(symbol), &raw); err != nil {
		return nil, fmt.Errorf("filecache.LoadRSI %s: %w", symbol, err)
	}
	out := make(map[string]float64, len(raw))
	for date, v := range raw {
		if v.RSI == nil {
			out[date] = math.NaN()
			continue
		}
		out[date] = float64(*v.RSI)
	}
	return out, nil
}

// SaveRSI escribe el RSI del símbolo.
func (s *Store) SaveRSI(symbol string, rsi map[string]float64) error {
	raw := make(map[string]map[string]string, len(rsi))
	for date, v := range rsi {
		raw[date] = map[string]string{"RSI": format(v)}
	}
	if err := writeJSON(s.rsiPath(symbol), raw); err != nil {
		return fmt.Errorf("filecache.SaveRSI %s: %w", symbol, err)
	}
	return nil
}

// LoadCloses lee los cierres cacheados del símbolo.
func (s *Store) LoadCloses(symbol string) (map[string]float64, error) {
	var raw map[string]value
	if err := readJSON(s.pricePath(symbol), &raw); err != nil {
		return nil, fmt.Errorf("filecache.LoadCloses %s: %w", symbol, err)
	}
	out := make(map[string]float64, len(raw))
	for date, v := range raw {
		out[date] = float64(v)
	}
	return out, nil
}

// SaveCloses escribe los cierres del símbolo.
func (s *Store) SaveCloses(symbol string, closes map[string]float64) error {
	raw := make(map[string]string, len(closes))
	for date, v := range closes {
		raw[date] = format(v)
	}
	if err := writeJSON(s.pricePath(symbol), raw); err != nil {
		return fmt.Errorf("filecache.SaveCloses %s: %w", symbol, err)
	}
	return nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeJSON escribe a un temporal y renombra para no dejar ficheros a medias.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// value acepta un número JSON, un string numérico o null.
// Lo que no se pueda parsear queda como NaN.
type value float64

func (v *value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = value(math.NaN())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			f = math.NaN()
		}
		*v = value(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*v = value(math.NaN())
		return nil
	}
	*v = value(f)
	return nil
}
