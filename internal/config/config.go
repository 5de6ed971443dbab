package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

const prefix = "DOMINION_"

type Config struct {
	ListenAddr     string
	HTTPAddr       string
	Password       string
	TurnTimeLimit  time.Duration
	ReceiveTimeout time.Duration
	ReceiveBuffer  int
	SendQueue      int
	MaxConnections int
	FrameRate      float64
	FrameBurst     int
	KickGrace      time.Duration
	DatabaseURL    string
	RulesFile      string
	LogLevel       string
	LogDev         bool
}

func Default() Config {
	return Config{
		ListenAddr:     ":7777",
		HTTPAddr:       ":8080",
		ReceiveBuffer:  8192,
		SendQueue:      64,
		MaxConnections: 16,
		FrameRate:      50,
		FrameBurst:     100,
		KickGrace:      time.Second,
		LogLevel:       "info",
	}
}

// Load reads the given .env files, skipping ones that do not exist, then
// overlays DOMINION_* environment variables on the defaults. Variables
// already set in the environment win over the files.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from any variable source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	p.str("LISTEN_ADDR", &c.ListenAddr)
	p.str("HTTP_ADDR", &c.HTTPAddr)
	p.str("PASSWORD", &c.Password)
	p.duration("TURN_TIME_LIMIT", &c.TurnTimeLimit)
	p.duration("RECEIVE_TIMEOUT", &c.ReceiveTimeout)
	p.integer("RECEIVE_BUFFER", &c.ReceiveBuffer)
	p.integer("SEND_QUEUE", &c.SendQueue)
	p.integer("MAX_CONNECTIONS", &c.MaxConnections)
	p.float("FRAME_RATE", &c.FrameRate)
	p.integer("FRAME_BURST", &c.FrameBurst)
	p.duration("KICK_GRACE", &c.KickGrace)
	p.str("DATABASE_URL", &c.DatabaseURL)
	p.str("RULES_FILE", &c.RulesFile)
	p.str("LOG_LEVEL", &c.LogLevel)
	p.boolean("LOG_DEV", &c.LogDev)

	if p.err != nil {
		return Config{}, p.err
	}
	return c, nil
}

type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(name string) (string, string, bool) {
	key := prefix + name
	v, ok := p.lookup(key)
	return key, v, ok && v != ""
}

func (p *parser) fail(key, v string, err error) {
	p.err = multierr.Append(p.err, fmt.Errorf("%s=%q: %w", key, v, err))
}

func (p *parser) str(name string, dst *string) {
	if _, v, ok := p.get(name); ok {
		*dst = v
	}
}

func (p *parser) duration(name string, dst *time.Duration) {
	key, v, ok := p.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err == nil && d < 0 {
		err = errors.New("must not be negative")
	}
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = d
}

func (p *parser) integer(name string, dst *int) {
	key, v, ok := p.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err == nil && n <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = n
}

func (p *parser) float(name string, dst *float64) {
	key, v, ok := p.get(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err == nil && f < 0 {
		err = errors.New("must not be negative")
	}
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = f
}

func (p *parser) boolean(name string, dst *bool) {
	key, v, ok := p.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = b
}
