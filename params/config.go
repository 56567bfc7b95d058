package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Sim holds the parameters shared by every venue in a run. All venues
// must be launched with identical Sim values or the collective layer
// will never line up.
type Sim struct {
	NumNodes       int
	AgentsPerNode  int
	NumInstruments int
	Ticks          int

	// InitialPrice seeds every book's last price and price history.
	InitialPrice float64

	// ReportEvery controls how often (in ticks) progress is logged.
	ReportEvery int
}

type Node struct {
	Rank int

	// MinTickTime throttles the loop to keep demo runs readable.
	//
	// Recommended values:
	//   - Benchmark runs:  0 (no artificial pacing)
	//   - Demo/localnet:   50-200ms
	MinTickTime time.Duration

	Listen    string
	Bootstrap []string
	DataDir   string

	APIAddr   string
	EnableAPI bool
}

type Config struct {
	Sim  Sim
	Node Node
}

func Default() Config {
	return Config{
		Sim: Sim{
			NumNodes:       4,
			AgentsPerNode:  8,
			NumInstruments: 3,
			Ticks:          1000,
			InitialPrice:   100.0,
			ReportEvery:    100,
		},
		Node: Node{
			Rank:        0,
			MinTickTime: 0,
			DataDir:     "data",
			APIAddr:     ":8080",
			EnableAPI:   false,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	intEnv := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	intEnv("SIM_NODES", &cfg.Sim.NumNodes)
	intEnv("SIM_AGENTS", &cfg.Sim.AgentsPerNode)
	intEnv("SIM_INSTRUMENTS", &cfg.Sim.NumInstruments)
	intEnv("SIM_TICKS", &cfg.Sim.Ticks)
	intEnv("SIM_REPORT_EVERY", &cfg.Sim.ReportEvery)
	intEnv("NODE_RANK", &cfg.Node.Rank)

	if v := os.Getenv("SIM_INITIAL_PRICE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Sim.InitialPrice = f
		}
	}

	if v := os.Getenv("NODE_MIN_TICK_TIME_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Node.MinTickTime = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("LISTEN"); v != "" {
		cfg.Node.Listen = v
	}
	if v := os.Getenv("BOOTSTRAP"); v != "" {
		// Example: "/ip4/127.0.0.1/tcp/7001/p2p/<id>,/ip4/..."
		cfg.Node.Bootstrap = strings.Split(v, ",")
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("ENABLE_API"); v != "" {
		cfg.Node.EnableAPI = v == "true"
	}

	return cfg
}
