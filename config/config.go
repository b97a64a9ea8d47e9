package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Deployment-fixed bounds and defaults. Cap values are USD-scaled with nine
// fractional digits; fees are parts per billion.
const (
	DefaultMaxCap       uint64 = 1_000_000_000_000_000
	DefaultMinCap       uint64 = 100_000_000_000
	DefaultFirstFee     uint64 = 50_000_000
	DefaultSecondFee    uint64 = 50_000_000
	DefaultStalenessSec uint64 = 60
)

// Config is the daemon configuration.
type Config struct {
	ListenAddress          string   `toml:"ListenAddress"`
	DataDir                string   `toml:"DataDir"`
	TreasuryAddress        string   `toml:"TreasuryAddress"`
	NoPromoterAddress      string   `toml:"NoPromoterAddress"`
	Admins                 []string `toml:"Admins"`
	PriceFeedID            string   `toml:"PriceFeedID"`
	PriceFeedEndpoint      string   `toml:"PriceFeedEndpoint"`
	OracleStalenessSeconds uint64   `toml:"OracleStalenessSeconds"`
	MaxCap                 uint64   `toml:"MaxCap"`
	MinCap                 uint64   `toml:"MinCap"`
	FirstFeePPB            uint64   `toml:"FirstFeePPB"`
	SecondFeePPB           uint64   `toml:"SecondFeePPB"`
	DepositRatePerMinute   int      `toml:"DepositRatePerMinute"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress:          "0.0.0.0:8645",
		DataDir:                "./saled-data",
		NoPromoterAddress:      (ethcommon.Address{}).Hex(),
		Admins:                 []string{},
		PriceFeedID:            "NATIVE/USD",
		PriceFeedEndpoint:      "http://127.0.0.1:8799/price",
		OracleStalenessSeconds: DefaultStalenessSec,
		MaxCap:                 DefaultMaxCap,
		MinCap:                 DefaultMinCap,
		FirstFeePPB:            DefaultFirstFee,
		SecondFeePPB:           DefaultSecondFee,
		DepositRatePerMinute:   120,
	}
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = "0.0.0.0:8645"
	}
	if c.DataDir == "" {
		c.DataDir = "./saled-data"
	}
	if c.NoPromoterAddress == "" {
		c.NoPromoterAddress = (ethcommon.Address{}).Hex()
	}
	if c.OracleStalenessSeconds == 0 {
		c.OracleStalenessSeconds = DefaultStalenessSec
	}
	if c.MaxCap == 0 {
		c.MaxCap = DefaultMaxCap
	}
	if c.MinCap == 0 {
		c.MinCap = DefaultMinCap
	}
	if c.DepositRatePerMinute == 0 {
		c.DepositRatePerMinute = 120
	}
}

// OracleStaleness returns the freshness window as a duration.
func (c *Config) OracleStaleness() time.Duration {
	return time.Duration(c.OracleStalenessSeconds) * time.Second
}

// Treasury parses the configured treasury identity.
func (c *Config) Treasury() ([20]byte, error) {
	return parseAddress(c.TreasuryAddress, "TreasuryAddress")
}

// NoPromoter parses the configured "no promoter" sentinel identity.
func (c *Config) NoPromoter() ([20]byte, error) {
	return parseAddress(c.NoPromoterAddress, "NoPromoterAddress")
}

// Operators parses the configured admin allow-list.
func (c *Config) Operators() ([][20]byte, error) {
	out := make([][20]byte, 0, len(c.Admins))
	for i, admin := range c.Admins {
		addr, err := parseAddress(admin, fmt.Sprintf("Admins[%d]", i))
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func parseAddress(value, field string) ([20]byte, error) {
	if !ethcommon.IsHexAddress(value) {
		return [20]byte{}, fmt.Errorf("config: %s is not a valid hex address: %q", field, value)
	}
	return [20]byte(ethcommon.HexToAddress(value)), nil
}
