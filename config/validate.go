package config

import (
	"fmt"
	"strings"
)

const feeDenominator = 1_000_000_000

// Validate checks the configuration for values the daemon cannot start
// with. It returns the first violation found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if _, err := c.Treasury(); err != nil {
		return err
	}
	if _, err := c.NoPromoter(); err != nil {
		return err
	}
	if len(c.Admins) == 0 {
		return fmt.Errorf("config: at least one admin identity required")
	}
	if _, err := c.Operators(); err != nil {
		return err
	}
	if strings.TrimSpace(c.PriceFeedID) == "" {
		return fmt.Errorf("config: PriceFeedID required")
	}
	if c.MaxCap < c.MinCap {
		return fmt.Errorf("config: MaxCap %d below MinCap %d", c.MaxCap, c.MinCap)
	}
	if c.FirstFeePPB > feeDenominator || c.SecondFeePPB > feeDenominator {
		return fmt.Errorf("config: fee tiers may not exceed %d parts per billion", feeDenominator)
	}
	if c.OracleStalenessSeconds == 0 {
		return fmt.Errorf("config: OracleStalenessSeconds must be positive")
	}
	return nil
}
