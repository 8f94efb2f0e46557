// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/xswap/endpoint"
)

const (
	DefaultPollInterval = Duration(500 * time.Millisecond)
	DefaultMaxAttempts  = 3
)

var validate = validator.New()

// Duration is a time.Duration that reads "1s"-style strings from JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Route moves packets from the endpoint on SrcEid to the endpoint on DstEid.
type Route struct {
	Name   string `json:"name" validate:"required,alphanum"`
	SrcEid uint32 `json:"srcEid" validate:"required"`
	DstEid uint32 `json:"dstEid" validate:"required,nefield=SrcEid"`

	// Executor is the account that submits deliveries on the destination.
	Executor common.Address `json:"executor"`

	// Endpoints default to endpoint.ContractAddress.
	SrcEndpoint common.Address `json:"srcEndpoint,omitempty"`
	DstEndpoint common.Address `json:"dstEndpoint,omitempty"`
}

type Config struct {
	Routes       []Route  `json:"routes" validate:"required,min=1,dive"`
	PollInterval Duration `json:"pollInterval" validate:"gt=0"`
	MaxAttempts  int      `json:"maxAttempts" validate:"min=1,max=100"`
}

// ParseConfig decodes [b], fills in defaults and validates the result.
func ParseConfig(b []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	for i := range c.Routes {
		r := &c.Routes[i]
		if r.SrcEndpoint == (common.Address{}) {
			r.SrcEndpoint = endpoint.ContractAddress
		}
		if r.DstEndpoint == (common.Address{}) {
			r.DstEndpoint = endpoint.ContractAddress
		}
	}
}

// Validate checks the struct tags and the rules they cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	names := make(map[string]struct{}, len(c.Routes))
	for _, r := range c.Routes {
		if r.Executor == (common.Address{}) {
			return fmt.Errorf("%w: route %s has no executor", ErrInvalidConfig, r.Name)
		}
		if _, ok := names[r.Name]; ok {
			return fmt.Errorf("%w: duplicate route %s", ErrInvalidConfig, r.Name)
		}
		names[r.Name] = struct{}{}
	}
	return nil
}
