// Copyright 2024 ratingkit Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration for the batch fit/predict pipeline.
type Config struct {
	// TestFraction is the share of observations held out for evaluation.
	TestFraction float64 `mapstructure:"test_fraction" validate:"gt=0,lt=1"`
	// SplitSeed seeds the train/test partition for reproducible benchmarks.
	SplitSeed int64 `mapstructure:"split_seed"`
	// Lambda1Grid holds candidate shrinkage strengths for item effects.
	Lambda1Grid []float64 `mapstructure:"lambda1_grid" validate:"min=1,dive,gte=0"`
	// Lambda2Grid holds candidate shrinkage strengths for user effects.
	Lambda2Grid []float64 `mapstructure:"lambda2_grid" validate:"min=1,dive,gte=0"`
	// ItemMinCount is the minimum training ratings for a densified item.
	ItemMinCount int `mapstructure:"item_min_count" validate:"gte=0"`
	// UserMinCount is the minimum training ratings for a densified user.
	UserMinCount int `mapstructure:"user_min_count" validate:"gte=0"`
	// RankGrid holds candidate ranks for the interaction term.
	RankGrid []int `mapstructure:"rank_grid" validate:"min=1,dive,gte=1"`
	// Jobs is the number of parallel workers.
	Jobs int `mapstructure:"jobs" validate:"gte=1"`
}

func setDefault() {
	viper.SetDefault("test_fraction", 0.1)
	viper.SetDefault("split_seed", 0)
	viper.SetDefault("lambda1_grid", []float64{0, 1, 2.5, 5, 10, 25})
	viper.SetDefault("lambda2_grid", []float64{0, 1, 2.5, 5, 10, 25})
	viper.SetDefault("item_min_count", 50)
	viper.SetDefault("user_min_count", 50)
	viper.SetDefault("rank_grid", []int{1, 2, 4, 8, 16})
	viper.SetDefault("jobs", 1)
}

// LoadConfig loads and validates the configuration file. An empty path keeps
// the defaults.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var conf Config
	if err := viper.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks the constraints on the configuration surface.
func (config *Config) Validate() error {
	return errors.Trace(validator.New().Struct(config))
}
