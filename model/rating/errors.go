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

package rating

import "github.com/juju/errors"

// Estimation and evaluation fail fast with one of these sentinels. Missing
// users, items or pairs during prediction are not errors; they resolve to the
// default-to-zero fallbacks documented on Predictor.
var (
	// ErrEmptyInput reports that there are no observations to estimate from.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidParameter reports a negative regularization strength, a
	// non-positive rank or an out-of-range test fraction.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInsufficientData reports that the densified matrix is smaller than
	// the requested rank after threshold filtering.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDimensionMismatch reports evaluator inputs of different lengths.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)
