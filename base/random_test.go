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

package base

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
)

func TestRandomGenerator_Sample(t *testing.T) {
	rng := NewRandomGenerator(0)
	sampled := rng.Sample(0, 100, 10)
	assert.Len(t, sampled, 10)
	set := mapset.NewSet[int](sampled...)
	assert.Equal(t, 10, set.Cardinality())
	for _, v := range sampled {
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 100)
	}
	// sampling more than available returns the whole interval
	sampled = rng.Sample(0, 5, 10)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, sampled)
}

func TestRandomGenerator_SampleExclude(t *testing.T) {
	rng := NewRandomGenerator(0)
	exclude := mapset.NewSet[int](0, 1, 2, 3, 4)
	sampled := rng.Sample(0, 10, 5, exclude)
	assert.Len(t, sampled, 5)
	for _, v := range sampled {
		assert.False(t, exclude.Contains(v))
	}
}

func TestRandomGenerator_Deterministic(t *testing.T) {
	a := NewRandomGenerator(42).Sample(0, 1000, 100)
	b := NewRandomGenerator(42).Sample(0, 1000, 100)
	assert.Equal(t, a, b)
}
