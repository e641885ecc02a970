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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func TestGlobalMean(t *testing.T) {
	dataset := NewDataset()
	dataset.Add(1, 10, 5)
	dataset.Add(2, 10, 3)
	dataset.Add(1, 11, 1)
	mu, err := GlobalMean(dataset)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, mu, epsilon)
}

func TestGlobalMean_Empty(t *testing.T) {
	_, err := GlobalMean(NewDataset())
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestItemEffects(t *testing.T) {
	dataset := NewDataset()
	dataset.Add(1, 1, 5)
	dataset.Add(2, 1, 3)
	dataset.Add(1, 2, 1)
	dataset.Add(2, 2, 3)
	mu, err := GlobalMean(dataset)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, mu, epsilon)
	// unregularized estimates are the per-item mean deviations
	effects, err := ItemEffects(dataset, mu, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, effects.Len())
	assert.InDelta(t, 1.0, effects.Get(1), epsilon)
	assert.InDelta(t, -1.0, effects.Get(2), epsilon)
	assert.Equal(t, 2, effects.Count(1))
	// shrinkage pulls estimates toward zero
	shrunk, err := ItemEffects(dataset, mu, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, shrunk.Get(1), epsilon)
	assert.InDelta(t, -0.5, shrunk.Get(2), epsilon)
	// extreme shrinkage drives estimates to zero
	flat, err := ItemEffects(dataset, mu, 1e12)
	require.NoError(t, err)
	assert.InDelta(t, 0, flat.Get(1), 1e-9)
	assert.InDelta(t, 0, flat.Get(2), 1e-9)
}

func TestItemEffects_Errors(t *testing.T) {
	dataset := NewDataset()
	dataset.Add(1, 1, 5)
	_, err := ItemEffects(dataset, 5, -1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = ItemEffects(NewDataset(), 0, 0)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestUserEffects(t *testing.T) {
	// mu = 11/3, b_1 = 5/6, b_2 = -5/3 at lambda1 = 0
	dataset := NewDataset()
	dataset.Add(1, 1, 5)
	dataset.Add(2, 1, 4)
	dataset.Add(1, 2, 2)
	mu, err := GlobalMean(dataset)
	require.NoError(t, err)
	itemEffects, err := ItemEffects(dataset, mu, 0)
	require.NoError(t, err)
	assert.InDelta(t, 5.0/6, itemEffects.Get(1), epsilon)
	assert.InDelta(t, -5.0/3, itemEffects.Get(2), epsilon)
	// user effects average the residuals net of item effects
	userEffects, err := UserEffects(dataset, mu, itemEffects, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, userEffects.Get(1), epsilon)
	assert.InDelta(t, -0.5, userEffects.Get(2), epsilon)
	// conditioning on item effects matters: skipping them confounds
	// harsh raters with weak catalogs
	unconditioned, err := UserEffects(dataset, mu, nil, 0)
	require.NoError(t, err)
	assert.NotEqual(t, userEffects.Get(1), unconditioned.Get(1))
}

func TestUserEffects_Errors(t *testing.T) {
	dataset := NewDataset()
	dataset.Add(1, 1, 5)
	_, err := UserEffects(dataset, 5, nil, -0.1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = UserEffects(NewDataset(), 0, nil, 0)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEffects_Deterministic(t *testing.T) {
	dataset := NewDataset()
	for u := int64(0); u < 13; u++ {
		for i := int64(0); i < 7; i++ {
			dataset.Add(u, i, float64((u*7+i)%5)+0.1)
		}
	}
	mu, err := GlobalMean(dataset)
	require.NoError(t, err)
	a, err := ItemEffects(dataset, mu, 2.5)
	require.NoError(t, err)
	b, err := ItemEffects(dataset, mu, 2.5)
	require.NoError(t, err)
	// bit-identical across runs
	for _, id := range a.Ids() {
		assert.Equal(t, a.Get(id), b.Get(id))
	}
}

func TestEffectTable_Nil(t *testing.T) {
	var table *EffectTable
	assert.Zero(t, table.Get(1))
	assert.Zero(t, table.Count(1))
	assert.Zero(t, table.Len())
	assert.Nil(t, table.Ids())
	_, exist := table.Lookup(1)
	assert.False(t, exist)
}
