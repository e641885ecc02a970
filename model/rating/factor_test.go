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
	"gonum.org/v1/gonum/mat"

	"github.com/ratingkit/ratingkit/base"
)

func newResidualMatrix(userIds, itemIds []int64, data []float64) *ResidualMatrix {
	userIndex := base.NewIndex()
	for _, id := range userIds {
		userIndex.Add(id)
	}
	itemIndex := base.NewIndex()
	for _, id := range itemIds {
		itemIndex.Add(id)
	}
	return &ResidualMatrix{
		UserIndex: userIndex,
		ItemIndex: itemIndex,
		Values:    mat.NewDense(len(userIds), len(itemIds), data),
	}
}

func frobenius(a, b mat.Matrix) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	return mat.Norm(&diff, 2)
}

func TestFitFactors_FullRankReconstruction(t *testing.T) {
	m := newResidualMatrix([]int64{1, 2, 3}, []int64{10, 11}, []float64{
		1, -0.5,
		-0.25, 2,
		0.75, 0,
	})
	model, err := FitFactors(m)
	require.NoError(t, err)
	assert.Equal(t, 2, model.Rank())
	reconstruction, err := model.Reconstruct(model.Rank())
	require.NoError(t, err)
	assert.InDelta(t, 0, frobenius(reconstruction, m.Values), 1e-10)
}

func TestFitFactors_ExplainedVariance(t *testing.T) {
	m := newResidualMatrix([]int64{1, 2, 3, 4}, []int64{10, 11, 12}, []float64{
		2, 0.1, -1,
		-0.3, 1.5, 0.7,
		0.9, -2, 0.2,
		-1.1, 0.4, 1.8,
	})
	model, err := FitFactors(m)
	require.NoError(t, err)
	variance := model.ExplainedVariance()
	assert.Len(t, variance, 3)
	total := 0.0
	for i, v := range variance {
		assert.GreaterOrEqual(t, v, 0.0)
		if i > 0 {
			assert.LessOrEqual(t, v, variance[i-1])
		}
		total += v
	}
	assert.InDelta(t, 1.0, total, epsilon)
}

func TestFitFactors_Orthogonality(t *testing.T) {
	m := newResidualMatrix([]int64{1, 2, 3, 4}, []int64{10, 11, 12}, []float64{
		2, 0.1, -1,
		-0.3, 1.5, 0.7,
		0.9, -2, 0.2,
		-1.1, 0.4, 1.8,
	})
	model, err := FitFactors(m)
	require.NoError(t, err)
	// factor score columns are mutually orthogonal, as are loading columns
	_, rank := model.UserFactor.Dims()
	for a := 0; a < rank; a++ {
		for b := a + 1; b < rank; b++ {
			assert.InDelta(t, 0,
				mat.Dot(model.UserFactor.ColView(a), model.UserFactor.ColView(b)), 1e-10)
			assert.InDelta(t, 0,
				mat.Dot(model.ItemFactor.ColView(a), model.ItemFactor.ColView(b)), 1e-10)
		}
	}
}

func TestReconstruct_ErrorNonIncreasing(t *testing.T) {
	m := newResidualMatrix([]int64{1, 2, 3, 4}, []int64{10, 11, 12}, []float64{
		2, 0.1, -1,
		-0.3, 1.5, 0.7,
		0.9, -2, 0.2,
		-1.1, 0.4, 1.8,
	})
	model, err := FitFactors(m)
	require.NoError(t, err)
	previous := mat.Norm(m.Values, 2)
	for k := 1; k <= model.Rank(); k++ {
		reconstruction, err := model.Reconstruct(k)
		require.NoError(t, err)
		current := frobenius(reconstruction, m.Values)
		assert.LessOrEqual(t, current, previous+epsilon)
		previous = current
	}
}

func TestReconstruct_Bounds(t *testing.T) {
	m := newResidualMatrix([]int64{1, 2}, []int64{10, 11}, []float64{1, 0, 0, 1})
	model, err := FitFactors(m)
	require.NoError(t, err)
	_, err = model.Reconstruct(0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = model.Reconstruct(-1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = model.Reconstruct(model.Rank() + 1)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestFitFactors_ZeroMatrix(t *testing.T) {
	m := newResidualMatrix([]int64{1, 2, 3}, []int64{10, 11}, nil)
	model, err := FitFactors(m)
	require.NoError(t, err)
	for _, v := range model.ExplainedVariance() {
		assert.Zero(t, v)
	}
	reconstruction, err := model.Reconstruct(1)
	require.NoError(t, err)
	assert.InDelta(t, 0, mat.Norm(reconstruction, 2), epsilon)
}

func TestInteraction(t *testing.T) {
	// rank-1 matrix: outer product of (2, 1, 3) and (1, 2)
	m := newResidualMatrix([]int64{1, 2, 3}, []int64{10, 11}, []float64{
		2, 4,
		1, 2,
		3, 6,
	})
	model, err := FitFactors(m)
	require.NoError(t, err)
	interaction, err := NewInteraction(model, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2, interaction.Get(1, 10), 1e-10)
	assert.InDelta(t, 6, interaction.Get(3, 11), 1e-10)
	// pairs outside the densified matrix resolve to zero
	assert.Zero(t, interaction.Get(99, 10))
	assert.Zero(t, interaction.Get(1, 99))
}

func TestInteraction_Nil(t *testing.T) {
	var interaction *Interaction
	assert.Zero(t, interaction.Get(1, 10))
}
