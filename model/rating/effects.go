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
	"slices"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
)

// Effect is a per-entity additive adjustment estimated under shrinkage,
// together with the number of training ratings supporting it.
type Effect struct {
	Value float64
	Count int
}

// EffectTable maps entity ids to effects. A nil table or an absent id resolves
// to a zero effect. Tables are created once per regularization strength and
// never mutated afterwards.
type EffectTable struct {
	effects map[int64]Effect
}

// Get returns the effect value for an id, or 0 if the id is absent.
func (table *EffectTable) Get(id int64) float64 {
	if table == nil {
		return 0
	}
	return table.effects[id].Value
}

// Count returns the number of training ratings behind an id, or 0 if absent.
func (table *EffectTable) Count(id int64) int {
	if table == nil {
		return 0
	}
	return table.effects[id].Count
}

// Lookup returns the effect for an id and whether it exists.
func (table *EffectTable) Lookup(id int64) (Effect, bool) {
	if table == nil {
		return Effect{}, false
	}
	effect, exist := table.effects[id]
	return effect, exist
}

// Len returns the number of entities in the table.
func (table *EffectTable) Len() int {
	if table == nil {
		return 0
	}
	return len(table.effects)
}

// Ids returns all entity ids in ascending order.
func (table *EffectTable) Ids() []int64 {
	if table == nil {
		return nil
	}
	ids := lo.Keys(table.effects)
	slices.Sort(ids)
	return ids
}

// GlobalMean returns the arithmetic mean of all training ratings.
func GlobalMean(trainSet *Dataset) (float64, error) {
	if trainSet.Count() == 0 {
		return 0, errors.Annotate(ErrEmptyInput, "global mean")
	}
	return floats.Sum(trainSet.Ratings) / float64(trainSet.Count()), nil
}

type accumulator struct {
	sum   float64
	count int
}

// ItemEffects estimates a per-item effect for each item in the training set:
//
//	b_i = Σ(r_ui - μ) / (n_i + λ₁)
//
// the closed-form minimizer of Σ(r - μ - b_i)² + λ₁ Σ b_i². Items with few
// ratings are shrunk toward zero more than items with many ratings. λ₁ = 0
// recovers the unregularized per-item mean deviation. λ₁ < 0 fails with
// ErrInvalidParameter.
func ItemEffects(trainSet *Dataset, mu, lambda1 float64) (*EffectTable, error) {
	if lambda1 < 0 {
		return nil, errors.Annotatef(ErrInvalidParameter,
			"regularization strength %v must be non-negative", lambda1)
	}
	if trainSet.Count() == 0 {
		return nil, errors.Annotate(ErrEmptyInput, "item effects")
	}
	sums := make(map[int64]*accumulator)
	for i := 0; i < trainSet.Count(); i++ {
		_, itemId, value := trainSet.Get(i)
		acc, exist := sums[itemId]
		if !exist {
			acc = new(accumulator)
			sums[itemId] = acc
		}
		acc.sum += value - mu
		acc.count++
	}
	return newEffectTable(sums, lambda1), nil
}

// UserEffects estimates a per-user effect over residuals net of item effects:
//
//	b_u = Σ(r_ui - μ - b_i) / (n_u + λ₂)
//
// A missing item effect contributes a zero b_i. The order matters: estimating
// user effects independently of item effects would confound harsh raters with
// weak catalogs. λ₂ < 0 fails with ErrInvalidParameter.
func UserEffects(trainSet *Dataset, mu float64, itemEffects *EffectTable, lambda2 float64) (*EffectTable, error) {
	if lambda2 < 0 {
		return nil, errors.Annotatef(ErrInvalidParameter,
			"regularization strength %v must be non-negative", lambda2)
	}
	if trainSet.Count() == 0 {
		return nil, errors.Annotate(ErrEmptyInput, "user effects")
	}
	sums := make(map[int64]*accumulator)
	for i := 0; i < trainSet.Count(); i++ {
		userId, itemId, value := trainSet.Get(i)
		acc, exist := sums[userId]
		if !exist {
			acc = new(accumulator)
			sums[userId] = acc
		}
		acc.sum += value - mu - itemEffects.Get(itemId)
		acc.count++
	}
	return newEffectTable(sums, lambda2), nil
}

func newEffectTable(sums map[int64]*accumulator, lambda float64) *EffectTable {
	table := &EffectTable{effects: make(map[int64]Effect, len(sums))}
	for id, acc := range sums {
		table.effects[id] = Effect{
			Value: acc.sum / (float64(acc.count) + lambda),
			Count: acc.count,
		}
	}
	return table
}
