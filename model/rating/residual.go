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
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/ratingkit/ratingkit/base"
	"github.com/ratingkit/ratingkit/base/log"
)

// ResidualMatrix is the densified matrix of training residuals
// r - μ - b_i - b_u. Rows are users with at least userMinCount training
// ratings, columns are items with at least itemMinCount training ratings, both
// restricted to entities present in the test set so that every later
// prediction target has matrix support. Unobserved cells hold exactly zero:
// residuals are approximately zero-mean by construction, so zero is the null
// hypothesis of no detectable interaction. Row and column order follow
// ascending ids.
type ResidualMatrix struct {
	UserIndex *base.Index
	ItemIndex *base.Index
	Values    *mat.Dense
}

// Users returns the number of densified users.
func (m *ResidualMatrix) Users() int {
	return int(m.UserIndex.Len())
}

// Items returns the number of densified items.
func (m *ResidualMatrix) Items() int {
	return int(m.ItemIndex.Len())
}

// BuildResidualMatrix densifies the training residuals after removing the
// estimated effects. Negative thresholds fail with ErrInvalidParameter; an
// empty row or column set fails with ErrInsufficientData.
func BuildResidualMatrix(trainSet, testSet *Dataset, mu float64,
	itemEffects, userEffects *EffectTable, itemMinCount, userMinCount int) (*ResidualMatrix, error) {
	if itemMinCount < 0 || userMinCount < 0 {
		return nil, errors.Annotatef(ErrInvalidParameter,
			"min counts (%v, %v) must be non-negative", itemMinCount, userMinCount)
	}
	// Select users and items by threshold and test-set support.
	testUsers := testSet.UserSet()
	testItems := testSet.ItemSet()
	userIndex := base.NewIndex()
	for _, userId := range userEffects.Ids() {
		if userEffects.Count(userId) >= userMinCount && testUsers.Contains(userId) {
			userIndex.Add(userId)
		}
	}
	itemIndex := base.NewIndex()
	for _, itemId := range itemEffects.Ids() {
		if itemEffects.Count(itemId) >= itemMinCount && testItems.Contains(itemId) {
			itemIndex.Add(itemId)
		}
	}
	if userIndex.Len() == 0 || itemIndex.Len() == 0 {
		return nil, errors.Annotatef(ErrInsufficientData,
			"densification left %v users and %v items", userIndex.Len(), itemIndex.Len())
	}
	// Fill observed residuals; unobserved cells stay zero.
	values := mat.NewDense(int(userIndex.Len()), int(itemIndex.Len()), nil)
	observed := 0
	for i := 0; i < trainSet.Count(); i++ {
		userId, itemId, value := trainSet.Get(i)
		row := userIndex.ToNumber(userId)
		col := itemIndex.ToNumber(itemId)
		if row != base.NotId && col != base.NotId {
			values.Set(int(row), int(col), value-mu-itemEffects.Get(itemId)-userEffects.Get(userId))
			observed++
		}
	}
	log.Logger().Debug("build residual matrix",
		zap.Int32("n_users", userIndex.Len()),
		zap.Int32("n_items", itemIndex.Len()),
		zap.Int("n_observed", observed))
	return &ResidualMatrix{
		UserIndex: userIndex,
		ItemIndex: itemIndex,
		Values:    values,
	}, nil
}
