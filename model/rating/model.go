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
	"context"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/ratingkit/ratingkit/base/log"
	"github.com/ratingkit/ratingkit/common/parallel"
	"github.com/ratingkit/ratingkit/model"
)

// Model variants, from coarse to fine.
const (
	VariantBaseline = "baseline"     // μ
	VariantItem     = "item"         // μ + b_i
	VariantItemUser = "item_user"    // μ + b_i + b_u
	VariantLatent   = "item_user_pc" // μ + b_i + b_u + b_ui
)

// Variants lists all model variants in fitting order.
var Variants = []string{VariantBaseline, VariantItem, VariantItemUser, VariantLatent}

type FitConfig struct {
	Jobs int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{Jobs: 1}
}

func (config *FitConfig) SetJobs(nJobs int) *FitConfig {
	config.Jobs = nJobs
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// Pair is a prediction request. Users, items or pairs unseen in training are
// allowed and resolve via the Predictor's default rules.
type Pair struct {
	UserId int64
	ItemId int64
}

// Predictor composes the fitted terms into a rating prediction:
//
//	\hat{r}_{ui} = μ + b_i + b_u + b_ui
//
// Each term defaults to zero independently when its entity or pair is outside
// the fitted support: an unknown user or item falls back to the remaining
// terms and a pair outside the densified matrix gets a zero interaction even
// when both entities appear elsewhere. There is no other fallback. All fields
// are immutable after fitting; a Predictor is safe for concurrent use.
type Predictor struct {
	GlobalMean  float64
	ItemEffects *EffectTable
	UserEffects *EffectTable
	Interaction *Interaction
}

// Predict the rating given by a user to an item.
func (predictor *Predictor) Predict(userId, itemId int64) float64 {
	return predictor.GlobalMean +
		predictor.ItemEffects.Get(itemId) +
		predictor.UserEffects.Get(userId) +
		predictor.Interaction.Get(userId, itemId)
}

// PredictBatch predicts ratings for a batch of pairs. The returned slice is
// parallel to pairs.
func (predictor *Predictor) PredictBatch(pairs []Pair, nJobs int) []float64 {
	predictions := make([]float64, len(pairs))
	parallel.ForEach(pairs, nJobs, func(i int, pair Pair) {
		predictions[i] = predictor.Predict(pair.UserId, pair.ItemId)
	})
	return predictions
}

// Fit fits the full latent-factor model. Equivalent to FitVariant with
// VariantLatent.
func Fit(ctx context.Context, trainSet, testSet *Dataset, params model.Params, config *FitConfig) (*Predictor, error) {
	return FitVariant(ctx, VariantLatent, trainSet, testSet, params, config)
}

// FitVariant fits a model variant on the training set. The test set is used
// only by VariantLatent, to restrict the densified matrix to entities with
// evaluation support; effect estimates never see test ratings. Hyper-
// parameters: Lambda1 and Lambda2 (shrinkage, default 0), NFactors (rank,
// default 8), ItemMinCount and UserMinCount (densification thresholds,
// default 1). Fitting VariantLatent with rank k requires at least k+1
// densified users and items, otherwise ErrInsufficientData.
func FitVariant(ctx context.Context, variant string, trainSet, testSet *Dataset,
	params model.Params, config *FitConfig) (*Predictor, error) {
	config = config.LoadDefaultIfNil()
	log.Logger().Debug("fit rating model",
		zap.String("variant", variant),
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("test_set_size", testSet.Count()),
		zap.Any("params", params))
	mu, err := GlobalMean(trainSet)
	if err != nil {
		return nil, errors.Trace(err)
	}
	predictor := &Predictor{GlobalMean: mu}
	if variant == VariantBaseline {
		return predictor, nil
	}
	lambda1 := params.GetFloat64(model.Lambda1, 0)
	predictor.ItemEffects, err = ItemEffects(trainSet, mu, lambda1)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if variant == VariantItem {
		return predictor, nil
	}
	lambda2 := params.GetFloat64(model.Lambda2, 0)
	predictor.UserEffects, err = UserEffects(trainSet, mu, predictor.ItemEffects, lambda2)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if variant == VariantItemUser {
		return predictor, nil
	}
	if variant != VariantLatent {
		return nil, errors.Annotatef(ErrInvalidParameter, "unknown variant %q", variant)
	}
	if err = ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	nFactors := params.GetInt(model.NFactors, 8)
	if nFactors <= 0 {
		return nil, errors.Annotatef(ErrInvalidParameter, "rank %v must be positive", nFactors)
	}
	residual, err := BuildResidualMatrix(trainSet, testSet, mu,
		predictor.ItemEffects, predictor.UserEffects,
		params.GetInt(model.ItemMinCount, 1), params.GetInt(model.UserMinCount, 1))
	if err != nil {
		return nil, errors.Trace(err)
	}
	if residual.Users() < nFactors+1 || residual.Items() < nFactors+1 {
		return nil, errors.Annotatef(ErrInsufficientData,
			"rank %v needs more than %vx%v densified matrix",
			nFactors, residual.Users(), residual.Items())
	}
	factors, err := FitFactors(residual)
	if err != nil {
		return nil, errors.Trace(err)
	}
	predictor.Interaction, err = NewInteraction(factors, nFactors)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return predictor, nil
}
