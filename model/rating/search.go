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
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/ratingkit/ratingkit/base/log"
	"github.com/ratingkit/ratingkit/common/parallel"
	"github.com/ratingkit/ratingkit/model"
)

// SearchGrid holds the hyper-parameter candidates for GridSearch.
type SearchGrid struct {
	Lambda1 []float64
	Lambda2 []float64
	Rank    []int
}

// Trial records one evaluated candidate.
type Trial struct {
	Variant string
	Params  model.Params
	RMSE    float64
}

// SearchResult is the immutable outcome of a hyper-parameter search. Stages
// completed before a cancellation remain valid in BestParams and Trials.
type SearchResult struct {
	BestParams model.Params
	BestRMSE   float64
	Trials     []Trial
}

// GridSearch selects hyper-parameters by a staged greedy search: first λ₁
// minimizing the RMSE of the item-only model, then λ₂ minimizing the
// item+user model at the chosen λ₁, then the rank k minimizing the full
// model, with the effect tables and the factorization computed once and only
// the truncation varying across rank candidates. Candidates within a stage
// are evaluated in parallel over shared read-only inputs; ties resolve to the
// earliest grid entry. The search is interruptible between candidate
// evaluations through ctx; on cancellation the stages already finished are
// returned alongside the context error. Fixed parameters outside the grid,
// such as the densification thresholds, are passed through params.
func GridSearch(ctx context.Context, trainSet, testSet *Dataset, params model.Params,
	grid SearchGrid, config *FitConfig) (*SearchResult, error) {
	if len(grid.Lambda1) == 0 || len(grid.Lambda2) == 0 || len(grid.Rank) == 0 {
		return nil, errors.Annotate(ErrInvalidParameter, "empty search grid")
	}
	config = config.LoadDefaultIfNil()
	log.Logger().Info("start hyper-parameter search",
		zap.Int("n_lambda1", len(grid.Lambda1)),
		zap.Int("n_lambda2", len(grid.Lambda2)),
		zap.Int("n_rank", len(grid.Rank)),
		zap.Int("jobs", config.Jobs))
	startTime := time.Now()
	result := &SearchResult{BestParams: params.Copy()}

	// Stage 1: λ₁ on the item-only model.
	stage1 := make([]Trial, len(grid.Lambda1))
	err := parallel.Parallel(ctx, len(grid.Lambda1), config.Jobs, func(_, jobId int) error {
		candidate := params.Overwrite(model.Params{model.Lambda1: grid.Lambda1[jobId]})
		score, err := fitAndScore(ctx, VariantItem, trainSet, testSet, candidate)
		if err != nil {
			return errors.Trace(err)
		}
		stage1[jobId] = Trial{Variant: VariantItem, Params: candidate, RMSE: score}
		return nil
	})
	if err != nil {
		return result, errors.Trace(err)
	}
	best := argmin(stage1)
	result.Trials = append(result.Trials, stage1...)
	result.BestParams[model.Lambda1] = grid.Lambda1[best]
	result.BestRMSE = stage1[best].RMSE
	log.Logger().Info("select lambda1",
		zap.Float64("lambda1", grid.Lambda1[best]),
		zap.Float64("RMSE", stage1[best].RMSE))

	// Stage 2: λ₂ on the item+user model at the chosen λ₁.
	stage2 := make([]Trial, len(grid.Lambda2))
	err = parallel.Parallel(ctx, len(grid.Lambda2), config.Jobs, func(_, jobId int) error {
		params := result.BestParams.Overwrite(model.Params{model.Lambda2: grid.Lambda2[jobId]})
		score, err := fitAndScore(ctx, VariantItemUser, trainSet, testSet, params)
		if err != nil {
			return errors.Trace(err)
		}
		stage2[jobId] = Trial{Variant: VariantItemUser, Params: params, RMSE: score}
		return nil
	})
	if err != nil {
		return result, errors.Trace(err)
	}
	best = argmin(stage2)
	result.Trials = append(result.Trials, stage2...)
	result.BestParams[model.Lambda2] = grid.Lambda2[best]
	result.BestRMSE = stage2[best].RMSE
	log.Logger().Info("select lambda2",
		zap.Float64("lambda2", grid.Lambda2[best]),
		zap.Float64("RMSE", stage2[best].RMSE))

	// Stage 3: rank on the full model. Effects and factorization are shared
	// across rank candidates; only the truncation varies.
	mu, err := GlobalMean(trainSet)
	if err != nil {
		return result, errors.Trace(err)
	}
	itemEffects, err := ItemEffects(trainSet, mu, result.BestParams.GetFloat64(model.Lambda1, 0))
	if err != nil {
		return result, errors.Trace(err)
	}
	userEffects, err := UserEffects(trainSet, mu, itemEffects, result.BestParams.GetFloat64(model.Lambda2, 0))
	if err != nil {
		return result, errors.Trace(err)
	}
	residual, err := BuildResidualMatrix(trainSet, testSet, mu, itemEffects, userEffects,
		result.BestParams.GetInt(model.ItemMinCount, 1), result.BestParams.GetInt(model.UserMinCount, 1))
	if err != nil {
		return result, errors.Trace(err)
	}
	factors, err := FitFactors(residual)
	if err != nil {
		return result, errors.Trace(err)
	}
	stage3 := make([]Trial, len(grid.Rank))
	err = parallel.Parallel(ctx, len(grid.Rank), config.Jobs, func(_, jobId int) error {
		k := grid.Rank[jobId]
		if k <= 0 {
			return errors.Annotatef(ErrInvalidParameter, "rank %v must be positive", k)
		}
		if residual.Users() < k+1 || residual.Items() < k+1 {
			return errors.Annotatef(ErrInsufficientData,
				"rank %v needs more than %vx%v densified matrix", k, residual.Users(), residual.Items())
		}
		interaction, err := NewInteraction(factors, k)
		if err != nil {
			return errors.Trace(err)
		}
		predictor := &Predictor{
			GlobalMean:  mu,
			ItemEffects: itemEffects,
			UserEffects: userEffects,
			Interaction: interaction,
		}
		score, err := EvaluateRMSE(predictor, testSet, 1)
		if err != nil {
			return errors.Trace(err)
		}
		stage3[jobId] = Trial{
			Variant: VariantLatent,
			Params:  result.BestParams.Overwrite(model.Params{model.NFactors: k}),
			RMSE:    score,
		}
		return nil
	})
	if err != nil {
		return result, errors.Trace(err)
	}
	best = argmin(stage3)
	result.Trials = append(result.Trials, stage3...)
	result.BestParams[model.NFactors] = grid.Rank[best]
	result.BestRMSE = stage3[best].RMSE
	log.Logger().Info("complete hyper-parameter search",
		zap.Any("params", result.BestParams),
		zap.Float64("RMSE", result.BestRMSE),
		zap.String("search_time", time.Since(startTime).String()))
	return result, nil
}

func fitAndScore(ctx context.Context, variant string, trainSet, testSet *Dataset, params model.Params) (float64, error) {
	predictor, err := FitVariant(ctx, variant, trainSet, testSet, params, NewFitConfig())
	if err != nil {
		return 0, errors.Trace(err)
	}
	score, err := EvaluateRMSE(predictor, testSet, 1)
	return score, errors.Trace(err)
}

func argmin(trials []Trial) int {
	best := 0
	for i, trial := range trials {
		if trial.RMSE < trials[best].RMSE {
			best = i
		}
	}
	return best
}
