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
	"math"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/ratingkit/ratingkit/base/log"
	"github.com/ratingkit/ratingkit/model"
)

// RMSE returns the root-mean-squared error between predictions and held-out
// truth. Slices of different lengths fail with ErrDimensionMismatch.
func RMSE(predictions, truth []float64) (float64, error) {
	if len(predictions) != len(truth) {
		return 0, errors.Annotatef(ErrDimensionMismatch,
			"%v predictions vs %v truths", len(predictions), len(truth))
	}
	if len(truth) == 0 {
		return 0, errors.Annotate(ErrEmptyInput, "rmse")
	}
	sum := 0.0
	for i := range truth {
		diff := predictions[i] - truth[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(truth))), nil
}

// EvaluateRMSE computes the RMSE of a predictor on a held-out test set.
func EvaluateRMSE(predictor *Predictor, testSet *Dataset, nJobs int) (float64, error) {
	pairs := make([]Pair, testSet.Count())
	for i := range pairs {
		userId, itemId, _ := testSet.Get(i)
		pairs[i] = Pair{UserId: userId, ItemId: itemId}
	}
	predictions := predictor.PredictBatch(pairs, nJobs)
	score, err := RMSE(predictions, testSet.Ratings)
	return score, errors.Trace(err)
}

// Report maps a model variant name to its held-out RMSE.
type Report map[string]float64

// EvaluateAll fits every model variant on the training set and evaluates each
// on the test set, all under the same split and the same hyper-parameters.
func EvaluateAll(ctx context.Context, trainSet, testSet *Dataset,
	params model.Params, config *FitConfig) (Report, error) {
	config = config.LoadDefaultIfNil()
	report := make(Report, len(Variants))
	for _, variant := range Variants {
		predictor, err := FitVariant(ctx, variant, trainSet, testSet, params, config)
		if err != nil {
			return nil, errors.Trace(err)
		}
		score, err := EvaluateRMSE(predictor, testSet, config.Jobs)
		if err != nil {
			return nil, errors.Trace(err)
		}
		report[variant] = score
		log.Logger().Info("evaluate variant",
			zap.String("variant", variant),
			zap.Float64("RMSE", score))
	}
	return report, nil
}
