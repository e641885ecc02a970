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

// FactorModel is the principal-component decomposition of a residual matrix.
// UserFactor holds the factor scores P = UΣ (users × r) and ItemFactor the
// loadings Q = V (items × r), so that P Qᵀ reconstructs the input at full rank
// within numerical tolerance. Columns are mutually orthogonal and ordered by
// descending explained variance. When singular values repeat, the component
// order among them is not unique, but reconstruction error is unaffected.
type FactorModel struct {
	UserIndex  *base.Index
	ItemIndex  *base.Index
	UserFactor *mat.Dense // P = UΣ
	ItemFactor *mat.Dense // Q = V
	variance   []float64  // fraction of variance per factor
}

// FitFactors decomposes a residual matrix by thin SVD. The decomposition is
// deterministic for a fixed input and tolerates all-zero rows and columns:
// such directions simply carry near-zero variance.
func FitFactors(m *ResidualMatrix) (*FactorModel, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m.Values, mat.SVDThin); !ok {
		return nil, errors.Errorf("SVD of %vx%v residual matrix failed to converge",
			m.Users(), m.Items())
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	// P = UΣ
	p := mat.NewDense(m.Users(), len(values), nil)
	p.Mul(&u, diagonal(values))
	// Fractions of variance explained per factor.
	total := 0.0
	for _, s := range values {
		total += s * s
	}
	variance := make([]float64, len(values))
	if total > 0 {
		for i, s := range values {
			variance[i] = s * s / total
		}
	}
	log.Logger().Debug("fit latent factors",
		zap.Int("rank", len(values)),
		zap.Float64s("variance", variance))
	return &FactorModel{
		UserIndex:  m.UserIndex,
		ItemIndex:  m.ItemIndex,
		UserFactor: p,
		ItemFactor: &v,
		variance:   variance,
	}, nil
}

// Rank returns the number of available factors.
func (model *FactorModel) Rank() int {
	return len(model.variance)
}

// ExplainedVariance returns the fraction of variance explained by each factor
// in descending order. Callers may choose a rank by elbow or cumulative
// variance criteria, or by held-out error.
func (model *FactorModel) ExplainedVariance() []float64 {
	return model.variance
}

// Reconstruct returns the rank-k truncated reconstruction P_k Q_kᵀ, the sum of
// the first k rank-1 outer products. k ≤ 0 fails with ErrInvalidParameter and
// k beyond the available rank fails with ErrInsufficientData.
func (model *FactorModel) Reconstruct(k int) (*mat.Dense, error) {
	if k <= 0 {
		return nil, errors.Annotatef(ErrInvalidParameter, "rank %v must be positive", k)
	}
	if k > model.Rank() {
		return nil, errors.Annotatef(ErrInsufficientData,
			"rank %v exceeds available %v factors", k, model.Rank())
	}
	users, _ := model.UserFactor.Dims()
	items, _ := model.ItemFactor.Dims()
	pk := model.UserFactor.Slice(0, users, 0, k)
	qk := model.ItemFactor.Slice(0, items, 0, k)
	reconstruction := mat.NewDense(users, items, nil)
	reconstruction.Mul(pk, qk.T())
	return reconstruction, nil
}

// Interaction exposes a rank-k reconstruction as a lookup keyed by sparse ids.
// Pairs outside the densified matrix resolve to zero.
type Interaction struct {
	userIndex *base.Index
	itemIndex *base.Index
	values    *mat.Dense
}

// NewInteraction builds the interaction term b_ui from a factor model at the
// given rank.
func NewInteraction(model *FactorModel, k int) (*Interaction, error) {
	values, err := model.Reconstruct(k)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Interaction{
		userIndex: model.UserIndex,
		itemIndex: model.ItemIndex,
		values:    values,
	}, nil
}

// Get returns the interaction term for a pair, or 0 when the user or item is
// outside the densified matrix or the receiver is nil.
func (interaction *Interaction) Get(userId, itemId int64) float64 {
	if interaction == nil {
		return 0
	}
	row := interaction.userIndex.ToNumber(userId)
	col := interaction.itemIndex.ToNumber(itemId)
	if row == base.NotId || col == base.NotId {
		return 0
	}
	return interaction.values.At(int(row), int(col))
}

func diagonal(values []float64) *mat.DiagDense {
	return mat.NewDiagDense(len(values), values)
}
