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
	"bufio"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/ratingkit/ratingkit/base"
	"github.com/ratingkit/ratingkit/base/log"
)

// Dataset is an immutable collection of (user, item, rating) observations.
// Each (user, item) pair appears at most once. Slices are append-only during
// loading and treated as read-only afterwards, so a Dataset may be shared
// across workers by reference.
type Dataset struct {
	Users      []int64
	Items      []int64
	Ratings    []float64
	Timestamps []int64 // optional, empty when the source has no timestamps
}

// NewDataset creates an empty Dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Users:   make([]int64, 0),
		Items:   make([]int64, 0),
		Ratings: make([]float64, 0),
	}
}

// Add appends an observation.
func (dataset *Dataset) Add(userId, itemId int64, rating float64) {
	dataset.Users = append(dataset.Users, userId)
	dataset.Items = append(dataset.Items, itemId)
	dataset.Ratings = append(dataset.Ratings, rating)
}

// AddWithTimestamp appends an observation carrying a timestamp.
func (dataset *Dataset) AddWithTimestamp(userId, itemId int64, rating float64, timestamp int64) {
	dataset.Add(userId, itemId, rating)
	dataset.Timestamps = append(dataset.Timestamps, timestamp)
}

// Count returns the number of observations.
func (dataset *Dataset) Count() int {
	return len(dataset.Ratings)
}

// Get returns the i-th observation as (user id, item id, rating).
func (dataset *Dataset) Get(i int) (int64, int64, float64) {
	return dataset.Users[i], dataset.Items[i], dataset.Ratings[i]
}

// UserSet returns the set of user ids present in the dataset.
func (dataset *Dataset) UserSet() mapset.Set[int64] {
	return mapset.NewSet[int64](dataset.Users...)
}

// ItemSet returns the set of item ids present in the dataset.
func (dataset *Dataset) ItemSet() mapset.Set[int64] {
	return mapset.NewSet[int64](dataset.Items...)
}

// SubSet returns a dataset restricted to the given row indices, in the given
// order.
func (dataset *Dataset) SubSet(indices []int) *Dataset {
	subset := NewDataset()
	if len(dataset.Timestamps) == len(dataset.Ratings) && len(dataset.Ratings) > 0 {
		subset.Timestamps = make([]int64, 0, len(indices))
	}
	for _, i := range indices {
		subset.Users = append(subset.Users, dataset.Users[i])
		subset.Items = append(subset.Items, dataset.Items[i])
		subset.Ratings = append(subset.Ratings, dataset.Ratings[i])
		if subset.Timestamps != nil {
			subset.Timestamps = append(subset.Timestamps, dataset.Timestamps[i])
		}
	}
	return subset
}

// SplitRatio partitions the dataset into disjoint train and test subsets by
// uniform sampling of row indices without replacement. The test subset holds
// round(Count*testFraction) rows. The split is deterministic for a fixed seed
// and input order. testFraction outside (0, 1) fails with ErrInvalidParameter.
func (dataset *Dataset) SplitRatio(testFraction float64, seed int64) (*Dataset, *Dataset, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, errors.Annotatef(ErrInvalidParameter,
			"test fraction %v must be in (0,1)", testFraction)
	}
	n := dataset.Count()
	testSize := int(math.Round(float64(n) * testFraction))
	rng := base.NewRandomGenerator(seed)
	sampled := mapset.NewSet[int](rng.Sample(0, n, testSize)...)
	trainIndices := make([]int, 0, n-testSize)
	testIndices := make([]int, 0, testSize)
	for i := 0; i < n; i++ {
		if sampled.Contains(i) {
			testIndices = append(testIndices, i)
		} else {
			trainIndices = append(trainIndices, i)
		}
	}
	return dataset.SubSet(trainIndices), dataset.SubSet(testIndices), nil
}

// ReadData loads observations from a reader. Each line should be:
//
//	<userId> <sep> <itemId> <sep> <rating> [<sep> <timestamp>]
//
// For example, the `u.data` file from MovieLens 100K is:
//
//	196\t242\t3\t881250949
//	186\t302\t3\t891717742
//	22\t377\t1\t878887116
func ReadData(r io.Reader, sep string, hasHeader bool) (*Dataset, error) {
	dataset := NewDataset()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		// Ignore header
		if hasHeader {
			hasHeader = false
			continue
		}
		fields := strings.Split(line, sep)
		// Ignore empty lines
		if len(fields) < 3 {
			continue
		}
		userId, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "malformed user id %q", fields[0])
		}
		itemId, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "malformed item id %q", fields[1])
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.Annotatef(err, "malformed rating %q", fields[2])
		}
		if len(fields) > 3 {
			timestamp, err := strconv.ParseInt(fields[3], 10, 64)
			if err != nil {
				return nil, errors.Annotatef(err, "malformed timestamp %q", fields[3])
			}
			dataset.AddWithTimestamp(userId, itemId, value, timestamp)
		} else {
			dataset.Add(userId, itemId, value)
		}
	}
	return dataset, errors.Trace(scanner.Err())
}

// LoadDataFromCSV loads observations from a CSV file.
func LoadDataFromCSV(fileName, sep string, hasHeader bool) (*Dataset, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	dataset, err := ReadData(file, sep, hasHeader)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load ratings from csv",
		zap.String("csv_file", fileName),
		zap.Int("n_ratings", dataset.Count()))
	return dataset, nil
}
