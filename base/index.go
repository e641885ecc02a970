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

// Index manages the map between sparse ids and dense indices. A sparse id is
// a user id or item id from the ratings source. The dense index is the internal
// row or column index of a matrix.
type Index struct {
	Numbers map[int64]int32 // sparse id -> dense index
	Ids     []int64         // dense index -> sparse id
}

// NotId represents an id that doesn't exist.
const NotId = int32(-1)

// NewIndex creates an Index.
func NewIndex() *Index {
	idx := new(Index)
	idx.Numbers = make(map[int64]int32)
	idx.Ids = make([]int64, 0)
	return idx
}

// Len returns the number of indexed ids.
func (idx *Index) Len() int32 {
	if idx == nil {
		return 0
	}
	return int32(len(idx.Ids))
}

// Add adds a new id to the index.
func (idx *Index) Add(id int64) {
	if _, exist := idx.Numbers[id]; !exist {
		idx.Numbers[id] = int32(len(idx.Ids))
		idx.Ids = append(idx.Ids, id)
	}
}

// ToNumber converts a sparse id to a dense index.
func (idx *Index) ToNumber(id int64) int32 {
	if idx == nil {
		return NotId
	}
	if number, exist := idx.Numbers[id]; exist {
		return number
	}
	return NotId
}

// ToId converts a dense index to a sparse id.
func (idx *Index) ToId(number int32) int64 {
	return idx.Ids[number]
}

// GetIds returns all ids in the current index.
func (idx *Index) GetIds() []int64 {
	return idx.Ids
}
