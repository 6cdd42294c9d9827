// Copyright 2026 Humberto Gesser
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

package emojify

// Placement is one record of a placement plan: the tile with the given
// palette index covers the square block of cells with side length Side whose
// top left cell is (Row, Col).
type Placement struct {
	Row, Col int
	Index    int
	Side     int
}

// PlacementPlan is the ordered output of MergeBlocks, consumed once by the
// compositor. Placements are emitted in row-major order of their top left
// cells, their footprints lie fully inside the grid and never overlap.
type PlacementPlan []Placement

// CoverageMask tracks which grid cells have been claimed by a block during
// merging. It has the same shape as the grid it belongs to.
type CoverageMask [][]bool

// NewCoverageMask returns an all-false mask with the given shape.
func NewCoverageMask(rows, cols int) CoverageMask {
	mask := make(CoverageMask, rows)
	for i := range mask {
		mask[i] = make([]bool, cols)
	}
	return mask
}

// Covered returns whether every cell of the mask is covered.
func (mask CoverageMask) Covered() bool {
	for _, row := range mask {
		for _, c := range row {
			if !c {
				return false
			}
		}
	}
	return true
}

// claim marks the side x side block at (row, col) as covered.
func (mask CoverageMask) claim(row, col, side int) {
	for i := row; i < row+side; i++ {
		for j := col; j < col+side; j++ {
			mask[i][j] = true
		}
	}
}

// largestUniformSquare returns the side length of the largest square block
// anchored at (row, col) whose cells all carry the palette index v and are
// not yet covered. Candidate sides are tried from largest to smallest, the
// result is at least 1.
//
// This greedy top-left-anchored search deliberately favors early large
// blocks over partitions that might pack more tightly, downstream output
// depends on exactly this choice.
func largestUniformSquare(grid Grid, mask CoverageMask, row, col, v, maxSide int) int {
	maxPossible := maxSide
	if rest := grid.Rows() - row; rest < maxPossible {
		maxPossible = rest
	}
	if rest := grid.Cols() - col; rest < maxPossible {
		maxPossible = rest
	}
candidates:
	for side := maxPossible; side > 1; side-- {
		for i := row; i < row+side; i++ {
			for j := col; j < col+side; j++ {
				if grid[i][j] != v || mask[i][j] {
					continue candidates
				}
			}
		}
		return side
	}
	return 1
}

// MergeBlocks greedily coalesces maximal uniform square runs of the grid
// into blocks and returns the resulting placement plan. Cells are processed
// in row-major order; for each yet uncovered cell the largest uniform square
// anchored there (bounded by maxSide) is claimed and emitted.
//
// maxSide = 1 disables merging entirely: the plan then contains one side-1
// placement per cell.
//
// The plan covers every cell exactly once. This invariant is verified before
// returning; a violation yields a ConsistencyError and indicates a defect in
// the merge, not bad input.
func MergeBlocks(grid Grid, maxSide int) (PlacementPlan, error) {
	if maxSide < 1 {
		return nil, NewConfigurationError("max block side must be at least 1, got %d", maxSide)
	}
	numRows := grid.Rows()
	numCols := grid.Cols()
	mask := NewCoverageMask(numRows, numCols)
	res := make(PlacementPlan, 0, numRows*numCols)

	// numClaimed counts every single cell claim, it must end up at exactly
	// rows * cols
	numClaimed := 0
	for row := 0; row < numRows; row++ {
		for col := 0; col < numCols; {
			if mask[row][col] {
				col++
				continue
			}
			v := grid[row][col]
			side := largestUniformSquare(grid, mask, row, col, v, maxSide)
			mask.claim(row, col, side)
			numClaimed += side * side
			res = append(res, Placement{Row: row, Col: col, Index: v, Side: side})
			// cells of this block on later rows are skipped via the mask once
			// their row is reached
			col += side
		}
	}

	if numClaimed != numRows*numCols || !mask.Covered() {
		return nil, NewConsistencyError(
			"placement plan covers %d cell claims for a %dx%d grid", numClaimed, numRows, numCols)
	}
	return res, nil
}
