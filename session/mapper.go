//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package session

import (
	"fmt"

	"github.com/markkurossi/psi/record"
)

// MapResult maps the engine's match indices to the records of
// set. The result keeps the order of indices. An index outside set
// is an engine contract violation and no records are returned.
func MapResult(indices []uint64, set []record.Record) (
	[]record.Record, error) {

	result := make([]record.Record, 0, len(indices))
	for i, idx := range indices {
		if idx >= uint64(len(set)) {
			return nil, fmt.Errorf("%w: match %d: index %d out of range [0,%d)",
				ErrContractViolation, i, idx, len(set))
		}
		result = append(result, set[idx])
	}
	return result, nil
}
