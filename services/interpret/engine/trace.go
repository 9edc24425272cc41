// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"fmt"
	"strings"
)

// SearchTrace renders the best path of the last search.
//
// Each line describes one level: the candidate, how the SELECT and
// EXCLUDE branches were handled (LIMITED, CACHED, EXPLORE or - when not
// reached), the chosen decision and the accumulated weight. With
// KeepSearchTree the line also carries the soft-max share of the chosen
// branch among all leaves below the node. The output is diagnostic only.
func (d *Document) SearchTrace() string {
	if d.root == nil {
		return ""
	}
	var sb strings.Builder
	for n := d.root; n != nil; {
		if n.candidate == nil {
			fmt.Fprintf(&sb, "leaf level=%d weight=%s\n", n.level, n.accumulatedWeight)
			break
		}
		act := d.acts[n.candidate.actID]
		fmt.Fprintf(&sb, "level=%d cand=%d act=%d %s select=%s exclude=%s decision=%s weight=%s",
			n.level, n.candidate.id, act.id, act.Label(),
			n.debugSelect, n.debugExclude, n.decision, n.accumulatedWeight)
		if d.cfg.KeepSearchTree && n.resultSum > 0 {
			chosen := n.selectedWeightSum
			if n.decision == DecisionExcluded {
				chosen = n.excludedWeightSum
			}
			fmt.Fprintf(&sb, " share=%.3f", chosen/n.resultSum)
		}
		sb.WriteByte('\n')

		switch {
		case n.selectedChild != nil && n.selectedChild.bestPath:
			n = n.selectedChild
		case n.excludedChild != nil && n.excludedChild.bestPath:
			n = n.excludedChild
		default:
			n = nil
		}
	}
	return sb.String()
}
