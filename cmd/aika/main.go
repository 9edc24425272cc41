// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Command aika processes documents against an interpretation network.
//
// Usage:
//
//	aika process --network net.yaml --document doc.yaml
//	aika batch --network net.yaml doc1.yaml doc2.yaml
//	aika serve --config aika.yaml --network net.yaml --watch
//	aika model save --network net.yaml --db ./aika-data
//	aika model show --db ./aika-data
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
