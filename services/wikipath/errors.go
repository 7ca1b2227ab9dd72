// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package wikipath

import "errors"

// Sentinel errors for the wikipath service.
var (
	// ErrNotReady indicates no graph has been loaded yet.
	ErrNotReady = errors.New("graph not loaded")

	// ErrBadEndpoint indicates a malformed "id:" endpoint.
	ErrBadEndpoint = errors.New("malformed page id")

	// ErrSearchTimeout indicates a search did not finish within its deadline.
	ErrSearchTimeout = errors.New("search timed out")

	// ErrNoManifest indicates a reload was requested without a manifest path.
	ErrNoManifest = errors.New("no manifest configured")
)
