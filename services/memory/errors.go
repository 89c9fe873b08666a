// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import "errors"

// Error kinds of the service layer. Handlers map the first three to HTTP
// statuses; the rest are internal and surface to clients only as a generic
// 500 so backend details never leak.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage error")

	ErrEmbedding = errors.New("embedding error")
	ErrCache     = errors.New("cache error")
	ErrBlob      = errors.New("blob error")
)
