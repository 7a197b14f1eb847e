// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package server

import _ "embed"

//go:embed index.html
var indexHTML []byte
