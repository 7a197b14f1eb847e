// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package main

import (
	"fmt"
	"os"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		// Bad invocations exit 2 so scripts can tell usage errors from
		// runtime failures.
		if memexerr.HasCode(err, memexerr.CodeCLIInputInvalid) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
