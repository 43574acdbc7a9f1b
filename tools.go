// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

//go:build tools

// Package main pins test dependencies that are only referenced from
// build-tagged integration suites.
package main

import (
	_ "github.com/onsi/ginkgo/v2"
	_ "github.com/onsi/gomega"
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"
)
