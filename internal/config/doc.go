// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for educagestao.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (EDUCAGESTAO_*)
//   - ~/.educagestao/config.toml
//   - Built-in defaults
//
// EDUCAGESTAO_HOME moves the whole data directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Session lifetimes and the role catalog are fixed in code and have no
// configuration keys.
package config
