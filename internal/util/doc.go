// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds the few helpers that config, export, storage and the
// CLI all need: crash-safe file replacement and display-width aware string
// shaping for previews and terminal tables.
//
//	err := util.AtomicWrite(path, 0600, func(w io.Writer) error {
//		return toml.NewEncoder(w).Encode(cfg)
//	})
//
//	cell := util.PadRight(util.TruncateWidth(title, 40), 40)
package util
