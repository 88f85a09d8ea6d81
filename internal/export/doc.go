// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders conversations to portable formats.
//
// # Key Types
//
//   - Exporter: Format-specific renderer
//   - Options: Metadata and timestamp switches plus the output directory
//
// # Supported Formats
//
//   - Markdown: Human-readable, also used for terminal rendering
//   - JSON: Machine-readable with full metadata
//   - HTML: Standalone page with embedded CSS
//
// # Usage
//
//	exporter, err := export.ForFormat("markdown", nil)
//	data, err := exporter.Export(conv)
//
// Write to disk (atomically):
//
//	path, err := export.ExportToFile(conv, exporter, opts)
package export
