// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/zaura/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports conversations to JSON format.
// JSON exports always include the complete conversation so they can be re-imported.
type JSONExporter struct {
	options *Options
}

// jsonDocument is the exported JSON shape.
type jsonDocument struct {
	Version      int                 `json:"version"`
	ExportedAt   time.Time           `json:"exported_at"`
	Conversation *model.Conversation `json:"conversation"`
	MessageCount int                 `json:"message_count"`
	TokenCount   int                 `json:"token_count"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a conversation to JSON format.
func (e *JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := validateConversation(conv); err != nil {
		return nil, err
	}

	doc := jsonDocument{
		Version:      1,
		ExportedAt:   time.Now().UTC(),
		Conversation: conv,
		MessageCount: conv.MessageCount(),
		TokenCount:   conv.EstimateTokens(),
	}
	if doc.Conversation.Messages == nil {
		c := conv.Clone()
		c.Messages = []*model.Message{}
		doc.Conversation = c
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
