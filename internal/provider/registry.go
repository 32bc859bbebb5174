// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package provider

import majelerr "github.com/Guffawaffle/majel/pkg/errors"

// DefaultModel is the model Majel runs on when no override is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// ModelInfo describes one known model.
type ModelInfo struct {
	ID      string
	Name    string
	Context int
	Output  int
}

// KnownModels returns the hardcoded set of models Majel accepts. SetModel
// validates against this list before swapping.
func KnownModels() []ModelInfo {
	return []ModelInfo{
		{
			ID:      "gemini-2.5-pro",
			Name:    "Gemini 2.5 Pro",
			Context: 1000000,
			Output:  65536,
		},
		{
			ID:      "gemini-2.5-flash",
			Name:    "Gemini 2.5 Flash",
			Context: 1000000,
			Output:  65536,
		},
		{
			ID:      "gemini-2.5-flash-lite",
			Name:    "Gemini 2.5 Flash-Lite",
			Context: 1000000,
			Output:  65536,
		},
		{
			ID:      "gemini-2.0-flash",
			Name:    "Gemini 2.0 Flash",
			Context: 1000000,
			Output:  8192,
		},
	}
}

// ValidateModel returns an error if id is not in the known model registry.
func ValidateModel(id string) error {
	if id == "" {
		return majelerr.New(majelerr.CodeProviderRequestInvalid, "model id must not be empty")
	}

	for _, m := range KnownModels() {
		if m.ID == id {
			return nil
		}
	}

	return majelerr.New(majelerr.CodeProviderModelUnknown, "unknown model id", majelerr.FieldModel(id))
}
