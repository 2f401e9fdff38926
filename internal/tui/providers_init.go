package tui

// Import all provider packages to trigger their init() functions
// which register the providers with the global registry.

import (
	// Import provider packages for side effects (registration)
	_ "github.com/atlasagent/coreloop/internal/provider/anthropic"
	_ "github.com/atlasagent/coreloop/internal/provider/google"
	_ "github.com/atlasagent/coreloop/internal/provider/openai"
)
