// Package translator wires every protocol conversion pair into the registry.
// Importing this package is enough to make the full matrix available.
package translator

import (
	_ "github.com/llmgate/llmgate/internal/translator/claude/gemini"
	_ "github.com/llmgate/llmgate/internal/translator/claude/openai"
	_ "github.com/llmgate/llmgate/internal/translator/claude/openairesponses"
	_ "github.com/llmgate/llmgate/internal/translator/gemini/claude"
	_ "github.com/llmgate/llmgate/internal/translator/gemini/openai"
	_ "github.com/llmgate/llmgate/internal/translator/gemini/openairesponses"
	_ "github.com/llmgate/llmgate/internal/translator/openai/claude"
	_ "github.com/llmgate/llmgate/internal/translator/openai/gemini"
	_ "github.com/llmgate/llmgate/internal/translator/openai/openairesponses"
	_ "github.com/llmgate/llmgate/internal/translator/openairesponses/claude"
	_ "github.com/llmgate/llmgate/internal/translator/openairesponses/gemini"
	_ "github.com/llmgate/llmgate/internal/translator/openairesponses/openai"
)
