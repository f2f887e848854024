// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the devrag home directory (~/.devrag).
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable prompt templates with embedded defaults
package file
