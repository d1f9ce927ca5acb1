// Package config loads and validates marksync configuration.
//
// Configuration is layered, higher layers overriding lower ones:
//
//	┌───────────────────────────┐
//	│  3. Environment (MARKSYNC_) │  ← Highest priority
//	├───────────────────────────┤
//	│  2. TOML file               │
//	├───────────────────────────┤
//	│  1. Built-in defaults       │  ← Lowest priority
//	└───────────────────────────┘
//
// Layers are deep-merged as maps and decoded into a typed Config, which is
// then validated.
//
// # Configuration Files
//
//	[preview]
//	debounce_ms = 250
//	max_coalesce_ms = 1000
//	parser_extensions = ["gfm", "footnotes", "frontmatter"]
//	divergence_threshold = 0.5
//
//	[logging]
//	level = "info"
//
//	[terminal]
//	theme = "dark"
//	accent = "#5fafff"
//	wrap = true
//
// # Environment
//
// MARKSYNC_PREVIEW_DEBOUNCE_MS sets preview.debounce_ms, and so on for every
// key. The short forms MARKSYNC_DEBOUNCE_MS, MARKSYNC_MAX_COALESCE_MS,
// MARKSYNC_EXTENSIONS and MARKSYNC_LOG_LEVEL are also recognized. List
// values are comma separated.
//
// # Live Reload
//
// Watch reloads the file whenever it changes and hands each valid
// configuration to a callback. Invalid files are logged and ignored, so the
// last good configuration stays in effect.
package config
