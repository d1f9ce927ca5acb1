// Package patchlog records patch streams as JSON lines and replays them.
//
// Each line is one patch:
//
//	{"seq":3,"rev":17,"time":"2024-05-01T10:00:00Z","fallbacks":0,
//	 "ops":[{"op":"replace","path":[2],"target":9,
//	         "node":{"id":9,"kind":"fenced_code","start":40,"end":61,
//	                 "attr":"go","literal":"x := 42\n"}}]}
//
// Node kinds and operations are written by name, so logs stay readable
// across changes to the numeric enums. Replaying a log into an empty view
// rebuilds the preview the patches were produced for.
package patchlog
