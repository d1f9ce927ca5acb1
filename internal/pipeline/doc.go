// Package pipeline runs the live preview: it turns edits of a markdown
// document into patches for a rendered view.
//
// An Engine owns the document and wires the components together:
//
//	Apply/Load ──▶ Document ──▶ Scheduler (debounce) ──▶ render cycle
//	                                                       │
//	    Parser.Parse(text, prior, span) ◀──────────────────┘
//	        │
//	        ▼
//	    Updater.Diff(prev, next) ──▶ preview.patch (synchronous)
//	        │
//	        ▼
//	    Synchronizer.Rebuild ──▶ render.cycle
//
// Edits are accepted on any goroutine and never block on rendering. Render
// cycles run on the scheduler's goroutine, one at a time. Consumers
// subscribe to the topics in package events on the Engine's bus.
package pipeline
