package events

import (
	"time"

	"github.com/dshills/marksync/internal/diff"
	"github.com/dshills/marksync/internal/event/topic"
	"github.com/dshills/marksync/internal/markdown"
	"github.com/dshills/marksync/internal/scrollsync"
)

// Preview topics.
const (
	// TopicPreviewPatch is published once per render cycle with the patch
	// that brings the preview up to date.
	TopicPreviewPatch topic.Topic = "preview.patch"

	// TopicPreviewHighlight is published with the source highlighting of
	// the rendered revision.
	TopicPreviewHighlight topic.Topic = "preview.highlight"

	// TopicScrollPreview asks the preview to scroll to a node.
	TopicScrollPreview topic.Topic = "scroll.preview"

	// TopicScrollEditor asks the editor to move to a source range.
	TopicScrollEditor topic.Topic = "scroll.editor"

	// TopicRenderCycle is published after every render cycle.
	TopicRenderCycle topic.Topic = "render.cycle"

	// TopicConfigReloaded is published when a reloaded configuration has
	// been applied.
	TopicConfigReloaded topic.Topic = "config.reloaded"
)

// PatchPublished carries a patch.
type PatchPublished struct {
	Patch    *diff.Patch
	Revision uint64
}

// HighlightUpdated carries source highlighting.
type HighlightUpdated struct {
	Spans    []markdown.StyleSpan
	Revision uint64
}

// ScrollPreview asks the preview to show a node.
type ScrollPreview struct {
	Node   markdown.NodeID
	Offset int
}

// ScrollEditor asks the editor to move to a range.
type ScrollEditor struct {
	Node  markdown.NodeID
	Range scrollsync.Range
}

// RenderCycle summarizes one render cycle.
type RenderCycle struct {
	Seq           uint64
	Revision      uint64
	Notifications int
	Forced        bool
	Reparsed      int
	Reused        int
	Ops           int
	Fallbacks     int
	ParseErrors   int
	Duration      time.Duration
}

// ConfigReloaded reports the settings that changed on reload.
type ConfigReloaded struct {
	Path    string
	Changed []string
}
