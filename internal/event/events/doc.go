// Package events defines the topics and payloads published by the preview
// pipeline.
package events
