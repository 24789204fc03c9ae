// Package pipeline converts a selection of images and saves them into a
// destination folder.
//
// [SaveAll] is the synchronous save action:
//
//	inputs → choose folder → (batch: Converted_YYYYMMDDHHMMSS subfolder) →
//	per file: decode → encode → [seal] → atomic write → [verify] →
//	reveal → [quit]
//
// Per-file failures never stop the batch; they are collected into the
// [Outcome] and summarised once by [Outcome.Report]. [Start] runs the same
// work as a cancellable background [Job], and [Watcher] feeds it from a hot
// folder.
package pipeline
