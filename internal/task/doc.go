// Package task runs the background media pipeline: a buffered queue, a
// worker pool that owns each task record's status transitions, and the
// four stage tasks (extract audio, transcribe, analyze, summarize)
// chained together by pipeline events. Provider work sits behind the
// AudioExtractor, Transcriber, TranscriptAnalyzer and
// TranscriptSummarizer interfaces.
package task
