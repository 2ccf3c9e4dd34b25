// Package gemini adapts the Gemini API to the pipeline's transcript
// analysis and summarization provider interfaces. It owns prompt
// construction and retry behavior; everything else about the model is
// configuration.
package gemini
