// Package media implements the audio extraction and transcription
// providers over the external ffmpeg and whisper.cpp binaries.
package media
