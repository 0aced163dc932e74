// Package transcode wraps the external video tools used to probe, convert
// and derive companions for uploaded sign videos.
//
// Transcoder is the contract the normalizer, upload and import flows depend
// on. FFmpeg implements it with the ffmpeg and ffprobe binaries named in the
// configuration; tests substitute their own implementation.
package transcode
