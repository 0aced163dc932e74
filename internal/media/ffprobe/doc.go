// Package ffprobe runs ffprobe and decodes the subset of its JSON report
// used to decide whether a video is canonical and where its poster frame
// sits.
package ffprobe
