package transcode

import (
	"sort"
	"strings"
)

// format describes how ffmpeg reads / writes a format token
type format struct {
	// muxer is the ffmpeg -f name
	muxer string

	// audio formats drop any video stream
	audio bool

	// seek is set for containers ffmpeg can't read from a pipe reliably (the
	// index may come at the end of the file)
	seek bool

	// args are extra output args
	args []string
}

var formats = map[string]*format{
	"mp4":  {muxer: "mp4", seek: true, args: []string{"-movflags", "frag_keyframe+empty_moov"}},
	"mov":  {muxer: "mov", seek: true, args: []string{"-movflags", "frag_keyframe+empty_moov"}},
	"mkv":  {muxer: "matroska"},
	"webm": {muxer: "webm"},
	"avi":  {muxer: "avi"},
	"wav":  {muxer: "wav", audio: true},
	"mp3":  {muxer: "mp3", audio: true},
	"flac": {muxer: "flac", audio: true},
	"ogg":  {muxer: "ogg", audio: true},
	"aac":  {muxer: "adts", audio: true},
	"m4a":  {muxer: "ipod", audio: true, seek: true, args: []string{"-movflags", "frag_keyframe+empty_moov"}},
}

// Formats returns the format tokens we know how to handle, sorted.
func Formats() []string {
	out := []string{}
	for k := range formats {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsSupported returns true if the format token is one we can handle.
func IsSupported(name string) bool {
	_, ok := formats[strings.ToLower(name)]
	return ok
}

func lookup(name string) (*format, bool) {
	f, ok := formats[strings.ToLower(name)]
	return f, ok
}
