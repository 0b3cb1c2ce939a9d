package audio

import (
	"fmt"
	"strings"

	"sacraltrack/model"
)

// ManifestMimeType is the mime type for HLS playlists.
const ManifestMimeType = "application/vnd.apple.mpegurl"

// ManifestFile packages a manifest as a named file object. Its Data is
// byte-identical to BuildManifest for the same segment sequence.
type ManifestFile struct {
	Name     string
	Data     []byte
	MimeType string
}

// BuildManifest assembles a VOD playlist from segment URLs in input order.
// Pure function: the same sequence always yields the same text. Every entry
// declares the nominal segment duration; the playlist is fully available
// upfront, no live appending.
func BuildManifest(segmentURLs []string) string {
	lines := make([]string, 0, 5+2*len(segmentURLs)+1)
	lines = append(lines,
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		fmt.Sprintf("#EXT-X-TARGETDURATION:%d", model.SegmentDuration),
		"#EXT-X-MEDIA-SEQUENCE:0",
		"#EXT-X-PLAYLIST-TYPE:VOD",
	)

	for _, url := range segmentURLs {
		lines = append(lines, fmt.Sprintf("#EXTINF:%d,", model.SegmentDuration), url)
	}

	lines = append(lines, "#EXT-X-ENDLIST")
	return strings.Join(lines, "\n")
}

// BuildManifestFile packages the manifest as a named playlist file.
func BuildManifestFile(name string, segmentURLs []string) ManifestFile {
	return ManifestFile{
		Name:     name,
		Data:     []byte(BuildManifest(segmentURLs)),
		MimeType: ManifestMimeType,
	}
}
