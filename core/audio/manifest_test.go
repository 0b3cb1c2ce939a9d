package audio

import (
	"bytes"
	"strings"
	"testing"
)

func TestBuildManifestExactText(t *testing.T) {
	got := BuildManifest([]string{"seg1", "seg2"})
	want := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-TARGETDURATION:10\n" +
		"#EXT-X-MEDIA-SEQUENCE:0\n" +
		"#EXT-X-PLAYLIST-TYPE:VOD\n" +
		"#EXTINF:10,\n" +
		"seg1\n" +
		"#EXTINF:10,\n" +
		"seg2\n" +
		"#EXT-X-ENDLIST"

	if got != want {
		t.Errorf("manifest mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildManifestIsPure(t *testing.T) {
	urls := []string{"a", "b", "c"}
	if BuildManifest(urls) != BuildManifest(urls) {
		t.Error("repeated calls with identical input differ")
	}
}

func TestBuildManifestIsOrderSensitive(t *testing.T) {
	if BuildManifest([]string{"a", "b"}) == BuildManifest([]string{"b", "a"}) {
		t.Error("manifests for reordered segments must differ")
	}
}

func TestBuildManifestEntryStructure(t *testing.T) {
	urls := []string{"u0", "u1", "u2", "u3"}
	lines := strings.Split(BuildManifest(urls), "\n")

	header := []string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-TARGETDURATION:10",
		"#EXT-X-MEDIA-SEQUENCE:0",
		"#EXT-X-PLAYLIST-TYPE:VOD",
	}
	for i, want := range header {
		if lines[i] != want {
			t.Fatalf("header line %d = %q, want %q", i, lines[i], want)
		}
	}

	// One #EXTINF:10, line immediately followed by the URL, in input order.
	extinfCount := 0
	for i, line := range lines {
		if line == "#EXTINF:10," {
			if lines[i+1] != urls[extinfCount] {
				t.Errorf("segment %d URL = %q, want %q", extinfCount, lines[i+1], urls[extinfCount])
			}
			extinfCount++
		}
	}
	if extinfCount != len(urls) {
		t.Errorf("got %d #EXTINF lines, want %d", extinfCount, len(urls))
	}

	if lines[len(lines)-1] != "#EXT-X-ENDLIST" {
		t.Errorf("last line = %q, want #EXT-X-ENDLIST", lines[len(lines)-1])
	}
}

func TestBuildManifestEmptySequence(t *testing.T) {
	got := BuildManifest(nil)
	want := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-TARGETDURATION:10\n" +
		"#EXT-X-MEDIA-SEQUENCE:0\n" +
		"#EXT-X-PLAYLIST-TYPE:VOD\n" +
		"#EXT-X-ENDLIST"
	if got != want {
		t.Errorf("empty manifest = %q, want %q", got, want)
	}
}

func TestBuildManifestFileMatchesStringVariant(t *testing.T) {
	urls := []string{"s1", "s2", "s3"}
	file := BuildManifestFile("playlist.m3u8", urls)

	if !bytes.Equal(file.Data, []byte(BuildManifest(urls))) {
		t.Error("file variant content differs from string variant")
	}
	if file.Name != "playlist.m3u8" {
		t.Errorf("Name = %q, want playlist.m3u8", file.Name)
	}
	if file.MimeType != "application/vnd.apple.mpegurl" {
		t.Errorf("MimeType = %q, want application/vnd.apple.mpegurl", file.MimeType)
	}
}
