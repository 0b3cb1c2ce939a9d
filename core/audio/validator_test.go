package audio

import (
	"encoding/binary"
	"testing"
)

// makeWAV builds a minimal PCM WAV file of the given duration in seconds,
// header plus payload. Byte rate is fixed at 1000 so dataSize == duration*1000.
func makeWAV(durationSeconds float64) []byte {
	dataSize := uint32(durationSeconds * 1000)

	buf := make([]byte, 0, 44+int(dataSize))
	buf = append(buf, []byte("RIFF")...)
	buf = binary.LittleEndian.AppendUint32(buf, 36+dataSize)
	buf = append(buf, []byte("WAVE")...)

	buf = append(buf, []byte("fmt ")...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1)    // PCM
	buf = binary.LittleEndian.AppendUint16(buf, 1)    // mono
	buf = binary.LittleEndian.AppendUint32(buf, 1000) // sample rate
	buf = binary.LittleEndian.AppendUint32(buf, 1000) // byte rate
	buf = binary.LittleEndian.AppendUint16(buf, 1)    // block align
	buf = binary.LittleEndian.AppendUint16(buf, 8)    // bits per sample

	buf = append(buf, []byte("data")...)
	buf = binary.LittleEndian.AppendUint32(buf, dataSize)
	buf = append(buf, make([]byte, dataSize)...)
	return buf
}

func TestValidateAcceptsWAVWithinLimit(t *testing.T) {
	v := NewValidator(720)

	res := v.Validate("track.wav", "audio/wav", makeWAV(300))
	if !res.Valid {
		t.Fatalf("expected valid, got error %q", res.Err)
	}
	if res.Duration != 300 {
		t.Errorf("Duration = %v, want 300", res.Duration)
	}
}

func TestValidateRejectsNonWAVWithoutDecoding(t *testing.T) {
	v := NewValidator(720)

	// Content is a perfectly good WAV, but the declared type is MP3;
	// the validator must reject on the declaration alone.
	res := v.Validate("track.mp3", "audio/mpeg", makeWAV(60))
	if res.Valid {
		t.Fatal("expected invalid for non-WAV declared type")
	}
	if res.Err != "Please upload a WAV file" {
		t.Errorf("Err = %q, want %q", res.Err, "Please upload a WAV file")
	}
	if res.Duration != 0 {
		t.Errorf("Duration = %v, want 0 (no decode attempted)", res.Duration)
	}
}

func TestValidateRejectsMalformedWAV(t *testing.T) {
	v := NewValidator(720)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte("RIFF")},
		{"wrong magic", []byte("OggS\x00\x00\x00\x00WAVEfmt ")},
		{"riff but not wave", append([]byte("RIFF\x24\x00\x00\x00"), []byte("AVI LIST")...)},
		{"truncated fmt", makeWAV(60)[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate("track.wav", "audio/wav", tt.data)
			if res.Valid {
				t.Fatal("expected invalid")
			}
			if res.Err != "Invalid WAV file format" {
				t.Errorf("Err = %q, want %q", res.Err, "Invalid WAV file format")
			}
		})
	}
}

func TestValidateRejectsOverlongTrack(t *testing.T) {
	v := NewValidator(720)

	// 13 minutes.
	res := v.Validate("long.wav", "audio/wav", makeWAV(780))
	if res.Valid {
		t.Fatal("expected invalid for 13-minute track")
	}
	if res.Err != "Audio file must not exceed 12 minutes" {
		t.Errorf("Err = %q, want %q", res.Err, "Audio file must not exceed 12 minutes")
	}
	if res.Duration != 780 {
		t.Errorf("Duration = %v, want 780 (measured duration preserved)", res.Duration)
	}
}

func TestValidateTruncatedDataChunk(t *testing.T) {
	v := NewValidator(720)

	// Header declares 300s of audio but the upload was cut off after 10s
	// worth of payload. Duration must reflect the bytes present, not the
	// declared chunk size.
	full := makeWAV(300)
	truncated := full[:44+10*1000]

	res := v.Validate("cut.wav", "audio/wav", truncated)
	if !res.Valid {
		t.Fatalf("expected valid, got error %q", res.Err)
	}
	if res.Duration != 10 {
		t.Errorf("Duration = %v, want 10 (clamped to payload)", res.Duration)
	}
}

func TestValidateBoundaryDuration(t *testing.T) {
	v := NewValidator(720)

	// Exactly the cap is allowed.
	if res := v.Validate("edge.wav", "audio/wav", makeWAV(720)); !res.Valid {
		t.Errorf("720s track rejected: %q", res.Err)
	}
	if res := v.Validate("over.wav", "audio/wav", makeWAV(720.5)); res.Valid {
		t.Error("720.5s track accepted, want rejected")
	}
}

func TestDeclaresWAVByExtension(t *testing.T) {
	v := NewValidator(720)

	// Browsers sometimes send a generic content type; the extension still
	// declares WAV.
	res := v.Validate("track.WAV", "application/octet-stream", makeWAV(10))
	if !res.Valid {
		t.Errorf("expected valid for .WAV extension, got %q", res.Err)
	}
}
