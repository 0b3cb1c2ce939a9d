package audio

import (
	"encoding/binary"
	"strings"
)

// Validation error messages surfaced to the uploader.
const (
	errNotWAV           = "Please upload a WAV file"
	errInvalidWAV       = "Invalid WAV file format"
	errDurationExceeded = "Audio file must not exceed 12 minutes"
)

// ValidationResult reports the outcome of inspecting an uploaded file.
// Invalid input is an expected condition, so it is a value, not an error.
type ValidationResult struct {
	Valid    bool    `json:"valid"`
	Err      string  `json:"error,omitempty"`
	Duration float64 `json:"duration,omitempty"` // measured seconds, when decodable
}

// Validator inspects uploaded source audio before any network call is made.
type Validator struct {
	maxDuration float64 // seconds
}

// NewValidator creates a Validator with the given duration cap in seconds.
func NewValidator(maxDuration float64) *Validator {
	return &Validator{maxDuration: maxDuration}
}

// Validate checks the declared container type and decodes the WAV header to
// measure duration. It has no side effects.
func (v *Validator) Validate(filename, contentType string, data []byte) ValidationResult {
	if !declaresWAV(filename, contentType) {
		return ValidationResult{Valid: false, Err: errNotWAV}
	}

	duration, ok := wavDuration(data)
	if !ok {
		return ValidationResult{Valid: false, Err: errInvalidWAV}
	}

	if duration > v.maxDuration {
		return ValidationResult{Valid: false, Err: errDurationExceeded, Duration: duration}
	}

	return ValidationResult{Valid: true, Duration: duration}
}

// declaresWAV reports whether the upload claims to be a WAV container.
func declaresWAV(filename, contentType string) bool {
	switch contentType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return true
	}
	return strings.HasSuffix(strings.ToLower(filename), ".wav")
}

// wavDuration parses the RIFF/WAVE header and returns the duration of the
// data chunk in seconds. Returns ok=false on any malformed input.
func wavDuration(data []byte) (float64, bool) {
	if len(data) < 12 {
		return 0, false
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, false
	}

	var byteRate uint32
	var dataSize uint32
	haveFmt := false
	haveData := false

	// Walk the chunk list. Chunks are word-aligned.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(data) {
				return 0, false
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			haveFmt = true
		case "data":
			dataSize = chunkSize
			// A truncated upload can declare more audio than it carries;
			// duration comes from the bytes actually present.
			if avail := uint64(len(data) - body); uint64(dataSize) > avail {
				dataSize = uint32(avail)
			}
			haveData = true
		}

		if haveFmt && haveData {
			break
		}

		next := body + int(chunkSize)
		if chunkSize%2 == 1 {
			next++ // pad byte
		}
		if next <= offset {
			return 0, false
		}
		offset = next
	}

	if !haveFmt || !haveData || byteRate == 0 {
		return 0, false
	}

	return float64(dataSize) / float64(byteRate), true
}
