package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.AudioBitrate != "192k" {
		t.Errorf("AudioBitrate = %q, want %q", cfg.AudioBitrate, "192k")
	}
	if cfg.HLSSegmentTime != "10" {
		t.Errorf("HLSSegmentTime = %q, want %q", cfg.HLSSegmentTime, "10")
	}
	if cfg.MaxDuration != 720 {
		t.Errorf("MaxDuration = %d, want 720", cfg.MaxDuration)
	}
	if cfg.MinioBucket != "sacraltrack" {
		t.Errorf("MinioBucket = %q, want %q", cfg.MinioBucket, "sacraltrack")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AUDIO_BITRATE", "320k")
	t.Setenv("MAX_TRACK_DURATION", "600")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := Load()

	if cfg.AudioBitrate != "320k" {
		t.Errorf("AudioBitrate = %q, want %q", cfg.AudioBitrate, "320k")
	}
	if cfg.MaxDuration != 600 {
		t.Errorf("MaxDuration = %d, want 600", cfg.MaxDuration)
	}
	if !cfg.MinioUseSSL {
		t.Error("MinioUseSSL = false, want true")
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("MAX_TRACK_DURATION", "not-a-number")

	cfg := Load()
	if cfg.MaxDuration != 720 {
		t.Errorf("MaxDuration = %d, want fallback 720", cfg.MaxDuration)
	}
}
