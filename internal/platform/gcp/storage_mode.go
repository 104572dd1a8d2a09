package gcp

import (
	"fmt"
	"net/url"
	"strings"
)

type StorageMode string

const (
	StorageModeGCS      StorageMode = "gcs"
	StorageModeEmulator StorageMode = "gcs_emulator"
)

// StorageConfig selects the backend for uploaded room images.
type StorageConfig struct {
	Mode          StorageMode
	EmulatorHost  string
	Bucket        string
	CDNDomain     string
	PublicBaseURL string

	// ModeInferred is set when the mode came from STORAGE_EMULATOR_HOST alone.
	ModeInferred bool
}

type StorageConfigError struct {
	Field string
	Value string
	Cause error
}

func (e *StorageConfigError) Error() string {
	switch e.Field {
	case "mode":
		return fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", e.Value, StorageModeGCS, StorageModeEmulator)
	case "emulator_host":
		if e.Value == "" {
			return fmt.Sprintf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST", StorageModeEmulator)
		}
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", e.Value)
	case "bucket":
		return "missing UPLOAD_GCS_BUCKET_NAME"
	case "public_base_url":
		return fmt.Sprintf("invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL", e.Value)
	default:
		return "invalid object storage config"
	}
}

func (e *StorageConfigError) Unwrap() error { return e.Cause }

// ResolveStorageConfig normalizes raw settings. A blank mode falls back to
// the emulator when an emulator host is present.
func ResolveStorageConfig(rawMode, emulatorHost, bucket, cdnDomain, publicBaseURL string) (StorageConfig, error) {
	cfg := StorageConfig{
		EmulatorHost:  strings.TrimRight(strings.TrimSpace(emulatorHost), "/"),
		Bucket:        strings.TrimSpace(bucket),
		CDNDomain:     strings.Trim(strings.TrimSpace(cdnDomain), "/"),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
	switch mode := StorageMode(strings.ToLower(strings.TrimSpace(rawMode))); mode {
	case "":
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeEmulator
			cfg.ModeInferred = true
		}
	case StorageModeGCS, StorageModeEmulator:
		cfg.Mode = mode
	default:
		return cfg, &StorageConfigError{Field: "mode", Value: rawMode}
	}
	return cfg, cfg.Validate()
}

func (cfg StorageConfig) Validate() error {
	if cfg.Mode != StorageModeGCS && cfg.Mode != StorageModeEmulator {
		return &StorageConfigError{Field: "mode", Value: string(cfg.Mode)}
	}
	if cfg.Bucket == "" {
		return &StorageConfigError{Field: "bucket"}
	}
	if cfg.PublicBaseURL != "" && !absoluteURL(cfg.PublicBaseURL) {
		return &StorageConfigError{Field: "public_base_url", Value: cfg.PublicBaseURL}
	}
	if cfg.Mode != StorageModeEmulator {
		return nil
	}
	if cfg.EmulatorHost == "" || !absoluteURL(cfg.EmulatorHost) {
		return &StorageConfigError{Field: "emulator_host", Value: cfg.EmulatorHost}
	}
	return nil
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && strings.TrimSpace(u.Scheme) != "" && strings.TrimSpace(u.Host) != ""
}
