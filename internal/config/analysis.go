package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Engine defaults.
const (
	DefaultMovementThreshold = 5.0
	DefaultHeatmapRadius     = 5
	DefaultHeatmapWeight     = 1.0
	DefaultBlurKernel        = 21
	DefaultLookahead         = 10
	DefaultReferenceWidth    = 1280
	DefaultReferenceHeight   = 720
)

// AnalysisConfig holds tuning for one analysis run. Nil fields fall back to
// the engine defaults through the Get* methods, so partial files are safe.
type AnalysisConfig struct {
	MovementThreshold *float64 `json:"movement_threshold,omitempty"`
	StartTime         *float64 `json:"start_time,omitempty"` // seconds, inclusive
	EndTime           *float64 `json:"end_time,omitempty"`   // seconds, inclusive
	CursorPerIdentity *bool    `json:"cursor_per_identity,omitempty"`

	Lookahead *int `json:"lookahead,omitempty"`

	HeatmapRadius *int     `json:"heatmap_radius,omitempty"`
	HeatmapWeight *float64 `json:"heatmap_weight,omitempty"`
	BlurKernel    *int     `json:"blur_kernel,omitempty"`

	// Resolution the boundary points were picked in.
	ReferenceWidth  *int `json:"reference_width,omitempty"`
	ReferenceHeight *int `json:"reference_height,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }

// EmptyAnalysisConfig returns a config with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field set to its default.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		MovementThreshold: ptrFloat64(DefaultMovementThreshold),
		CursorPerIdentity: ptrBool(false),
		Lookahead:         ptrInt(DefaultLookahead),
		HeatmapRadius:     ptrInt(DefaultHeatmapRadius),
		HeatmapWeight:     ptrFloat64(DefaultHeatmapWeight),
		BlurKernel:        ptrInt(DefaultBlurKernel),
		ReferenceWidth:    ptrInt(DefaultReferenceWidth),
		ReferenceHeight:   ptrInt(DefaultReferenceHeight),
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file. The path must
// have a .json extension and the file must be under 1MB.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *AnalysisConfig) Validate() error {
	if c.MovementThreshold != nil && (math.IsNaN(*c.MovementThreshold) || *c.MovementThreshold < 0) {
		return fmt.Errorf("movement_threshold must be non-negative, got %f", *c.MovementThreshold)
	}
	if c.StartTime != nil && !isFinite(*c.StartTime) {
		return fmt.Errorf("start_time must be a finite number, got %f", *c.StartTime)
	}
	if c.EndTime != nil && !isFinite(*c.EndTime) {
		return fmt.Errorf("end_time must be a finite number, got %f", *c.EndTime)
	}
	if c.HeatmapWeight != nil && !isFinite(*c.HeatmapWeight) {
		return fmt.Errorf("heatmap_weight must be a finite number, got %f", *c.HeatmapWeight)
	}
	if c.StartTime != nil && c.EndTime != nil && *c.EndTime < *c.StartTime {
		return fmt.Errorf("end_time %.2f is before start_time %.2f", *c.EndTime, *c.StartTime)
	}
	if c.Lookahead != nil && *c.Lookahead < 0 {
		return fmt.Errorf("lookahead must be non-negative, got %d", *c.Lookahead)
	}
	if c.HeatmapRadius != nil && *c.HeatmapRadius < 0 {
		return fmt.Errorf("heatmap_radius must be non-negative, got %d", *c.HeatmapRadius)
	}
	if c.ReferenceWidth != nil && *c.ReferenceWidth <= 0 {
		return fmt.Errorf("reference_width must be positive, got %d", *c.ReferenceWidth)
	}
	if c.ReferenceHeight != nil && *c.ReferenceHeight <= 0 {
		return fmt.Errorf("reference_height must be positive, got %d", *c.ReferenceHeight)
	}
	return nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// GetMovementThreshold returns the ankle movement threshold in pixels.
func (c *AnalysisConfig) GetMovementThreshold() float64 {
	if c.MovementThreshold == nil {
		return DefaultMovementThreshold
	}
	return *c.MovementThreshold
}

// GetCursorPerIdentity reports whether ankle cursors are kept per identity.
func (c *AnalysisConfig) GetCursorPerIdentity() bool {
	if c.CursorPerIdentity == nil {
		return false
	}
	return *c.CursorPerIdentity
}

// GetLookahead returns how many frames identity resolution scans ahead.
func (c *AnalysisConfig) GetLookahead() int {
	if c.Lookahead == nil {
		return DefaultLookahead
	}
	return *c.Lookahead
}

// GetHeatmapRadius returns the splat half-width in court units.
func (c *AnalysisConfig) GetHeatmapRadius() int {
	if c.HeatmapRadius == nil {
		return DefaultHeatmapRadius
	}
	return *c.HeatmapRadius
}

// GetHeatmapWeight returns the weight added per splatted cell.
func (c *AnalysisConfig) GetHeatmapWeight() float64 {
	if c.HeatmapWeight == nil {
		return DefaultHeatmapWeight
	}
	return *c.HeatmapWeight
}

// GetBlurKernel returns the Gaussian blur kernel size.
func (c *AnalysisConfig) GetBlurKernel() int {
	if c.BlurKernel == nil {
		return DefaultBlurKernel
	}
	return *c.BlurKernel
}

// GetReferenceSize returns the resolution the boundary points were picked in.
func (c *AnalysisConfig) GetReferenceSize() (int, int) {
	w, h := DefaultReferenceWidth, DefaultReferenceHeight
	if c.ReferenceWidth != nil {
		w = *c.ReferenceWidth
	}
	if c.ReferenceHeight != nil {
		h = *c.ReferenceHeight
	}
	return w, h
}

// Resolved returns a copy with every unset field filled from the defaults.
// The time window stays unset when it was not given.
func (c *AnalysisConfig) Resolved() *AnalysisConfig {
	refW, refH := c.GetReferenceSize()
	r := &AnalysisConfig{
		MovementThreshold: ptrFloat64(c.GetMovementThreshold()),
		CursorPerIdentity: ptrBool(c.GetCursorPerIdentity()),
		Lookahead:         ptrInt(c.GetLookahead()),
		HeatmapRadius:     ptrInt(c.GetHeatmapRadius()),
		HeatmapWeight:     ptrFloat64(c.GetHeatmapWeight()),
		BlurKernel:        ptrInt(c.GetBlurKernel()),
		ReferenceWidth:    ptrInt(refW),
		ReferenceHeight:   ptrInt(refH),
	}
	if c.StartTime != nil {
		r.StartTime = ptrFloat64(*c.StartTime)
	}
	if c.EndTime != nil {
		r.EndTime = ptrFloat64(*c.EndTime)
	}
	return r
}

// CacheKey identifies one analysis run: the input hash, the native video
// size and every effective tuning value. Configs that differ only in
// whether a default was spelled out produce the same key.
func (c *AnalysisConfig) CacheKey(inputHash string, nativeW, nativeH int) (string, error) {
	params, err := json.Marshal(c.Resolved())
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%dx%d\n", inputHash, nativeW, nativeH)
	h.Write(params)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// SetMovementThreshold, SetWindow and SetCursorPerIdentity let CLI flags
// override file values.
func (c *AnalysisConfig) SetMovementThreshold(v float64) { c.MovementThreshold = ptrFloat64(v) }

func (c *AnalysisConfig) SetWindow(start, end *float64) {
	if start != nil {
		c.StartTime = ptrFloat64(*start)
	}
	if end != nil {
		c.EndTime = ptrFloat64(*end)
	}
}

func (c *AnalysisConfig) SetCursorPerIdentity(v bool) { c.CursorPerIdentity = ptrBool(v) }
