package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// fileConfig is the HCL shape of a config file. Every attribute is optional;
// absent attributes keep the profile defaults.
type fileConfig struct {
	ServiceName         *string  `hcl:"service_name,optional"`
	HTTPAddr            *string  `hcl:"http_addr,optional"`
	StoreEngine         *string  `hcl:"store_engine,optional"`
	StorePreviewRows    *int     `hcl:"store_preview_rows,optional"`
	UploadMaxBytes      *int64   `hcl:"upload_max_bytes,optional"`
	SessionIdleTTL      *string  `hcl:"session_idle_ttl,optional"`
	SessionMax          *int     `hcl:"session_max,optional"`
	SessionSweep        *string  `hcl:"session_sweep_interval,optional"`
	QueryReadOnly       *bool    `hcl:"query_read_only,optional"`
	QueryMaxRows        *int     `hcl:"query_max_rows,optional"`
	AIBaseURL           *string  `hcl:"ai_base_url,optional"`
	AIModel             *string  `hcl:"ai_model,optional"`
	AITemperature       *float64 `hcl:"ai_temperature,optional"`
	AITimeout           *string  `hcl:"ai_timeout,optional"`
	AIStripFences       *bool    `hcl:"ai_strip_fences,optional"`
	ObjectStoreEnabled  *bool    `hcl:"objectstore_enabled,optional"`
	ObjectStoreEndpoint *string  `hcl:"objectstore_endpoint,optional"`
	ObjectStoreBucket   *string  `hcl:"objectstore_bucket,optional"`
	ObjectStorePrefix   *string  `hcl:"objectstore_prefix,optional"`
	ObjectStoreCreate   *bool    `hcl:"objectstore_auto_create_bucket,optional"`
	LogLevel            *string  `hcl:"log_level,optional"`
	LogJSON             *bool    `hcl:"log_json,optional"`
	AuthRequired        *bool    `hcl:"auth_required,optional"`
}

// LoadFile returns the profile defaults overlaid with the HCL file at path.
func LoadFile(path string, profile Profile) (Config, error) {
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid profile: %q", profile)
	}
	cfg := defaultsForProfile(profile)
	if err := applyFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(content, path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config file: %s", diags.Error())
	}

	var fc fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &fc)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode config: %s", diags.Error())
	}

	setValue(fc.ServiceName, &cfg.Service.Name)
	setValue(fc.HTTPAddr, &cfg.HTTP.Address)
	setValue(fc.StoreEngine, &cfg.Store.Engine)
	setValue(fc.StorePreviewRows, &cfg.Store.PreviewRows)
	setValue(fc.UploadMaxBytes, &cfg.Upload.MaxBytes)
	if err := setDuration(fc.SessionIdleTTL, "session_idle_ttl", &cfg.Session.IdleTTL); err != nil {
		return err
	}
	setValue(fc.SessionMax, &cfg.Session.MaxSessions)
	if err := setDuration(fc.SessionSweep, "session_sweep_interval", &cfg.Session.SweepInterval); err != nil {
		return err
	}
	setValue(fc.QueryReadOnly, &cfg.Query.ReadOnly)
	setValue(fc.QueryMaxRows, &cfg.Query.MaxRows)
	setValue(fc.AIBaseURL, &cfg.AI.BaseURL)
	setValue(fc.AIModel, &cfg.AI.Model)
	setValue(fc.AITemperature, &cfg.AI.Temperature)
	if err := setDuration(fc.AITimeout, "ai_timeout", &cfg.AI.Timeout); err != nil {
		return err
	}
	setValue(fc.AIStripFences, &cfg.AI.StripFences)
	setValue(fc.ObjectStoreEnabled, &cfg.ObjectStore.Enabled)
	setValue(fc.ObjectStoreEndpoint, &cfg.ObjectStore.Endpoint)
	setValue(fc.ObjectStoreBucket, &cfg.ObjectStore.Bucket)
	setValue(fc.ObjectStorePrefix, &cfg.ObjectStore.Prefix)
	setValue(fc.ObjectStoreCreate, &cfg.ObjectStore.AutoCreateBucket)
	if fc.LogLevel != nil {
		level, err := parseLogLevel(*fc.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log_level: %w", err)
		}
		cfg.Observability.LogLevel = level
	}
	setValue(fc.LogJSON, &cfg.Observability.LogJSON)
	setValue(fc.AuthRequired, &cfg.Auth.Required)
	return nil
}

// Export writes the non-secret parts of cfg to path in HCL format.
func Export(path string, cfg Config) error {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	root.SetAttributeValue("service_name", cty.StringVal(cfg.Service.Name))
	root.SetAttributeValue("http_addr", cty.StringVal(cfg.HTTP.Address))
	root.SetAttributeValue("store_engine", cty.StringVal(cfg.Store.Engine))
	root.SetAttributeValue("store_preview_rows", cty.NumberIntVal(int64(cfg.Store.PreviewRows)))
	root.SetAttributeValue("upload_max_bytes", cty.NumberIntVal(cfg.Upload.MaxBytes))
	root.SetAttributeValue("session_idle_ttl", cty.StringVal(cfg.Session.IdleTTL.String()))
	root.SetAttributeValue("session_max", cty.NumberIntVal(int64(cfg.Session.MaxSessions)))
	root.SetAttributeValue("session_sweep_interval", cty.StringVal(cfg.Session.SweepInterval.String()))
	root.SetAttributeValue("query_read_only", cty.BoolVal(cfg.Query.ReadOnly))
	root.SetAttributeValue("query_max_rows", cty.NumberIntVal(int64(cfg.Query.MaxRows)))
	root.SetAttributeValue("ai_base_url", cty.StringVal(cfg.AI.BaseURL))
	root.SetAttributeValue("ai_model", cty.StringVal(cfg.AI.Model))
	root.SetAttributeValue("ai_temperature", cty.NumberFloatVal(cfg.AI.Temperature))
	root.SetAttributeValue("ai_timeout", cty.StringVal(cfg.AI.Timeout.String()))
	root.SetAttributeValue("ai_strip_fences", cty.BoolVal(cfg.AI.StripFences))
	root.SetAttributeValue("objectstore_enabled", cty.BoolVal(cfg.ObjectStore.Enabled))
	root.SetAttributeValue("objectstore_endpoint", cty.StringVal(cfg.ObjectStore.Endpoint))
	root.SetAttributeValue("objectstore_bucket", cty.StringVal(cfg.ObjectStore.Bucket))
	root.SetAttributeValue("objectstore_prefix", cty.StringVal(cfg.ObjectStore.Prefix))
	root.SetAttributeValue("objectstore_auto_create_bucket", cty.BoolVal(cfg.ObjectStore.AutoCreateBucket))
	root.SetAttributeValue("log_level", cty.StringVal(levelName(cfg.Observability.LogLevel)))
	root.SetAttributeValue("log_json", cty.BoolVal(cfg.Observability.LogJSON))
	root.SetAttributeValue("auth_required", cty.BoolVal(cfg.Auth.Required))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(f.Bytes()); err != nil {
		return fmt.Errorf("failed to write config to file: %w", err)
	}
	return nil
}

func setValue[T any](src *T, dst *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(src *string, name string, dst *time.Duration) error {
	if src == nil {
		return nil
	}
	value, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = value
	return nil
}

func levelName(level slog.Level) string {
	switch {
	case level <= slog.LevelDebug:
		return "debug"
	case level <= slog.LevelInfo:
		return "info"
	case level <= slog.LevelWarn:
		return "warn"
	default:
		return "error"
	}
}
