// Package config handles loading and validating Gray Logic Motion configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Motion lighting controller definitions
//
// Controller definitions use the lightingsm key names (entity, sensors,
// night_mode, backoff_factor ...), so existing rule files move across with
// only indentation changes.
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, c := range cfg.Lighting.Controllers {
//	    fmt.Println(c.Name)
//	}
package config
