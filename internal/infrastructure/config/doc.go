// Package config handles loading and validating the scheduler configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The defaults reproduce a standalone smart-home controller: a local SQLite
// file, a one second scheduler poll, MQTT and InfluxDB disabled.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Scheduler.PollInterval)
package config
