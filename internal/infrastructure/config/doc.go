// Package config loads the scene rotator's YAML configuration.
//
// Values are resolved in three layers: Default, then the YAML file, then
// SCENEROTATOR_* environment variables. Keep the OBS websocket password,
// MQTT credentials, InfluxDB token and JWT secret in the environment
// rather than in a committed file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	interval := time.Duration(cfg.Rotation.IntervalMS) * time.Millisecond
package config
