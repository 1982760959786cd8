// Package config provides configuration parsing for vreconcile.
//
// The configuration is stored in vreconcile.json (or vreconcile.yaml) in
// the working directory or one of its parents. This package handles
// loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "log": {"level": "debug", "format": "text"},
//	  "metrics": {"enabled": true, "namespace": "vreconcile"},
//	  "snapshot": {
//	    "driver": "bolt",
//	    "path": ".vreconcile/history.db"
//	  },
//	  "serve": {
//	    "addr": ":8080",
//	    "readTimeout": "60s",
//	    "allowedOrigins": ["https://example.com"]
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	logger := slog.New(cfg.LogHandler(os.Stderr))
package config
