package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure, such as an empty db_path
	// or a non-positive max_ranking_size.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps failures reading the dotenv file, the YAML file or
	// the ROCATRUN_ environment.
	ErrLoadConfig = errors.New("load config failed")
)
