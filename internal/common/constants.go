package common

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvPort           = "PORT"
	EnvClassifierPath = "CLASSIFIER_PATH"
	EnvRegressorPath  = "REGRESSOR_PATH"
	EnvDataPath       = "DATA_PATH"
	EnvACVMin         = "ACV_MIN"
	EnvACVMax         = "ACV_MAX"
	EnvDefaultRevenue = "DEFAULT_REVENUE"
	EnvDefaultB2B     = "DEFAULT_B2B"
	EnvBatchMaxSize   = "BATCH_MAX_SIZE"
	EnvBatchWorkers   = "BATCH_WORKERS"
	EnvReadTimeout    = "READ_TIMEOUT"
	EnvWriteTimeout   = "WRITE_TIMEOUT"
	EnvLogLevel       = "LOG_LEVEL"
)

// Configuration defaults
const (
	DefaultPort           = 8080
	DefaultClassifierPath = "models/classifier.json"
	DefaultRegressorPath  = "models/regressor.json"
	DefaultACVMin         = 5000.0
	DefaultACVMax         = 40000.0
	DefaultRevenue        = 80_000_000.0
	DefaultB2B            = 1
	DefaultBatchMaxSize   = 500
	DefaultBatchWorkers   = 8
)

// Validation limits
const (
	MinPort         = 1024
	MaxPort         = 65535
	MaxBatchSize    = 10000
	MaxBatchWorkers = 256
)
