package config

const (
	defaultConfigPath           = "~/.config/drugscreen/config.toml"
	defaultDataDir              = "~/.local/share/drugscreen"
	defaultLogDir               = "~/.local/share/drugscreen/logs"
	defaultEnvFile              = "~/.config/drugscreen/.env"
	defaultAPIBind              = "127.0.0.1:7610"
	defaultDocumentsRoot        = "~/.local/share/drugscreen/documents"
	defaultS3Region             = "us-east-1"
	defaultEmailAPIURL          = "https://api.resend.com"
	defaultEmailFrom            = "results@drugscreen.invalid"
	defaultEmailSendDelayMS     = 600
	defaultEmailRequestTimeout  = 15
	defaultEmailTestAddress     = "testing@drugscreen.invalid"
	defaultAlertsRequestTimeout = 10
	defaultNotifyPollInterval   = 5
	defaultNotifyBatchSize      = 25
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Document backend identifiers.
const (
	DocumentsDriverFS     = "fs"
	DocumentsDriverS3     = "s3"
	DocumentsDriverMemory = "memory"
)

// Email transport identifiers.
const (
	EmailTransportHTTP = "http"
	EmailTransportLog  = "log"
)

// Notification dispatch modes.
const (
	DispatchInline = "inline"
	DispatchWorker = "worker"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			EnvFile: defaultEnvFile,
			APIBind: defaultAPIBind,
		},
		Documents: Documents{
			Driver:   DocumentsDriverFS,
			FSRoot:   defaultDocumentsRoot,
			S3Region: defaultS3Region,
		},
		Email: Email{
			Transport:      EmailTransportHTTP,
			APIURL:         defaultEmailAPIURL,
			From:           defaultEmailFrom,
			SendDelayMS:    defaultEmailSendDelayMS,
			RequestTimeout: defaultEmailRequestTimeout,
			TestAddress:    defaultEmailTestAddress,
		},
		Alerts: Alerts{
			RequestTimeout: defaultAlertsRequestTimeout,
		},
		Notifications: Notifications{
			Enabled:      true,
			DispatchMode: DispatchInline,
			PollInterval: defaultNotifyPollInterval,
			BatchSize:    defaultNotifyBatchSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
