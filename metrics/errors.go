package metrics

// Error kinds for the Errors counter.
const (
	ProvisionPackageError = "provision_package"
	WriteSourcesError     = "write_sources"
	EngineStageError      = "engine_stage"
	ParseAlertError       = "parse_alert"
	DeliverAlertError     = "deliver_alert"
	MarkSentError         = "mark_sent"
	ReloadConfigError     = "reload_config"
)
