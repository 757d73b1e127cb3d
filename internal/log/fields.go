package log

// Field names shared by every component.
const (
	FieldComponent = "component"
	FieldSessionID = "session_id"
	FieldAttemptID = "attempt_id"
	FieldZone      = "zone"
	FieldServerIP  = "server_ip"
	FieldAppID     = "app_id"
	FieldPhase     = "phase"
	FieldSlot      = "slot"
	FieldAttempt   = "attempt"
	FieldHost      = "host"
	FieldLatency   = "latency"
	FieldOutcome   = "outcome"
)
