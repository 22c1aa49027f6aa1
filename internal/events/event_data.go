package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// WeeklyCycleStartedData contains data for WeeklyCycleStarted events
type WeeklyCycleStartedData struct {
	StrategyVersion string `json:"strategy_version"`
	Instruments     int    `json:"instruments"`
	Watermark       int64  `json:"watermark"`
}

// EventType returns the event type for WeeklyCycleStartedData
func (d *WeeklyCycleStartedData) EventType() EventType {
	return WeeklyCycleStarted
}

// InstrumentResolvedData contains data for InstrumentResolved events
type InstrumentResolvedData struct {
	Ticker           string `json:"ticker"`
	StrategyVersion  string `json:"strategy_version"`
	EvaluationLayer  string `json:"evaluation_layer"`
	Orders           int    `json:"orders"`
	Violations       int    `json:"violations"`
	AlreadyCommitted bool   `json:"already_committed,omitempty"`
}

// EventType returns the event type for InstrumentResolvedData
func (d *InstrumentResolvedData) EventType() EventType {
	return InstrumentResolved
}

// InstrumentFailedData contains data for InstrumentFailed events
type InstrumentFailedData struct {
	Ticker          string `json:"ticker"`
	StrategyVersion string `json:"strategy_version"`
	Error           string `json:"error"`
}

// EventType returns the event type for InstrumentFailedData
func (d *InstrumentFailedData) EventType() EventType {
	return InstrumentFailed
}

// SafetyLockTriggeredData contains data for SafetyLockTriggered events
type SafetyLockTriggeredData struct {
	Ticker        string  `json:"ticker"`
	MortalityRate float64 `json:"mortality_rate"`
	MaxExposure   float64 `json:"max_exposure"`
	Analogues     int     `json:"analogues"`
}

// EventType returns the event type for SafetyLockTriggeredData
func (d *SafetyLockTriggeredData) EventType() EventType {
	return SafetyLockTriggered
}

// WeeklyCycleCompletedData contains data for WeeklyCycleCompleted events
type WeeklyCycleCompletedData struct {
	StrategyVersion string  `json:"strategy_version"`
	Resolved        int     `json:"resolved"`
	Skipped         int     `json:"skipped"`
	Failed          int     `json:"failed"`
	DurationMs      float64 `json:"duration_ms"`
}

// EventType returns the event type for WeeklyCycleCompletedData
func (d *WeeklyCycleCompletedData) EventType() EventType {
	return WeeklyCycleCompleted
}

// WeeklyArchivedData contains data for WeeklyArchived events
type WeeklyArchivedData struct {
	StrategyVersion string `json:"strategy_version"`
	Key             string `json:"key"`
	SizeBytes       int64  `json:"size_bytes"`
}

// EventType returns the event type for WeeklyArchivedData
func (d *WeeklyArchivedData) EventType() EventType {
	return WeeklyArchived
}

// HumanLockChangedData contains data for HumanLockChanged events
type HumanLockChangedData struct {
	Ticker string `json:"ticker"`
	Locked bool   `json:"locked"`
	Action string `json:"action,omitempty"`
}

// EventType returns the event type for HumanLockChangedData
func (d *HumanLockChangedData) EventType() EventType {
	return HumanLockChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
