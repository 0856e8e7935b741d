package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// GenerationStartedData contains data for GenerationStarted events
type GenerationStartedData struct {
	RunID     string `json:"run_id"`
	RegionID  string `json:"region_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Performer string `json:"performer"`
}

// EventType returns the event type for GenerationStartedData
func (d *GenerationStartedData) EventType() EventType {
	return GenerationStarted
}

// GenerationCompletedData contains data for GenerationCompleted events
type GenerationCompletedData struct {
	RunID              string  `json:"run_id"`
	RegionID           string  `json:"region_id"`
	SchedulesGenerated int     `json:"schedules_generated"`
	ConflictsDetected  int     `json:"conflicts_detected"`
	FairnessScore      float64 `json:"fairness_score"`
	DurationMs         int64   `json:"duration_ms"`
}

// EventType returns the event type for GenerationCompletedData
func (d *GenerationCompletedData) EventType() EventType {
	return GenerationCompleted
}

// GenerationFailedData contains data for GenerationFailed events
type GenerationFailedData struct {
	RunID    string `json:"run_id"`
	RegionID string `json:"region_id"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}

// EventType returns the event type for GenerationFailedData
func (d *GenerationFailedData) EventType() EventType {
	return GenerationFailed
}

// SwapValidatedData contains data for SwapValidated events
type SwapValidatedData struct {
	SourceAnalyst string `json:"source_analyst"`
	TargetAnalyst string `json:"target_analyst"`
	Violations    int    `json:"violations"`
	Valid         bool   `json:"valid"`
}

// EventType returns the event type for SwapValidatedData
func (d *SwapValidatedData) EventType() EventType {
	return SwapValidated
}

// CompOffCreditedData contains data for CompOffCredited events
type CompOffCreditedData struct {
	AnalystID string `json:"analyst_id"`
	Reason    string `json:"reason"`
	Date      string `json:"date,omitempty"`
	Amount    int    `json:"amount"`
}

// EventType returns the event type for CompOffCreditedData
func (d *CompOffCreditedData) EventType() EventType {
	return CompOffCredited
}

// CompOffDebitedData contains data for CompOffDebited events
type CompOffDebitedData struct {
	AnalystID string `json:"analyst_id"`
	AbsenceID string `json:"absence_id,omitempty"`
	Amount    int    `json:"amount"`
}

// EventType returns the event type for CompOffDebitedData
func (d *CompOffDebitedData) EventType() EventType {
	return CompOffDebited
}

// BalanceAdjustedData contains data for BalanceAdjusted events
type BalanceAdjustedData struct {
	AnalystID string `json:"analyst_id"`
	Performer string `json:"performer"`
	Amount    int    `json:"amount"`
	Earned    int    `json:"earned_units"`
	Used      int    `json:"used_units"`
}

// EventType returns the event type for BalanceAdjustedData
func (d *BalanceAdjustedData) EventType() EventType {
	return BalanceAdjusted
}

// RotationCycledData contains data for RotationCycled events.
// Emitted when an exhausted available pool is reseeded from the completed
// pool and the cycle generation increments.
type RotationCycledData struct {
	ShiftType       string `json:"shift_type"`
	CycleGeneration int    `json:"cycle_generation"`
	PoolSize        int    `json:"pool_size"`
}

// EventType returns the event type for RotationCycledData
func (d *RotationCycledData) EventType() EventType {
	return RotationCycled
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Kind       string `json:"kind"` // "daily", "weekly" or "s3"
	Databases  int    `json:"databases"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// SystemStatusChangedData contains data for SystemStatusChanged events
type SystemStatusChangedData struct {
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for SystemStatusChangedData
func (d *SystemStatusChangedData) EventType() EventType {
	return SystemStatusChanged
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

// JobStatusData contains data for job lifecycle events
type JobStatusData struct {
	Timestamp   time.Time `json:"timestamp"`
	JobName     string    `json:"job_name"`
	Status      string    `json:"status"` // "started", "completed", "failed"
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	Duration    float64   `json:"duration,omitempty"`
}

// EventType returns the event type for JobStatusData
// Note: The actual event type is determined by the Status field
func (d *JobStatusData) EventType() EventType {
	switch d.Status {
	case "completed":
		return JobCompleted
	case "failed":
		return JobFailed
	default:
		return JobStarted
	}
}

// EventWithData represents an event with typed data
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	// Marshal the data separately
	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Unmarshal data based on event type
	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case GenerationStarted:
			eventData = &GenerationStartedData{}
		case GenerationCompleted:
			eventData = &GenerationCompletedData{}
		case GenerationFailed:
			eventData = &GenerationFailedData{}
		case SwapValidated:
			eventData = &SwapValidatedData{}
		case CompOffCredited:
			eventData = &CompOffCreditedData{}
		case CompOffDebited:
			eventData = &CompOffDebitedData{}
		case BalanceAdjusted:
			eventData = &BalanceAdjustedData{}
		case RotationCycled:
			eventData = &RotationCycledData{}
		case BackupCompleted:
			eventData = &BackupCompletedData{}
		case SystemStatusChanged:
			eventData = &SystemStatusChangedData{}
		case ErrorOccurred:
			eventData = &ErrorEventData{}
		case JobStarted, JobCompleted, JobFailed:
			eventData = &JobStatusData{}
		default:
			// For unknown types, use raw map
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			eventData = &GenericEventData{Type: aux.Type, Data: rawData}
		}

		if eventData != nil {
			if err := json.Unmarshal(aux.Data, eventData); err != nil {
				return err
			}
			e.Data = eventData
		}
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
