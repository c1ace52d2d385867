package sat

import (
	"fmt"
	"time"

	"github.com/mxsuite/backend/internal/domain/shared"
)

// Direction indicates whether documents were issued or received by the business
type Direction string

const (
	DirectionIssued   Direction = "emitido"
	DirectionReceived Direction = "recibido"
)

// IsValid checks if the direction is a valid Direction
func (d Direction) IsValid() bool {
	return d == DirectionIssued || d == DirectionReceived
}

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// DownloadStatus represents the lifecycle status of a download request.
// The values are the ones persisted and shown to operators.
type DownloadStatus string

const (
	StatusPending    DownloadStatus = "pendiente"
	StatusRequested  DownloadStatus = "solicitado"
	StatusWaiting    DownloadStatus = "esperando"
	StatusReady      DownloadStatus = "listo"
	StatusProcessing DownloadStatus = "procesando"
	StatusCompleted  DownloadStatus = "completado"
	StatusError      DownloadStatus = "error"
	StatusPaused     DownloadStatus = "pausado"
	StatusCancelled  DownloadStatus = "cancelado"
)

// IsValid checks if the status is a valid DownloadStatus
func (s DownloadStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRequested, StatusWaiting, StatusReady,
		StatusProcessing, StatusCompleted, StatusError, StatusPaused, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of DownloadStatus
func (s DownloadStatus) String() string {
	return string(s)
}

// IsTerminal returns true for states that end the lifecycle
func (s DownloadStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s DownloadStatus) CanTransitionTo(target DownloadStatus) bool {
	switch s {
	case StatusPending:
		return target == StatusRequested || target == StatusPaused || target == StatusError || target == StatusCancelled
	case StatusRequested:
		return target == StatusWaiting || target == StatusReady || target == StatusPaused || target == StatusError || target == StatusCancelled
	case StatusWaiting:
		return target == StatusWaiting || target == StatusReady || target == StatusPaused || target == StatusError || target == StatusPending || target == StatusCancelled
	case StatusReady:
		return target == StatusProcessing || target == StatusError || target == StatusPaused
	case StatusProcessing:
		return target == StatusCompleted || target == StatusError
	case StatusError:
		return target == StatusRequested || target == StatusWaiting || target == StatusReady || target == StatusPending || target == StatusCancelled
	case StatusPaused:
		return target == StatusRequested || target == StatusWaiting || target == StatusReady || target == StatusPending || target == StatusCancelled
	case StatusCompleted, StatusCancelled:
		return false
	}
	return false
}

// TriggerAction is an operator- or scheduler-initiated action on a request
type TriggerAction string

const (
	ActionRequest TriggerAction = "request"
	ActionVerify  TriggerAction = "verify"
	ActionRecheck TriggerAction = "recheck"
)

// IsValid checks if the action is a valid TriggerAction
func (a TriggerAction) IsValid() bool {
	return a == ActionRequest || a == ActionVerify || a == ActionRecheck
}

// allowedSources maps each action to the statuses it may be triggered from.
// recheck deliberately overlaps verify but is also reachable from error and
// paused so operators can re-poll without discarding counters.
var allowedSources = map[TriggerAction][]DownloadStatus{
	ActionRequest: {StatusPending, StatusPaused, StatusError},
	ActionVerify:  {StatusRequested, StatusWaiting},
	ActionRecheck: {StatusRequested, StatusWaiting, StatusError, StatusPaused},
}

// ThrottleKind classifies why the remote service imposed a wait
type ThrottleKind string

const (
	ThrottleDailyQuota  ThrottleKind = "daily_quota"
	ThrottleMinuteQuota ThrottleKind = "minute_quota"
)

// RequestErrors is the structured error bag attached to a download request.
// Each field is an independent diagnostic kind; new kinds are added as fields
// so the bag stays enumerable instead of a free-form map.
type RequestErrors struct {
	// Duplicates lists fiscal UUIDs that already existed in the document store
	Duplicates []string `json:"duplicates,omitempty"`
	// Malformed lists fiscal UUIDs whose staged payload could not be parsed
	Malformed []string `json:"malformed,omitempty"`
}

// AddDuplicate records a duplicate fiscal UUID, skipping repeats
func (e *RequestErrors) AddDuplicate(fiscalUUID string) {
	if e.HasDuplicate(fiscalUUID) {
		return
	}
	e.Duplicates = append(e.Duplicates, fiscalUUID)
}

// HasDuplicate reports whether the fiscal UUID is already recorded as a duplicate
func (e *RequestErrors) HasDuplicate(fiscalUUID string) bool {
	for _, d := range e.Duplicates {
		if d == fiscalUUID {
			return true
		}
	}
	return false
}

// AddMalformed records a fiscal UUID whose payload failed to parse
func (e *RequestErrors) AddMalformed(fiscalUUID string) {
	if e.HasMalformed(fiscalUUID) {
		return
	}
	e.Malformed = append(e.Malformed, fiscalUUID)
}

// HasMalformed reports whether the fiscal UUID is already recorded as malformed
func (e *RequestErrors) HasMalformed(fiscalUUID string) bool {
	for _, m := range e.Malformed {
		if m == fiscalUUID {
			return true
		}
	}
	return false
}

// IsEmpty returns true when no diagnostics have been recorded
func (e *RequestErrors) IsEmpty() bool {
	return len(e.Duplicates) == 0 && len(e.Malformed) == 0
}

// DownloadRequest is the aggregate root for one bulk-download sub-range.
// It owns the remote correlation handle, the lifecycle status and the
// outcome counters; every mutation goes through a guarded transition.
type DownloadRequest struct {
	shared.BaseAggregateRoot
	Direction   Direction
	PeriodStart time.Time
	PeriodEnd   time.Time

	// RequestID is the opaque handle issued by the remote service.
	// Empty until a request action succeeds, immutable afterwards.
	RequestID string

	Status       DownloadStatus
	RetryCount   int
	NextRetryAt  *time.Time
	ThrottleKind *ThrottleKind

	TotalDocuments     int
	InsertedDocuments  int
	DuplicateDocuments int
	ErrorDocuments     int

	LastError string
	Errors    RequestErrors

	// CancelRequested marks a deferred cancel issued while a job was in flight
	CancelRequested bool

	RequestedAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// NewDownloadRequest creates a new download request in pending status
func NewDownloadRequest(direction Direction, periodStart, periodEnd time.Time) (*DownloadRequest, error) {
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", fmt.Sprintf("Invalid direction: %s", direction))
	}
	if periodStart.IsZero() || periodEnd.IsZero() {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period start and end are required")
	}
	if periodStart.After(periodEnd) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period start cannot be after period end")
	}

	req := &DownloadRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Direction:         direction,
		PeriodStart:       periodStart,
		PeriodEnd:         periodEnd,
		Status:            StatusPending,
	}

	req.AddDomainEvent(NewDownloadRequestCreatedEvent(req))

	return req, nil
}

// CanTrigger returns nil if the given action may run from the current status
func (r *DownloadRequest) CanTrigger(action TriggerAction) error {
	if !action.IsValid() {
		return shared.NewDomainError("INVALID_ACTION", fmt.Sprintf("Unknown action: %s", action))
	}
	if r.CancelRequested {
		return shared.NewDomainError("INVALID_STATE", "Request has a pending cancellation")
	}
	for _, s := range allowedSources[action] {
		if r.Status == s {
			return nil
		}
	}
	return shared.NewDomainError("INVALID_STATE",
		fmt.Sprintf("Action %s is not allowed in %s status", action, r.Status))
}

// MarkRequested records a successful remote request and assigns the handle.
// The handle is immutable: a request that already holds one cannot be
// re-requested, only verified or rechecked.
func (r *DownloadRequest) MarkRequested(remoteID string) error {
	if remoteID == "" {
		return shared.NewDomainError("INVALID_REQUEST_ID", "Remote request ID cannot be empty")
	}
	if r.RequestID != "" {
		return shared.NewDomainError("REQUEST_ID_ASSIGNED", "Remote request ID is already assigned")
	}
	if !r.Status.CanTransitionTo(StatusRequested) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark requested in %s status", r.Status))
	}

	now := time.Now()
	r.RequestID = remoteID
	r.Status = StatusRequested
	r.RequestedAt = &now
	r.LastError = ""
	r.NextRetryAt = nil
	r.ThrottleKind = nil
	r.UpdatedAt = now

	r.AddDomainEvent(NewPackageRequestedEvent(r))

	return nil
}

// MarkWaiting records that the remote service has not built the package yet.
// Retry count is untouched: waiting is not a failure.
func (r *DownloadRequest) MarkWaiting() error {
	if !r.Status.CanTransitionTo(StatusWaiting) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark waiting in %s status", r.Status))
	}
	r.Status = StatusWaiting
	r.LastError = ""
	r.UpdatedAt = time.Now()
	return nil
}

// MarkReady records that the remote package is available for download
func (r *DownloadRequest) MarkReady() error {
	if r.RequestID == "" {
		return shared.NewDomainError("INVALID_STATE", "Cannot be ready without a remote request ID")
	}
	if !r.Status.CanTransitionTo(StatusReady) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark ready in %s status", r.Status))
	}
	r.Status = StatusReady
	r.LastError = ""
	r.NextRetryAt = nil
	r.ThrottleKind = nil
	r.UpdatedAt = time.Now()
	return nil
}

// StartProcessing marks the fetch/stage step as in progress
func (r *DownloadRequest) StartProcessing() error {
	if !r.Status.CanTransitionTo(StatusProcessing) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot start processing in %s status", r.Status))
	}
	r.Status = StatusProcessing
	r.UpdatedAt = time.Now()
	return nil
}

// CompleteFetch records the fetched package size and finishes the remote
// protocol. Unreadable documents count as errors but do not block completion.
func (r *DownloadRequest) CompleteFetch(totalDocuments, unreadable int) error {
	if totalDocuments < 0 || unreadable < 0 || unreadable > totalDocuments {
		return shared.NewDomainError("INVALID_COUNT", "Invalid document counts")
	}
	if !r.Status.CanTransitionTo(StatusCompleted) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete in %s status", r.Status))
	}

	now := time.Now()
	r.TotalDocuments = totalDocuments
	r.ErrorDocuments += unreadable
	r.Status = StatusCompleted
	r.CompletedAt = &now
	r.LastError = ""
	r.NextRetryAt = nil
	r.ThrottleKind = nil
	r.UpdatedAt = now

	r.AddDomainEvent(NewDownloadCompletedEvent(r))

	return nil
}

// CompleteEmpty finishes a request for which the remote service reported
// no documents. No handle is ever assigned in this path.
func (r *DownloadRequest) CompleteEmpty() error {
	switch r.Status {
	case StatusPending, StatusPaused, StatusError:
	default:
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete empty in %s status", r.Status))
	}

	now := time.Now()
	r.Status = StatusCompleted
	r.TotalDocuments = 0
	r.CompletedAt = &now
	r.LastError = ""
	r.NextRetryAt = nil
	r.ThrottleKind = nil
	r.UpdatedAt = now

	r.AddDomainEvent(NewDownloadCompletedEvent(r))

	return nil
}

// FailTransient records a retryable failure. nextRetryAt is nil when the
// retry ceiling has been reached, which makes the error terminal until an
// operator resets the request.
func (r *DownloadRequest) FailTransient(message string, nextRetryAt *time.Time) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail in %s status", r.Status))
	}
	if nextRetryAt != nil && r.NextRetryAt != nil && !nextRetryAt.After(*r.NextRetryAt) {
		return shared.NewDomainError("INVALID_RETRY_TIME", "Next retry must be later than the previous one")
	}

	r.Status = StatusError
	r.RetryCount++
	r.NextRetryAt = nextRetryAt
	r.LastError = message
	r.UpdatedAt = time.Now()

	r.AddDomainEvent(NewDownloadFailedEvent(r, false))

	return nil
}

// FailPermanent records a non-retryable failure requiring operator reset
func (r *DownloadRequest) FailPermanent(message string) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail in %s status", r.Status))
	}

	r.Status = StatusError
	r.NextRetryAt = nil
	r.LastError = message
	r.UpdatedAt = time.Now()

	r.AddDomainEvent(NewDownloadFailedEvent(r, true))

	return nil
}

// Throttle pauses the request after a remote rate-limit rejection.
// Retry count is untouched so throttling never burns retry budget.
func (r *DownloadRequest) Throttle(kind ThrottleKind, resumeAt time.Time) error {
	if !r.Status.CanTransitionTo(StatusPaused) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot pause in %s status", r.Status))
	}

	r.Status = StatusPaused
	r.ThrottleKind = &kind
	r.NextRetryAt = &resumeAt
	r.LastError = fmt.Sprintf("Remote service throttled the request (%s)", kind)
	r.UpdatedAt = time.Now()

	r.AddDomainEvent(NewDownloadPausedEvent(r))

	return nil
}

// RequestCancel cancels the request, or defers the cancellation when a job
// is in flight (processing). The scheduler applies deferred cancels after
// the running job finishes.
func (r *DownloadRequest) RequestCancel() error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel in %s status", r.Status))
	}
	if r.Status == StatusProcessing || r.Status == StatusReady {
		r.CancelRequested = true
		r.UpdatedAt = time.Now()
		return nil
	}
	return r.Cancel()
}

// Cancel marks the request as cancelled
func (r *DownloadRequest) Cancel() error {
	if !r.Status.CanTransitionTo(StatusCancelled) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel in %s status", r.Status))
	}
	now := time.Now()
	r.Status = StatusCancelled
	r.CancelRequested = false
	r.CancelledAt = &now
	r.NextRetryAt = nil
	r.UpdatedAt = now
	return nil
}

// ResetForRetry clears the retry bookkeeping and forces the request back to
// pending. Counters are preserved: reset re-arms the protocol, it does not
// rewrite history.
func (r *DownloadRequest) ResetForRetry() error {
	if r.Status != StatusPaused && r.Status != StatusWaiting && r.Status != StatusError {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot reset request in %s status", r.Status))
	}

	r.Status = StatusPending
	r.RetryCount = 0
	r.NextRetryAt = nil
	r.ThrottleKind = nil
	r.LastError = ""
	r.CancelRequested = false
	r.UpdatedAt = time.Now()

	r.AddDomainEvent(NewRequestResetEvent(r))

	return nil
}

// RecordImport folds an import batch outcome into the counters and the
// error bag. The counter invariant inserted+duplicate+error <= total is
// enforced once the total is known.
func (r *DownloadRequest) RecordImport(inserted, duplicates, malformed int, duplicateUUIDs, malformedUUIDs []string) error {
	if inserted < 0 || duplicates < 0 || malformed < 0 {
		return shared.NewDomainError("INVALID_COUNT", "Import counts cannot be negative")
	}

	newInserted := r.InsertedDocuments + inserted
	newDuplicates := r.DuplicateDocuments + duplicates
	newErrors := r.ErrorDocuments + malformed
	if r.TotalDocuments > 0 && newInserted+newDuplicates+newErrors > r.TotalDocuments {
		return shared.NewDomainError("COUNTER_OVERFLOW",
			"Import counters would exceed the total document count")
	}

	r.InsertedDocuments = newInserted
	r.DuplicateDocuments = newDuplicates
	r.ErrorDocuments = newErrors
	for _, id := range duplicateUUIDs {
		r.Errors.AddDuplicate(id)
	}
	for _, id := range malformedUUIDs {
		r.Errors.AddMalformed(id)
	}
	r.UpdatedAt = time.Now()

	return nil
}

// CanDelete returns true when the request holds no in-flight work
func (r *DownloadRequest) CanDelete() bool {
	return r.Status.IsTerminal() || r.Status == StatusError || r.Status == StatusPending
}

// IsTerminal returns true if the request is in a terminal state
func (r *DownloadRequest) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// RetryDue returns true when the request has a retry scheduled at or before now
func (r *DownloadRequest) RetryDue(now time.Time) bool {
	return r.NextRetryAt != nil && !now.Before(*r.NextRetryAt) &&
		(r.Status == StatusError || r.Status == StatusPaused)
}

// NextAction returns the action the scheduler should run for an automatic
// retry, based on where the protocol stopped.
func (r *DownloadRequest) NextAction() TriggerAction {
	if r.RequestID == "" {
		return ActionRequest
	}
	return ActionRecheck
}
