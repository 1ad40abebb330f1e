// Package session owns the interactive scan session: camera and
// permission lifecycle, debouncing, duplicate suppression, and the
// alert-lock that keeps a dangerous verdict from being scrolled past.
package session

// State is the scan session state.
type State int

const (
	// StateIdle is the initial state; no camera, no permission asked.
	StateIdle State = iota
	// StateRequestingPermission is a transient state while the permission
	// flow runs.
	StateRequestingPermission
	// StatePermissionDenied means the user refused; the controller never
	// retries on its own, Start must be called again.
	StatePermissionDenied
	// StateActive means the camera is live and decodes are accepted.
	StateActive
	// StateProcessing means one lookup is outstanding; new decodes are
	// rejected until it settles.
	StateProcessing
	// StateAlertLocked means a warning or danger verdict is on screen and
	// scanning stays halted until Acknowledge.
	StateAlertLocked
	// StatePaused means the app went to background; camera released,
	// timers cancelled, session object still addressable.
	StatePaused
	// StateUnsupported is terminal: the device cannot scan at all.
	StateUnsupported
	// StateError is terminal until Reset: the capability layer failed.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingPermission:
		return "requesting_permission"
	case StatePermissionDenied:
		return "permission_denied"
	case StateActive:
		return "active"
	case StateProcessing:
		return "processing"
	case StateAlertLocked:
		return "alert_locked"
	case StatePaused:
		return "paused"
	case StateUnsupported:
		return "unsupported"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
