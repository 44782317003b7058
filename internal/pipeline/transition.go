package pipeline

import (
	"fmt"

	"github.com/jonathan/cv-anonymizer/internal/pipeline/steps"
)

// Transition moves a stage of s to a new status, enforcing the stage state
// machine: pending -> processing -> completed | error, with processing ->
// pending on cancellation. Only generation may be re-run once it has
// finished. A stage can start only when the previous one has completed and
// no other stage is processing.
func Transition(s *Session, id steps.ID, to steps.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(id, to)
}

func (s *Session) transitionLocked(id steps.ID, to steps.Status) error {
	idx := -1
	for i, st := range s.steps {
		if st.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("unknown step: %s", id)
	}

	from := s.steps[idx].Status
	if !allowedTransition(id, from, to) {
		return &TransitionError{Step: id, From: from, To: to}
	}

	if to == steps.StatusProcessing {
		if running, busy := s.processing(); busy {
			return fmt.Errorf("step %s: %w (%s)", id, ErrSessionBusy, running)
		}
		if err := steps.ValidateDependencies(s.statuses(), id); err != nil {
			return err
		}
	}

	s.steps[idx].Status = to
	s.touch()
	return nil
}

func allowedTransition(id steps.ID, from, to steps.Status) bool {
	switch from {
	case steps.StatusPending:
		return to == steps.StatusProcessing
	case steps.StatusProcessing:
		return to == steps.StatusCompleted || to == steps.StatusError || to == steps.StatusPending
	case steps.StatusCompleted, steps.StatusError:
		return id == steps.Generation && to == steps.StatusProcessing
	default:
		return false
	}
}

// failCurrentLocked marks the processing stage as failed. When no stage is
// processing the failure is recorded against ocr, the first stage that
// talks to a collaborator.
func (s *Session) failCurrentLocked(err error) steps.ID {
	id, ok := s.processing()
	if !ok {
		id = steps.OCR
	}
	for i := range s.steps {
		if s.steps[i].ID == id {
			s.steps[i].Status = steps.StatusError
		}
	}
	s.errMsg = UserMessage(err)
	s.touch()
	return id
}
