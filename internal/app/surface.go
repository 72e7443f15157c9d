package app

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"ipzy-gateway/internal/domain"
)

// Keys used in a tab's Surface.
const (
	KeyQuizSession       = "quiz_session"
	KeyPendingAnswers    = "pendingQuizAnswers"
	KeyPostLoginRedirect = "postLoginRedirect"
	KeyAuthUser          = "auth_user"
	AuthKeyPrefix        = "auth_"
)

var errEmptySnapshot = errors.New("empty answer snapshot")

// Surface is the tab-scoped key/value store. Calls are short and synchronous.
type Surface interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
	Keys(prefix string) []string
}

// SurfaceProvider opens the Surface that belongs to a tab session.
type SurfaceProvider interface {
	Open(tabID string) Surface
	Clear(tabID string)
}

// RemovePrefixed deletes every key starting with prefix and returns how many were removed.
func RemovePrefixed(s Surface, prefix string) int {
	keys := s.Keys(prefix)
	for _, k := range keys {
		s.Remove(k)
	}
	return len(keys)
}

// StoredSession reads the persisted session handle. Unreadable values count as absent.
func StoredSession(s Surface) (domain.SessionHandle, bool) {
	raw, ok := s.Get(KeyQuizSession)
	if !ok {
		return domain.SessionHandle{}, false
	}
	var h domain.SessionHandle
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return domain.SessionHandle{}, false
	}
	return h, true
}

func storeSession(s Surface, h domain.SessionHandle) {
	data, err := json.Marshal(h)
	if err != nil {
		return
	}
	s.Set(KeyQuizSession, string(data))
}

// PendingAnswers decodes the parked snapshot. ok is false when none exists.
func PendingAnswers(s Surface) (answers domain.AnswerMap, ok bool, err error) {
	raw, ok := s.Get(KeyPendingAnswers)
	if !ok {
		return nil, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil, true, &domain.SnapshotCorruptionError{Key: KeyPendingAnswers, Err: err}
	}
	if len(answers) == 0 {
		return nil, true, &domain.SnapshotCorruptionError{Key: KeyPendingAnswers, Err: errEmptySnapshot}
	}
	return answers, true, nil
}

func parkAnswers(s Surface, answers domain.AnswerMap) {
	data, err := json.Marshal(answers)
	if err != nil {
		return
	}
	s.Set(KeyPendingAnswers, string(data))
}

// FilterKeys returns the sorted keys of a map that start with prefix.
// Surface implementations share it for Keys.
func FilterKeys[V any](m map[string]V, prefix string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
