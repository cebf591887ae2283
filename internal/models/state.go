package models

import "time"

// UserState хранит текущий шаг диалога пользователя и промежуточные данные
// формы. Живет в Redis, поэтому значения после round-trip приходят как
// примитивы JSON.
type UserState struct {
	UserID      int64
	CurrentStep string
	TempData    map[string]interface{}
}

func (s *UserState) GetInt64(key string) int64 {
	if s.TempData == nil {
		return 0
	}
	switch v := s.TempData[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func (s *UserState) GetInt(key string) int {
	return int(s.GetInt64(key))
}

func (s *UserState) GetFloat(key string) float64 {
	if s.TempData == nil {
		return 0
	}
	switch v := s.TempData[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (s *UserState) GetString(key string) string {
	if s.TempData == nil {
		return ""
	}
	if str, ok := s.TempData[key].(string); ok {
		return str
	}
	return ""
}

func (s *UserState) GetTime(key string) time.Time {
	if s.TempData == nil {
		return time.Time{}
	}
	switch v := s.TempData[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}
