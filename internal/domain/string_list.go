package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
)

// StringList is a ledger column holding identifiers (blocker ids, hard-stop
// reasons) as a JSON array. An empty list is stored as [] rather than NULL.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		s = StringList{}
	}
	data, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *StringList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("domain.StringList: unsupported type %T", value)
	}

	list := StringList{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, (*[]string)(&list)); err != nil {
			return fmt.Errorf("domain.StringList: %w", err)
		}
	}
	*s = list
	return nil
}

func (s StringList) Contains(id string) bool {
	return slices.Contains(s, id)
}
