package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON 以 JSON 文本落库的 map 字段（payload/metadata 列）
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	return json.Unmarshal(data, j)
}

func (JSON) GormDataType() string { return "json" }
