// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// FindByTaskType returns the activity registered for a Camunda task type,
// or nil if the task type is not in the registry.
func (r *ActivityRegistry) FindByTaskType(taskType string) *Activity {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i]
		}
	}
	return nil
}

// InputSchemaJSON renders the activity's declared input schema as a JSON
// document, for feeding into a JSON Schema validator.
func (a *Activity) InputSchemaJSON() (string, error) {
	if len(a.InputSchema) == 0 {
		return "", fmt.Errorf("activity %s declares no input schema", a.ID)
	}
	data, err := json.Marshal(a.InputSchema)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
