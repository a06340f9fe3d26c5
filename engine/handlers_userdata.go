package engine

import "fmt"

type saveUserDataContent struct {
	Data map[string]any `mapstructure:"data"`
}

// handleSaveUserData merges the block's data into the chat's persistent user
// data. String values are rendered against the run variables first.
func (m *Manager) handleSaveUserData(exec *Execution, block *Block) (int64, error) {
	if m.userData == nil {
		return 0, newValidationError("user data store is not configured", nil)
	}

	var content saveUserDataContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if len(content.Data) == 0 {
		m.l.WarnContext(exec, fmt.Sprintf("Save user data block %d has no data", block.ID))
		return exec.Logic.FirstOutgoing(block.ID), nil
	}

	data := make(map[string]any, len(content.Data))
	for k, v := range content.Data {
		if s, ok := v.(string); ok {
			rendered, err := m.renderer.Render(s, exec.Vars.All())
			if err != nil {
				return 0, err
			}
			data[k] = rendered
			continue
		}
		data[k] = v
	}

	if err := m.userData.Save(exec, exec.ChatID, data); err != nil {
		return 0, fmt.Errorf("error saving user data: %w", err)
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

type retrieveUserDataContent struct {
	Key  string `mapstructure:"key"`
	Name string `mapstructure:"name"`
}

// handleRetrieveUserData loads a value from the chat's persistent user data
// into a run variable. A missing key is tolerated: the variable is simply not
// defined.
func (m *Manager) handleRetrieveUserData(exec *Execution, block *Block) (int64, error) {
	if m.userData == nil {
		return 0, newValidationError("user data store is not configured", nil)
	}

	var content retrieveUserDataContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	name := content.Name
	if name == "" {
		name = "user_data"
	}

	value, ok, err := m.userData.Retrieve(exec, exec.ChatID, content.Key)
	if err != nil {
		return 0, fmt.Errorf("error retrieving user data: %w", err)
	}
	if ok {
		exec.Vars.Define(name, value)
	} else {
		m.l.InfoContext(exec, fmt.Sprintf("No user data for key %q", content.Key))
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

func (m *Manager) handleClearUserData(exec *Execution, block *Block) (int64, error) {
	if m.userData == nil {
		return 0, newValidationError("user data store is not configured", nil)
	}

	if err := m.userData.Clear(exec, exec.ChatID); err != nil {
		return 0, fmt.Errorf("error clearing user data: %w", err)
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}
