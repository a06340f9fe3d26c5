package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// botDefinition is the YAML authoring shape for a bot and its graph.
type botDefinition struct {
	ID     int64  `yaml:"id"`
	UserID int64  `yaml:"user_id"`
	Name   string `yaml:"name"`
	Token  string `yaml:"token"`
	Status string `yaml:"status"`
	Logic  struct {
		StartBlockID int64        `yaml:"start_block_id"`
		Blocks       []*Block     `yaml:"blocks"`
		Connections  []Connection `yaml:"connections"`
	} `yaml:"logic"`
}

// LoadBots reads every *.yaml bot definition under dir. Tokens may use
// ${VAR} or ${VAR:default} syntax to stay out of the files.
func LoadBots(dir string) (map[int64]*Bot, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("error reading directory: %w", err)
	}

	bots := make(map[int64]*Bot)
	for _, file := range files {
		bot, err := readBot(file)
		if err != nil {
			return nil, err
		}
		bots[bot.ID] = bot
	}
	return bots, nil
}

func readBot(file string) (*Bot, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}

	var def botDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("error unmarshalling YAML: %w", err)
	}
	if def.ID == 0 {
		return nil, fmt.Errorf("bot definition %s is missing id", file)
	}

	token, err := ResolveEnvVar(def.Token)
	if err != nil {
		return nil, fmt.Errorf("error resolving token for bot %d: %w", def.ID, err)
	}

	for _, c := range def.Logic.Connections {
		if c.BotID != 0 && c.BotID != def.ID {
			return nil, fmt.Errorf("connection %d belongs to bot %d, not bot %d", c.ID, c.BotID, def.ID)
		}
	}

	return &Bot{
		ID:     def.ID,
		UserID: def.UserID,
		Name:   def.Name,
		Token:  token,
		Status: def.Status,
		Logic:  NewLogic(def.Logic.StartBlockID, def.Logic.Blocks, def.Logic.Connections),
	}, nil
}
