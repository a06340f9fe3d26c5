package engine

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"
)

// ParseLogic decodes a persisted bot logic payload (the JSON stored on the
// bot row by the authoring API) into a graph snapshot. Block content is kept
// as the raw decoded structure so that it round-trips unchanged.
func ParseLogic(raw []byte) (*Logic, error) {
	doc, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("error parsing bot logic: %w", err)
	}

	startID, ok := asInt64(doc.Path("start_block_id").Data())
	if !ok {
		return nil, fmt.Errorf("bot logic is missing start_block_id")
	}

	var blocks []*Block
	for _, child := range doc.Path("blocks").Children() {
		id, ok := asInt64(child.Path("id").Data())
		if !ok {
			return nil, fmt.Errorf("block is missing id: %s", child.String())
		}
		blockType, _ := child.Path("type").Data().(string)
		if blockType == "" {
			return nil, fmt.Errorf("block %d is missing type", id)
		}
		botID, _ := asInt64(child.Path("bot_id").Data())

		content, _ := child.Path("content").Data().(map[string]any)
		blocks = append(blocks, &Block{
			ID:      id,
			BotID:   botID,
			Type:    BlockType(blockType),
			Content: content,
		})
	}

	var connections []Connection
	for _, child := range doc.Path("connections").Children() {
		id, ok := asInt64(child.Path("id").Data())
		if !ok {
			return nil, fmt.Errorf("connection is missing id: %s", child.String())
		}
		source, sok := asInt64(child.Path("source_block_id").Data())
		target, tok := asInt64(child.Path("target_block_id").Data())
		if !sok || !tok {
			return nil, fmt.Errorf("connection %d is missing endpoints", id)
		}
		botID, _ := asInt64(child.Path("bot_id").Data())
		connType, _ := child.Path("type").Data().(string)
		connections = append(connections, Connection{
			ID:            id,
			BotID:         botID,
			SourceBlockID: source,
			TargetBlockID: target,
			Type:          connType,
		})
	}

	return NewLogic(startID, blocks, connections), nil
}

// asInt64 converts the numeric types JSON and YAML decoders produce.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
