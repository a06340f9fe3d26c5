package engine

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// decodeContent maps a block's opaque content payload onto the typed struct
// the handler works with. Weak typing tolerates authored values like "5" for
// numeric fields.
func decodeContent(block *Block, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("error building content decoder: %w", err)
	}
	if err := decoder.Decode(block.Content); err != nil {
		return newValidationError(fmt.Sprintf("malformed %s block content", block.Type), err)
	}
	return nil
}
