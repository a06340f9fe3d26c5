package engine

import (
	"sort"
	"time"
)

// BlockType discriminates the node kinds a bot graph may contain.
type BlockType string

const (
	BlockMessage              BlockType = "message"
	BlockSendText             BlockType = "send_text"
	BlockMediaGroup           BlockType = "media_group"
	BlockKeyboard             BlockType = "keyboard"
	BlockCallback             BlockType = "callback"
	BlockSendCallbackResponse BlockType = "send_callback_response"
	BlockSetWebhook           BlockType = "set_webhook"
	BlockDeleteWebhook        BlockType = "delete_webhook"
	BlockStartPolling         BlockType = "start_polling"
	BlockStopPolling          BlockType = "stop_polling"
	BlockCustomFilter         BlockType = "custom_filter"
	BlockAPIRequest           BlockType = "api_request"
	BlockDatabase             BlockType = "database"
	BlockVariable             BlockType = "variable"
	BlockLogMessage           BlockType = "log_message"
	BlockIfCondition          BlockType = "if_condition"
	BlockLoop                 BlockType = "loop"
	BlockTimer                BlockType = "timer"
	BlockRateLimit            BlockType = "rate_limiting"
	BlockStateMachine         BlockType = "state_machine"
	BlockRaiseError           BlockType = "raise_error"
	BlockTryCatch             BlockType = "try_catch"
	BlockHandleException      BlockType = "handle_exception"
	BlockSetChatTitle         BlockType = "set_chat_title"
	BlockSetChatDescription   BlockType = "set_chat_description"
	BlockPinMessage           BlockType = "pin_message"
	BlockUnpinMessage         BlockType = "unpin_message"
	BlockBanUser              BlockType = "ban_user"
	BlockUnbanUser            BlockType = "unban_user"
	BlockSaveUserData         BlockType = "save_user_data"
	BlockRetrieveUserData     BlockType = "retrieve_user_data"
	BlockClearUserData        BlockType = "clear_user_data"
)

// Block is one node in a bot's logic graph. Content is the type-specific
// payload authored through the constructor UI; it round-trips through storage
// unchanged and is decoded by the handler that owns the block type.
type Block struct {
	ID        int64          `yaml:"id" json:"id"`
	BotID     int64          `yaml:"bot_id" json:"bot_id"`
	Type      BlockType      `yaml:"type" json:"type"`
	Content   map[string]any `yaml:"content" json:"content"`
	CreatedAt time.Time      `yaml:"-" json:"created_at,omitempty"`
	UpdatedAt time.Time      `yaml:"-" json:"updated_at,omitempty"`
}

// Connection is a directed edge between two blocks of the same bot.
type Connection struct {
	ID            int64  `yaml:"id" json:"id"`
	BotID         int64  `yaml:"bot_id" json:"bot_id"`
	SourceBlockID int64  `yaml:"source_block_id" json:"source_block_id"`
	TargetBlockID int64  `yaml:"target_block_id" json:"target_block_id"`
	Type          string `yaml:"type" json:"type"`
}

// Logic is the immutable graph snapshot one run executes against. It is
// fetched once per run; concurrent edits through the authoring API become
// visible only to the next run.
type Logic struct {
	StartBlockID int64
	blocks       map[int64]*Block
	outgoing     map[int64][]Connection
}

// NewLogic builds a snapshot from a block list and connection list.
// Outgoing edges are kept sorted by connection ID ascending, which is the
// default next-block order when a block has multiple outgoing edges.
func NewLogic(startBlockID int64, blocks []*Block, connections []Connection) *Logic {
	l := &Logic{
		StartBlockID: startBlockID,
		blocks:       make(map[int64]*Block, len(blocks)),
		outgoing:     make(map[int64][]Connection),
	}
	for _, b := range blocks {
		l.blocks[b.ID] = b
	}
	for _, c := range connections {
		l.outgoing[c.SourceBlockID] = append(l.outgoing[c.SourceBlockID], c)
	}
	for id := range l.outgoing {
		conns := l.outgoing[id]
		sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
	}
	return l
}

// BlockByID looks a block up in the snapshot.
func (l *Logic) BlockByID(id int64) (*Block, bool) {
	b, ok := l.blocks[id]
	return b, ok
}

// Outgoing returns the outgoing connections of a block, sorted by connection
// ID ascending. The returned slice is shared; callers must not mutate it.
func (l *Logic) Outgoing(blockID int64) []Connection {
	return l.outgoing[blockID]
}

// FirstOutgoing resolves the default next block: the target of the
// lowest-numbered outgoing connection, or 0 when the block is a leaf.
func (l *Logic) FirstOutgoing(blockID int64) int64 {
	conns := l.outgoing[blockID]
	if len(conns) == 0 {
		return 0
	}
	return conns[0].TargetBlockID
}

// Len reports the number of blocks in the snapshot.
func (l *Logic) Len() int {
	return len(l.blocks)
}

// Bot is the owning aggregate of one logic graph.
type Bot struct {
	ID     int64  `yaml:"id"`
	UserID int64  `yaml:"user_id"`
	Name   string `yaml:"name"`
	Token  string `yaml:"token"`
	Status string `yaml:"status"`
	Logic  *Logic `yaml:"-"`
}
