package engine

import (
	"fmt"
	"strconv"
	"strings"
)

type filterContent struct {
	Filter string `mapstructure:"filter"`
}

// handleCustomFilter renders the filter expression against the variables and
// evaluates it as a boolean predicate. True advances to the block's first
// outgoing connection; false halts this branch. A runtime evaluation error
// also halts the branch rather than aborting the run - filters are
// user-authored and validated separately at authoring time.
func (m *Manager) handleCustomFilter(exec *Execution, block *Block) (int64, error) {
	var content filterContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.Filter == "" {
		m.l.WarnContext(exec, fmt.Sprintf("Custom filter block %d has no filter expression", block.ID))
		return 0, nil
	}

	expression, err := m.renderer.Render(content.Filter, exec.Vars.All())
	if err != nil {
		return 0, err
	}

	pass, err := m.evaluator.EvalPredicate(expression, exec.Vars.All())
	if err != nil {
		m.l.WarnContext(exec, fmt.Sprintf("Custom filter failed: %v", err),
			"filter", expression)
		return 0, nil
	}

	if pass {
		m.l.InfoContext(exec, fmt.Sprintf("Custom filter passed: %s", expression))
		return exec.Logic.FirstOutgoing(block.ID), nil
	}
	m.l.InfoContext(exec, fmt.Sprintf("Custom filter failed: %s", expression))
	return 0, nil
}

type conditionContent struct {
	Condition string `mapstructure:"condition"`
}

// handleIfCondition renders the condition text and checks it against the
// inbound message. Substring match keeps parity with how authored bots use
// these blocks for trigger words.
func (m *Manager) handleIfCondition(exec *Execution, block *Block) (int64, error) {
	var content conditionContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.Condition == "" {
		m.l.WarnContext(exec, fmt.Sprintf("If condition block %d has no condition", block.ID))
		return 0, nil
	}

	condition, err := m.renderer.Render(content.Condition, exec.Vars.All())
	if err != nil {
		return 0, err
	}

	if strings.Contains(exec.UserMessage, condition) {
		m.l.InfoContext(exec, fmt.Sprintf("Condition met: %s", condition))
		return exec.Logic.FirstOutgoing(block.ID), nil
	}
	m.l.InfoContext(exec, fmt.Sprintf("Condition not met: %s", condition))
	return 0, nil
}

type loopContent struct {
	LoopType string `mapstructure:"loop_type"`
	Count    string `mapstructure:"count"`
}

// handleLoop runs the subtree behind the block's first outgoing connection a
// fixed number of times, exposing loop_index to each iteration. Iterations
// are capped by config and every nested step draws from the run's budget.
func (m *Manager) handleLoop(exec *Execution, block *Block) (int64, error) {
	var content loopContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.LoopType != "for" {
		m.l.WarnContext(exec, fmt.Sprintf("Unsupported loop type: %s", content.LoopType))
		return 0, nil
	}

	rendered, err := m.renderer.Render(content.Count, exec.Vars.All())
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(rendered))
	if err != nil {
		return 0, newValidationError(fmt.Sprintf("loop count %q is not a number", rendered), err)
	}
	if count <= 0 {
		m.l.WarnContext(exec, fmt.Sprintf("Loop count %d is not positive", count))
		return 0, nil
	}
	if count > m.cfg.MaxLoopIterations {
		count = m.cfg.MaxLoopIterations
	}

	body := exec.Logic.FirstOutgoing(block.ID)
	if body == 0 {
		return 0, nil
	}

	for i := 0; i < count; i++ {
		exec.Vars.Define("loop_index", i)
		if err := m.runFrom(exec, body); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

type stateMachineContent struct {
	State       string `mapstructure:"state"`
	Transitions []struct {
		Trigger     string `mapstructure:"trigger"`
		TargetState int64  `mapstructure:"target_state"`
	} `mapstructure:"transitions"`
}

// handleStateMachine matches the inbound message against the transitions'
// rendered triggers. The first match jumps to that transition's target block;
// no match halts the branch.
func (m *Manager) handleStateMachine(exec *Execution, block *Block) (int64, error) {
	var content stateMachineContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.State == "" || len(content.Transitions) == 0 {
		m.l.WarnContext(exec, fmt.Sprintf("State machine block %d has no state or transitions", block.ID))
		return 0, nil
	}

	state, err := m.renderer.Render(content.State, exec.Vars.All())
	if err != nil {
		return 0, err
	}
	m.l.InfoContext(exec, fmt.Sprintf("Current state: %s", state))

	for _, transition := range content.Transitions {
		if transition.Trigger == "" || transition.TargetState == 0 {
			continue
		}
		trigger, err := m.renderer.Render(transition.Trigger, exec.Vars.All())
		if err != nil {
			return 0, err
		}
		if strings.Contains(exec.UserMessage, trigger) {
			m.l.InfoContext(exec, fmt.Sprintf("Transition triggered by %q", trigger),
				"target_state", transition.TargetState)
			return transition.TargetState, nil
		}
	}

	m.l.WarnContext(exec, fmt.Sprintf("No transition triggered from state %s", state))
	return 0, nil
}
